package executor

import (
	"encoding/hex"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// transactionFromHex decodes a hex-encoded wire transaction, the format
// OpenOcean returns its swap payload in as an alternative to base64.
func transactionFromHex(s string) (*solana.Transaction, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("executor: decode hex transaction: %w", err)
	}
	tx := new(solana.Transaction)
	if err := tx.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("executor: unmarshal hex transaction: %w", err)
	}
	return tx, nil
}
