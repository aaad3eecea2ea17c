// Package wallet loads the trading wallet's private key from any of the
// three documented encodings (§6).
package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Load resolves secret into a private key. secret may be:
//   - a base58-encoded private key,
//   - a JSON array of bytes (e.g. "[12,34,...]"),
//   - a path to a file containing a JSON byte array.
func Load(secret string) (solana.PrivateKey, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("wallet: empty secret")
	}

	if strings.HasPrefix(secret, "[") {
		return fromJSONArray([]byte(secret))
	}

	if data, err := os.ReadFile(secret); err == nil {
		return fromJSONArray(data)
	}

	if _, err := base58.Decode(secret); err == nil {
		pk, err := solana.PrivateKeyFromBase58(secret)
		if err != nil {
			return nil, fmt.Errorf("wallet: decoding base58 secret: %w", err)
		}
		return pk, nil
	}

	return nil, fmt.Errorf("wallet: secret is neither base58, a JSON byte array, nor a readable file path")
}

func fromJSONArray(data []byte) (solana.PrivateKey, error) {
	var bytes []byte
	if err := json.Unmarshal(data, &bytes); err != nil {
		return nil, fmt.Errorf("wallet: decoding JSON byte array: %w", err)
	}
	if len(bytes) != 64 {
		return nil, fmt.Errorf("wallet: expected 64-byte keypair, got %d", len(bytes))
	}
	pk := solana.PrivateKey(bytes)
	return pk, nil
}
