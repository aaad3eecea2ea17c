package executor

import (
	"math/rand"

	"github.com/gagliardetto/solana-go"
)

// defaultTipAccounts are Jito's documented mainnet tip-payment accounts,
// used when no tip account is configured or the configured one fails to
// parse as a public key (§4.7 step 7).
var defaultTipAccounts = []string{
	"96gYZGLnJYVFmbjzopPSigTzFVZN9pdG6XYuSAm9fF8z",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KXP",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

// resolveTipAccount returns configured as a public key if valid, otherwise
// a uniformly random pick from defaultTipAccounts (§4.7 step 7).
func resolveTipAccount(configured string) solana.PublicKey {
	if configured != "" {
		if pk, err := solana.PublicKeyFromBase58(configured); err == nil {
			return pk
		}
	}
	pk, _ := solana.PublicKeyFromBase58(defaultTipAccounts[rand.Intn(len(defaultTipAccounts))])
	return pk
}
