package executor

import "testing"

func TestTransactionFromHexRejectsInvalidHex(t *testing.T) {
	if _, err := transactionFromHex("not-hex-zz"); err == nil {
		t.Fatalf("expected an error for a non-hex string")
	}
}

func TestTransactionFromHexRejectsTruncatedPayload(t *testing.T) {
	// Valid hex, but far too short to contain a well-formed transaction.
	if _, err := transactionFromHex("deadbeef"); err == nil {
		t.Fatalf("expected an error for a truncated transaction payload")
	}
}
