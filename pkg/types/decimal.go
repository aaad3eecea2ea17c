package types

import "regexp"

var decimalRe = regexp.MustCompile(`^[0-9]+$`)

// IsDecimalAmount reports whether s is a valid non-negative integer literal,
// the wire format §6 mandates for config-file amount strings.
func IsDecimalAmount(s string) bool {
	return decimalRe.MatchString(s)
}
