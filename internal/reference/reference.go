// Package reference generates and validates transaction references.
package reference

import (
	"crypto/rand"
	"math/big"
	"unicode"
	"unicode/utf8"
)

// Length is the number of characters in a transaction reference.
const Length = 16

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generate returns a fresh reference drawn uniformly from ASCII letters and digits.
func Generate() (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, Length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

// IsValid reports whether ref is exactly Length letters or digits.
func IsValid(ref string) bool {
	if utf8.RuneCountInString(ref) != Length {
		return false
	}
	for _, r := range ref {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
