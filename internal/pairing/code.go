// Package pairing generates the short codes partners exchange to connect.
package pairing

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet omits look-alike characters (I, O, 0, 1).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const CodeLength = 6

// GenerateCode returns a random CodeLength-character code drawn from Alphabet.
func GenerateCode() (string, error) {
	buf := make([]byte, CodeLength)
	limit := big.NewInt(int64(len(Alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate pairing code: %w", err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}
