package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet is the 32-symbol set used for confirmation codes. Visually
// ambiguous glyphs (0/O, 1/I) are excluded so patients can read a code
// off a screen and type it at the front desk without mistakes.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Length of every confirmation code.
const Length = 6

// Generate returns a fresh confirmation code. Codes are not globally
// unique; the appointments table enforces uniqueness per date and the
// booking service retries on a duplicate.
func Generate() (string, error) {
	var b strings.Builder
	b.Grow(Length)
	max := big.NewInt(int64(len(Alphabet)))
	for i := 0; i < Length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read entropy: %w", err)
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Normalize uppercases a manually entered code and trims surrounding
// whitespace so front-desk input matches stored codes.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Valid reports whether s has the exact shape of a confirmation code.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(Alphabet, rune(s[i])) {
			return false
		}
	}
	return true
}
