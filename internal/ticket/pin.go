package ticket

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

const (
	pinAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	pinLength   = 4
)

// Bytes at or above this value are rejected so every symbol is equally likely.
const pinRejectAbove = 256 - 256%len(pinAlphabet)

// newPin draws a pin code uniformly from pinAlphabet.
func newPin(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	var (
		b   strings.Builder
		buf [1]byte
	)
	b.Grow(pinLength)
	for b.Len() < pinLength {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		if int(buf[0]) >= pinRejectAbove {
			continue
		}
		b.WriteByte(pinAlphabet[int(buf[0])%len(pinAlphabet)])
	}
	return b.String(), nil
}

// NormalizePin canonicalizes user-typed pin codes.
func NormalizePin(pin string) string {
	return strings.ToUpper(strings.TrimSpace(pin))
}

// validPin reports whether pin has the issued shape.
func validPin(pin string) bool {
	if len(pin) != pinLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if !strings.ContainsRune(pinAlphabet, rune(pin[i])) {
			return false
		}
	}
	return true
}
