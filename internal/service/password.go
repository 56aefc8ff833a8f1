package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// PasswordAlphabet omits characters that are easy to confuse when read aloud
// or copied by hand (I, O, l, o, 0, 1).
const PasswordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

// DefaultPasswordLength is the length of generated access passwords.
const DefaultPasswordLength = 8

// GeneratePassword draws n characters independently and uniformly from PasswordAlphabet.
func GeneratePassword(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid password length %d", n)
	}
	limit := big.NewInt(int64(len(PasswordAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = PasswordAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
