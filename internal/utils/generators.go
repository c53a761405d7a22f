package utils

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// ShortCodeAlphabet is uppercase letters and digits without 0, O, 1 and I.
const ShortCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const DefaultShortCodeLength = 5

var alphabetSize = big.NewInt(int64(len(ShortCodeAlphabet)))

// GenerateShortCode returns a code of the given length drawn uniformly from ShortCodeAlphabet.
// Uniqueness is up to the caller.
func GenerateShortCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultShortCodeLength
	}
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		code[i] = ShortCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// GenerateID creates a random UUID v4
func GenerateID() string {
	return uuid.NewString()
}
