package links

import (
	"crypto/rand"
)

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultShortIDLength is used when no explicit length is configured.
const DefaultShortIDLength = 8

// CryptoGenerator produces URL-path-safe random identifiers from crypto/rand.
// It makes no uniqueness guarantee; the store's unique index plus the service
// retry loop handle collisions.
type CryptoGenerator struct{}

func NewCryptoGenerator() *CryptoGenerator { return &CryptoGenerator{} }

func (g *CryptoGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultShortIDLength
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	out := make([]byte, length)
	for i := range buf {
		out[i] = base62Alphabet[int(buf[i])%len(base62Alphabet)]
	}

	return string(out), nil
}
