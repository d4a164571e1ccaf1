package utils

import (
	"crypto/rand"
	"fmt"
)

// base34 drops I and O, which read as 1 and 0 in log output.
const base34Alphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// RandBase34 returns a random token of the given length. Used to make
// temporary dump file names unguessable on shared hosts.
func RandBase34(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid token length: %d", length)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = base34Alphabet[int(b)%len(base34Alphabet)]
	}
	return string(buf), nil
}
