package auth

import (
	"bytes"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const saltLen = 8

// HashPassword возвращает argon2id-хеш с солью в первых saltLen байтах.
func HashPassword(plainPassword string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %v", err)
	}
	hash := argon2.IDKey([]byte(plainPassword), salt, 1, 64*1024, 4, 32)
	return append(salt, hash...), nil
}

func CheckPassword(passwordHash []byte, plainPassword string) bool {
	if len(passwordHash) <= saltLen {
		return false
	}
	salt := passwordHash[:saltLen]
	hash := argon2.IDKey([]byte(plainPassword), salt, 1, 64*1024, 4, 32)
	return bytes.Equal(append(append([]byte{}, salt...), hash...), passwordHash)
}
