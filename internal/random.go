package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const opaqueTokenSize = 32

// NewOpaqueToken returns 32 random bytes encoded as 64 lowercase hex characters.
func NewOpaqueToken() (string, error) {
	var raw [opaqueTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// HashToken returns the hex SHA-256 digest stored in place of an opaque token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidOpaqueToken reports whether token has the shape NewOpaqueToken produces.
func ValidOpaqueToken(token string) bool {
	if len(token) != opaqueTokenSize*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
