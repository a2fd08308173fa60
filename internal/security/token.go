package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MinTokenBytes is the smallest amount of randomness accepted for a
// reset or verification token.
const MinTokenBytes = 20

// GenerateToken returns a hex-encoded random token of n bytes and its digest.
// The plaintext is handed to the user once; only the digest is stored.
func GenerateToken(n int) (plaintext, digest string, err error) {
	if n < MinTokenBytes {
		n = MinTokenBytes
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("read random bytes: %w", err)
	}

	plaintext = hex.EncodeToString(buf)
	return plaintext, DigestToken(plaintext), nil
}

// DigestToken is the fast one-way hash used for single-use tokens. These
// tokens carry enough entropy that a slow KDF adds nothing.
func DigestToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
