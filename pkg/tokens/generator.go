// Package tokens generates and validates the API tokens collaborating
// services use to call the voice engine.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// TokenPrefix is the prefix for all voiceauth tokens
	TokenPrefix = "voiceauth_v1_"

	// TokenEntropyBytes is the number of random bytes for 128-bit entropy
	TokenEntropyBytes = 16

	// ChecksumBytes is the number of checksum bytes to include
	ChecksumBytes = 2 // 16-bit checksum for corruption detection
)

// GenerateToken creates a new token: voiceauth_v1_ + base58(entropy + checksum).
func GenerateToken() (string, error) {
	entropy := make([]byte, TokenEntropyBytes)
	if _, err := rand.Read(entropy); err != nil {
		return "", fmt.Errorf("failed to generate random entropy: %w", err)
	}
	return GenerateTokenFromEntropy(entropy)
}

// GenerateTokenFromEntropy creates a token from provided entropy (useful for testing).
func GenerateTokenFromEntropy(entropy []byte) (string, error) {
	if len(entropy) != TokenEntropyBytes {
		return "", fmt.Errorf("entropy must be exactly %d bytes", TokenEntropyBytes)
	}

	checksum := generateChecksum(entropy)

	tokenData := make([]byte, 0, TokenEntropyBytes+ChecksumBytes)
	tokenData = append(tokenData, entropy...)
	tokenData = append(tokenData, checksum...)

	return TokenPrefix + base58Encode(tokenData), nil
}

// ValidateToken checks a token's format and checksum without consulting any
// store; a valid token may still be unknown or revoked.
func ValidateToken(token string) bool {
	if !strings.HasPrefix(token, TokenPrefix) {
		return false
	}

	tokenData, err := base58Decode(token[len(TokenPrefix):])
	if err != nil {
		return false
	}
	if len(tokenData) != TokenEntropyBytes+ChecksumBytes {
		return false
	}

	entropy := tokenData[:TokenEntropyBytes]
	provided := tokenData[TokenEntropyBytes:]
	expected := generateChecksum(entropy)

	return CompareTokens(string(provided), string(expected))
}

// HashToken returns the hex sha256 digest used to store tokens at rest.
// Raw tokens are never persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// generateChecksum derives the 16-bit corruption-detection checksum.
func generateChecksum(entropy []byte) []byte {
	sum := sha256.Sum256(entropy)
	return sum[:ChecksumBytes]
}
