package tokens

import (
	"crypto/subtle"
	"fmt"
	"math/big"
)

// Base58Alphabet is the alphabet used for base58 encoding (Bitcoin style).
// Excludes confusing characters: 0 (zero), O (capital o), I (capital i),
// l (lowercase L).
const Base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// base58Encode encodes bytes to a base58 string.
func base58Encode(input []byte) string {
	if len(input) == 0 {
		return ""
	}

	num := big.NewInt(0)
	num.SetBytes(input)

	var result []byte
	base := big.NewInt(58)
	zero := big.NewInt(0)
	remainder := big.NewInt(0)

	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, remainder)
		result = append([]byte{Base58Alphabet[remainder.Int64()]}, result...)
	}

	// Leading zero bytes are represented as '1' in base58.
	for _, b := range input {
		if b != 0 {
			break
		}
		result = append([]byte{Base58Alphabet[0]}, result...)
	}

	return string(result)
}

// base58Decode decodes a base58 string to bytes.
func base58Decode(input string) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}

	charMap := make(map[byte]int)
	for i, c := range []byte(Base58Alphabet) {
		charMap[c] = i
	}

	num := big.NewInt(0)
	base := big.NewInt(58)

	for _, c := range []byte(input) {
		val, ok := charMap[c]
		if !ok {
			return nil, fmt.Errorf("invalid base58 character: %c", c)
		}
		num.Mul(num, base)
		num.Add(num, big.NewInt(int64(val)))
	}

	result := num.Bytes()

	for _, c := range []byte(input) {
		if c != Base58Alphabet[0] {
			break
		}
		result = append([]byte{0}, result...)
	}

	return result, nil
}

// CompareTokens performs timing-safe comparison of two token strings.
func CompareTokens(token1, token2 string) bool {
	if len(token1) != len(token2) {
		// Dummy comparison to keep the time constant on length mismatch.
		dummy := make([]byte, 32)
		subtle.ConstantTimeCompare(dummy, dummy)
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token1), []byte(token2)) == 1
}
