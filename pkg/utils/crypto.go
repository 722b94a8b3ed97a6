package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

// SHA256 calculate SHA256 hash value
func SHA256(data string) string {
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// GenerateRandomString generate random string
func GenerateRandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[num.Int64()]
	}
	return string(result)
}

// MaskString mask string (for sensitive information display)
func MaskString(str string, start, end int, mask rune) string {
	if len(str) <= start+end {
		return strings.Repeat(string(mask), len(str))
	}

	runes := []rune(str)
	for i := start; i < len(runes)-end; i++ {
		runes[i] = mask
	}
	return string(runes)
}

// MaskInstrumentRef mask a payment instrument reference for logs
func MaskInstrumentRef(ref string) string {
	if len(ref) <= 8 {
		return MaskString(ref, 0, 0, '*')
	}
	return MaskString(ref, 4, 4, '*')
}

// MaskEmail mask email
func MaskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	username := parts[0]
	domain := parts[1]

	if len(username) <= 2 {
		return strings.Repeat("*", len(username)) + "@" + domain
	}

	return MaskString(username, 1, 1, '*') + "@" + domain
}
