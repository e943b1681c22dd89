package utils

import (
	"crypto/sha256"
	"fmt"
)

// HashVisitor hashes an ip/user-agent pair for uniqueness tracking
func HashVisitor(ipAddress, userAgent string) string {
	hash := sha256.Sum256([]byte(ipAddress + "|" + userAgent))
	return fmt.Sprintf("%x", hash)
}

// HashIP returns a short hash of an IP address for rate limit keys
func HashIP(ipAddress string) string {
	hash := sha256.Sum256([]byte(ipAddress))
	return fmt.Sprintf("%x", hash)[:16]
}
