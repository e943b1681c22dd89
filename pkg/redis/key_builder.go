package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// Guide content keys
func (kb *KeyBuilder) KeyArtifactByCode(code string) string {
	return kb.BuildKey(fmt.Sprintf(KeyArtifactByCode, code))
}

// Traffic keys
func (kb *KeyBuilder) KeyTrafficTotal() string {
	return kb.BuildKey(KeyTrafficTotal)
}

func (kb *KeyBuilder) KeyTrafficDaily(date string) string {
	return kb.BuildKey(fmt.Sprintf(KeyTrafficDaily, date))
}

func (kb *KeyBuilder) KeyTrafficUnique() string {
	return kb.BuildKey(KeyTrafficUnique)
}

func (kb *KeyBuilder) KeyTrafficUniqueDaily(date string) string {
	return kb.BuildKey(fmt.Sprintf(KeyTrafficUniqueDaily, date))
}

func (kb *KeyBuilder) KeyTrafficRateLimit(ipHash string) string {
	return kb.BuildKey(fmt.Sprintf(KeyTrafficRateLimit, ipHash))
}

func (kb *KeyBuilder) KeyTrafficLastUpdate() string {
	return kb.BuildKey(KeyTrafficLastUpdate)
}

func (kb *KeyBuilder) KeyActiveSessions() string {
	return kb.BuildKey(KeyActiveSessions)
}

func (kb *KeyBuilder) KeySnapshotLock() string {
	return kb.BuildKey(KeySnapshotLock)
}

// Registry keys
func (kb *KeyBuilder) KeyRegisterRateLimit(ipHash string) string {
	return kb.BuildKey(fmt.Sprintf(KeyRegisterRateLimit, ipHash))
}

// Auth keys
func (kb *KeyBuilder) KeyRevokedToken(tokenID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyRevokedToken, tokenID))
}
