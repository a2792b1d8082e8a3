package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const keyPrefix = "legiswatch:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// SummaryKey keys a model summary by model name, prompt version, text
// budget and bill content hash, so unchanged bill text is never sent to the
// same model with the same prompt twice
func SummaryKey(modelName, promptVersion string, maxTextChars int, contentHash string) string {
	return hashedKey("summary", modelName, promptVersion, strconv.Itoa(maxTextChars), contentHash)
}

// SeenKey keys a previously alerted bill version
func SeenKey(billKey, contentHash string) string {
	return hashedKey("seen", billKey, contentHash)
}

func hashedKey(kind string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return keyPrefix + kind + ":" + hex.EncodeToString(h.Sum(nil))
}

// GetJSON decodes a cached JSON value into v
func GetJSON(c Cache, key string, v any) bool {
	data, found := c.Get(key)
	if !found {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// SetJSON encodes v as JSON and caches it
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	return c.Set(key, data, ttl)
}
