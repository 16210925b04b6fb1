// Package cache provides the two-tier response cache: exact match (SHA256)
// and semantic match (embedding cosine similarity).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// keyPayload is the canonical form hashed into an exact cache key.
// json.Marshal emits map keys in sorted order, so the key is invariant
// under context map iteration order.
type keyPayload struct {
	Message string            `json:"message"`
	Context map[string]string `json:"context"`
}

// MakeKey builds a deterministic cache key from a message and a context map.
// The message is lower-cased and trimmed; empty-valued context entries are
// excluded so semantically equivalent contexts collapse to one key.
func MakeKey(message string, context map[string]string) string {
	payload := keyPayload{
		Message: strings.ToLower(strings.TrimSpace(message)),
		Context: filterContext(context),
	}
	data, _ := json.Marshal(payload) // map[string]string cannot fail to marshal
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ContextHash builds a deterministic hash of the context map alone.
// The semantic cache uses it as an exact-match filter before any
// similarity comparison.
func ContextHash(context map[string]string) string {
	data, _ := json.Marshal(filterContext(context))
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func filterContext(context map[string]string) map[string]string {
	filtered := make(map[string]string, len(context))
	for k, v := range context {
		if v == "" {
			continue
		}
		filtered[k] = v
	}
	return filtered
}
