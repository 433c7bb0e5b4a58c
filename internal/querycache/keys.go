package querycache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Cache namespaces. Every cached read lives under exactly one of these so
// that broad invalidation can evict a whole query family with one pattern.
const (
	NamespaceList    = "assets:list"
	NamespaceSearch  = "assets:search"
	NamespaceGallery = "assets:gallery"
	NamespaceUsage   = "assets:usage"
	NamespaceOrphans = "assets:orphans"
	NamespaceStats   = "assets:stats"
	NamespaceAsset   = "assets:meta"
)

// broadNamespaces are evicted wholesale on every invalidation.
var broadNamespaces = []string{
	NamespaceList,
	NamespaceSearch,
	NamespaceGallery,
	NamespaceOrphans,
	NamespaceStats,
}

// QueryKey derives a deterministic cache key from a namespace and a request
// payload. The payload is serialized through a canonicalization round-trip
// (JSON object keys sort deterministically) and hashed, so equivalent
// requests share an entry regardless of field order.
func QueryKey(namespace string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal cache payload: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("canonicalize cache payload: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("canonicalize cache payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return namespace + ":" + hex.EncodeToString(sum[:16]), nil
}

// EntityKey derives the cache key for a single entity entry.
func EntityKey(namespace, storageKey string) string {
	return namespace + ":" + storageKey
}
