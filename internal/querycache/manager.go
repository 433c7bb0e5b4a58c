package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/inkpress-cms/mediakeeper/pkg/config"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
	mkredis "github.com/inkpress-cms/mediakeeper/pkg/redis"
)

// Store is the subset of the cache client the read-through layer needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelPattern(ctx context.Context, pattern string) error
	CacheKey(parts ...string) string
	CachePattern(namespace string) string
}

// Manager is a best-effort read-through cache for asset queries. A store
// failure never fails the underlying query: reads fall back to a
// size-bounded in-process map, and the miss path always runs the loader.
type Manager struct {
	store    Store
	fallback *fallbackCache
	cfg      config.CacheConfig
	logg     *logger.Logger
}

type Params struct {
	Store  Store
	Config config.CacheConfig
	Logger *logger.Logger
}

func NewManager(p Params) (*Manager, error) {
	if p.Store == nil || p.Logger == nil {
		return nil, fmt.Errorf("querycache: missing required dependencies")
	}
	return &Manager{
		store:    p.Store,
		fallback: newFallbackCache(p.Config.FallbackMaxEntries),
		cfg:      p.Config,
		logg:     p.Logger,
	}, nil
}

// TTLFor maps a namespace to its configured TTL band.
func (m *Manager) TTLFor(namespace string) time.Duration {
	switch namespace {
	case NamespaceList, NamespaceGallery:
		return m.cfg.ListTTL
	case NamespaceSearch:
		return m.cfg.SearchTTL
	case NamespaceUsage, NamespaceAsset:
		return m.cfg.UsageTTL
	case NamespaceOrphans:
		return m.cfg.OrphanListTTL
	case NamespaceStats:
		return m.cfg.StatsTTL
	default:
		return m.cfg.ListTTL
	}
}

// GetOrLoad fills dest from cache when possible; on a miss it invokes load
// (which must fill dest) and stores the result under the namespace's TTL.
func (m *Manager) GetOrLoad(ctx context.Context, namespace, key string, dest any, load func(ctx context.Context) error) error {
	full := m.store.CacheKey(key)
	if data, ok := m.read(ctx, full); ok {
		if err := json.Unmarshal(data, dest); err == nil {
			return nil
		}
		// Corrupt entry; treat as a miss and overwrite below.
		m.logg.WithContext(ctx).Warn().Str("cache_key", full).Msg("discarding undecodable cache entry")
	}

	if err := load(ctx); err != nil {
		return err
	}
	m.write(ctx, full, dest, m.TTLFor(namespace))
	return nil
}

// Invalidate evicts the given asset's entity entries (when a key is given)
// and always evicts every list, search, gallery, orphan-list, and stats
// namespace. Precision is sacrificed for correctness: any mutation can
// change counts and facets.
func (m *Manager) Invalidate(ctx context.Context, storageKey string) {
	var errs error
	if storageKey != "" {
		keys := []string{
			m.store.CacheKey(EntityKey(NamespaceAsset, storageKey)),
			m.store.CacheKey(EntityKey(NamespaceUsage, storageKey)),
		}
		if err := m.store.Del(ctx, keys...); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("evict entity keys for %s: %w", storageKey, err))
		}
		m.fallback.del(keys...)
	}
	for _, ns := range broadNamespaces {
		if err := m.store.DelPattern(ctx, m.store.CachePattern(ns)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("evict namespace %s: %w", ns, err))
		}
		m.fallback.delPrefix(m.store.CacheKey(ns))
	}
	if errs != nil {
		m.logg.WithContext(ctx).Warn().Err(errs).
			Str("storage_key", storageKey).
			Msg("cache eviction incomplete")
	}
}

func (m *Manager) read(ctx context.Context, fullKey string) ([]byte, bool) {
	value, err := m.store.Get(ctx, fullKey)
	if err == nil {
		return []byte(value), true
	}
	if !isMiss(err) {
		m.logg.WithContext(ctx).Warn().Err(err).Str("cache_key", fullKey).Msg("cache read failed, trying fallback")
		if data, ok := m.fallback.get(fullKey); ok {
			return data, true
		}
	}
	return nil, false
}

func (m *Manager) write(ctx context.Context, fullKey string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		m.logg.WithContext(ctx).Warn().Err(err).Str("cache_key", fullKey).Msg("cache encode failed")
		return
	}
	if err := m.store.Set(ctx, fullKey, string(data), ttl); err != nil {
		m.logg.WithContext(ctx).Warn().Err(err).Str("cache_key", fullKey).Msg("cache write failed, using fallback")
		m.fallback.set(fullKey, data, ttl)
		return
	}
	// Keep the fallback coherent for the next store outage.
	m.fallback.set(fullKey, data, ttl)
}

func isMiss(err error) bool {
	return errors.Is(err, mkredis.Nil)
}
