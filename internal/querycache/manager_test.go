package querycache

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/inkpress-cms/mediakeeper/pkg/config"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
	mkredis "github.com/inkpress-cms/mediakeeper/pkg/redis"
)

type memoryStore struct {
	values   map[string]string
	getErr   error
	setErr   error
	patterns []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	value, ok := s.values[key]
	if !ok {
		return "", mkredis.Nil
	}
	return value, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value.(string)
	return nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *memoryStore) DelPattern(_ context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			delete(s.values, key)
		}
	}
	return nil
}

func (s *memoryStore) CacheKey(parts ...string) string {
	return "mk:cache:" + strings.Join(parts, ":")
}

func (s *memoryStore) CachePattern(namespace string) string {
	return "mk:cache:" + namespace + "*"
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		ListTTL:            5 * time.Minute,
		SearchTTL:          5 * time.Minute,
		UsageTTL:           30 * time.Minute,
		OrphanListTTL:      30 * time.Minute,
		StatsTTL:           10 * time.Minute,
		FallbackMaxEntries: 4,
	}
}

func newTestManager(t *testing.T, store Store) *Manager {
	t.Helper()
	m, err := NewManager(Params{
		Store:  store,
		Config: cacheConfig(),
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return m
}

type listPayload struct {
	Items []string `json:"items"`
}

func TestGetOrLoadCachesSecondRead(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(t, store)

	loads := 0
	load := func(dest *listPayload) func(context.Context) error {
		return func(context.Context) error {
			loads++
			dest.Items = []string{"a", "b"}
			return nil
		}
	}

	var first listPayload
	if err := m.GetOrLoad(context.Background(), NamespaceList, "assets:list:abc", &first, load(&first)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var second listPayload
	if err := m.GetOrLoad(context.Background(), NamespaceList, "assets:list:abc", &second, load(&second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if loads != 1 {
		t.Fatalf("expected one loader call, got %d", loads)
	}
	if len(second.Items) != 2 {
		t.Fatalf("cached read should fill dest, got %v", second.Items)
	}
}

func TestGetOrLoadLoaderErrorSurfaces(t *testing.T) {
	m := newTestManager(t, newMemoryStore())

	var dest listPayload
	err := m.GetOrLoad(context.Background(), NamespaceList, "assets:list:err", &dest, func(context.Context) error {
		return stderrors.New("query failed")
	})
	if err == nil {
		t.Fatal("loader errors must surface")
	}
}

func TestGetOrLoadStoreOutageUsesFallback(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(t, store)

	loads := 0
	loader := func(dest *listPayload) func(context.Context) error {
		return func(context.Context) error {
			loads++
			dest.Items = []string{"x"}
			return nil
		}
	}

	// First read populates both the store and the in-process fallback.
	var first listPayload
	if err := m.GetOrLoad(context.Background(), NamespaceList, "assets:list:out", &first, loader(&first)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Store goes down; the fallback copy still serves the read.
	store.getErr = stderrors.New("connection refused")
	store.setErr = stderrors.New("connection refused")

	var second listPayload
	if err := m.GetOrLoad(context.Background(), NamespaceList, "assets:list:out", &second, loader(&second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loads != 1 {
		t.Fatalf("fallback should have served the second read, loader ran %d times", loads)
	}
	if len(second.Items) != 1 || second.Items[0] != "x" {
		t.Fatalf("fallback data mismatch: %v", second.Items)
	}
}

func TestGetOrLoadCorruptEntryReloaded(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(t, store)

	full := store.CacheKey("assets:list:bad")
	store.values[full] = "{not json"

	loads := 0
	var dest listPayload
	err := m.GetOrLoad(context.Background(), NamespaceList, "assets:list:bad", &dest, func(context.Context) error {
		loads++
		dest.Items = []string{"fresh"}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loads != 1 {
		t.Fatal("corrupt entry should force a reload")
	}
	if store.values[full] == "{not json" {
		t.Fatal("corrupt entry should be overwritten")
	}
}

func TestInvalidateEvictsEntityAndBroadNamespaces(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(t, store)

	entity := store.CacheKey(EntityKey(NamespaceAsset, "uploads/a.jpg"))
	usage := store.CacheKey(EntityKey(NamespaceUsage, "uploads/a.jpg"))
	list := store.CacheKey("assets:list:abc")
	otherUsage := store.CacheKey(EntityKey(NamespaceUsage, "uploads/b.jpg"))
	store.values[entity] = `{}`
	store.values[usage] = `{}`
	store.values[list] = `{}`
	store.values[otherUsage] = `{}`

	m.Invalidate(context.Background(), "uploads/a.jpg")

	if _, ok := store.values[entity]; ok {
		t.Fatal("entity entry should be evicted")
	}
	if _, ok := store.values[usage]; ok {
		t.Fatal("usage entry should be evicted")
	}
	if _, ok := store.values[list]; ok {
		t.Fatal("list namespace should be evicted wholesale")
	}
	if _, ok := store.values[otherUsage]; !ok {
		t.Fatal("unrelated usage entries must survive")
	}
	if len(store.patterns) != len(broadNamespaces) {
		t.Fatalf("expected %d pattern deletes, got %d", len(broadNamespaces), len(store.patterns))
	}
}

func TestTTLForBands(t *testing.T) {
	m := newTestManager(t, newMemoryStore())

	cases := map[string]time.Duration{
		NamespaceList:    5 * time.Minute,
		NamespaceSearch:  5 * time.Minute,
		NamespaceUsage:   30 * time.Minute,
		NamespaceOrphans: 30 * time.Minute,
		NamespaceStats:   10 * time.Minute,
		"unknown":        5 * time.Minute,
	}
	for ns, want := range cases {
		if got := m.TTLFor(ns); got != want {
			t.Errorf("TTLFor(%s) = %s, want %s", ns, got, want)
		}
	}
}
