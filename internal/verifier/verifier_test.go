package verifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkpress-cms/mediakeeper/internal/content"
	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
	"github.com/inkpress-cms/mediakeeper/pkg/storage/gcs"
)

type stubAssets struct {
	findFn func(ctx context.Context, key string) (*models.MediaAsset, error)
}

func (s *stubAssets) FindByStorageKey(ctx context.Context, key string) (*models.MediaAsset, error) {
	return s.findFn(ctx, key)
}

type stubRefs struct {
	countFn func(ctx context.Context, mediaID uuid.UUID) (int64, error)
}

func (s *stubRefs) CountByMediaID(ctx context.Context, mediaID uuid.UUID) (int64, error) {
	if s.countFn != nil {
		return s.countFn(ctx, mediaID)
	}
	return 0, nil
}

type stubStorage struct {
	existsFn func(ctx context.Context, key string) (bool, error)
}

func (s *stubStorage) Exists(ctx context.Context, key string) (bool, error) {
	if s.existsFn != nil {
		return s.existsFn(ctx, key)
	}
	return true, nil
}

type stubContent struct {
	scanFn func(ctx context.Context, storageKey string) ([]content.Occurrence, error)
}

func (s *stubContent) CountOccurrences(ctx context.Context, storageKey string) ([]content.Occurrence, error) {
	if s.scanFn != nil {
		return s.scanFn(ctx, storageKey)
	}
	return nil, nil
}

func testService(t *testing.T, p Params) *service {
	t.Helper()
	if p.Assets == nil {
		p.Assets = &stubAssets{findFn: func(context.Context, string) (*models.MediaAsset, error) {
			return nil, gorm.ErrRecordNotFound
		}}
	}
	if p.References == nil {
		p.References = &stubRefs{}
	}
	if p.Storage == nil {
		p.Storage = &stubStorage{}
	}
	if p.Content == nil {
		p.Content = &stubContent{}
	}
	if p.Logger == nil {
		p.Logger = logger.New(logger.Options{ServiceName: "test"})
	}
	svc, err := NewService(p)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return svc.(*service)
}

func oldAsset() *models.MediaAsset {
	return &models.MediaAsset{
		ID:         uuid.New(),
		StorageKey: "media/old.jpg",
		SizeBytes:  2048,
		UploadedAt: time.Now().Add(-72 * time.Hour),
	}
}

func hasWarning(v Verification, fragment string) bool {
	for _, w := range v.Warnings {
		if strings.Contains(w, fragment) {
			return true
		}
	}
	return false
}

func TestVerifyMissingAssetNeverSafe(t *testing.T) {
	svc := testService(t, Params{})

	v, err := svc.Verify(context.Background(), "media/gone.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsOrphaned {
		t.Fatal("missing asset should report orphaned")
	}
	if v.SafeToDelete {
		t.Fatal("missing asset must never be safe to delete")
	}
	if v.ReferenceCount != 0 {
		t.Fatalf("expected zero references, got %d", v.ReferenceCount)
	}
	if !hasWarning(v, "not found in metadata store") {
		t.Fatalf("expected metadata warning, got %v", v.Warnings)
	}
}

func TestVerifyReferencedAssetNeverSafe(t *testing.T) {
	asset := oldAsset()
	svc := testService(t, Params{
		Assets: &stubAssets{findFn: func(context.Context, string) (*models.MediaAsset, error) {
			return asset, nil
		}},
		References: &stubRefs{countFn: func(context.Context, uuid.UUID) (int64, error) {
			return 3, nil
		}},
	})

	v, err := svc.Verify(context.Background(), asset.StorageKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.IsOrphaned {
		t.Fatal("asset with references must not be orphaned")
	}
	if v.ReferenceCount != 3 {
		t.Fatalf("expected 3 references, got %d", v.ReferenceCount)
	}
	if v.SafeToDelete {
		t.Fatal("referenced asset must never be safe to delete")
	}
}

func TestVerifyOrphanIsSafe(t *testing.T) {
	asset := oldAsset()
	svc := testService(t, Params{
		Assets: &stubAssets{findFn: func(context.Context, string) (*models.MediaAsset, error) {
			return asset, nil
		}},
	})

	v, err := svc.Verify(context.Background(), asset.StorageKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsOrphaned || !v.SafeToDelete {
		t.Fatalf("expected safe orphan, got orphaned=%v safe=%v", v.IsOrphaned, v.SafeToDelete)
	}
	if len(v.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", v.Warnings)
	}
}

func TestVerifyRecentUploadBlocked(t *testing.T) {
	asset := oldAsset()
	asset.UploadedAt = time.Now().Add(-10 * time.Minute)
	svc := testService(t, Params{
		Assets: &stubAssets{findFn: func(context.Context, string) (*models.MediaAsset, error) {
			return asset, nil
		}},
	})

	v, err := svc.Verify(context.Background(), asset.StorageKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsOrphaned {
		t.Fatal("expected orphaned")
	}
	if v.SafeToDelete {
		t.Fatal("recent upload must block deletion")
	}
	if !hasWarning(v, "uploaded too recently") {
		t.Fatalf("expected recency warning, got %v", v.Warnings)
	}
}

func TestVerifyGraceBoundary(t *testing.T) {
	asset := oldAsset()
	svc := testService(t, Params{
		Assets: &stubAssets{findFn: func(context.Context, string) (*models.MediaAsset, error) {
			return asset, nil
		}},
	})
	fixed := time.Now()
	svc.now = func() time.Time { return fixed }

	// Exactly at the grace boundary is no longer "recent".
	asset.UploadedAt = fixed.Add(-time.Hour)
	v, err := svc.Verify(context.Background(), asset.StorageKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.SafeToDelete {
		t.Fatalf("expected safe at exact grace boundary, warnings %v", v.Warnings)
	}

	asset.UploadedAt = fixed.Add(-time.Hour + time.Second)
	v, err = svc.Verify(context.Background(), asset.StorageKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.SafeToDelete {
		t.Fatal("expected unsafe just inside the grace window")
	}
}

func TestVerifyExistenceUnknownBlocks(t *testing.T) {
	asset := oldAsset()
	svc := testService(t, Params{
		Assets: &stubAssets{findFn: func(context.Context, string) (*models.MediaAsset, error) {
			return asset, nil
		}},
		Storage: &stubStorage{existsFn: func(context.Context, string) (bool, error) {
			return false, gcs.ErrExistenceUnknown
		}},
	})

	v, err := svc.Verify(context.Background(), asset.StorageKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.SafeToDelete {
		t.Fatal("unknown storage existence must block deletion")
	}
	if !hasWarning(v, "cannot verify storage existence") {
		t.Fatalf("expected existence warning, got %v", v.Warnings)
	}
}

func TestVerifyAbsentObjectStaysSafe(t *testing.T) {
	asset := oldAsset()
	svc := testService(t, Params{
		Assets: &stubAssets{findFn: func(context.Context, string) (*models.MediaAsset, error) {
			return asset, nil
		}},
		Storage: &stubStorage{existsFn: func(context.Context, string) (bool, error) {
			return false, nil
		}},
	})

	v, err := svc.Verify(context.Background(), asset.StorageKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.SafeToDelete {
		t.Fatal("a confirmed-absent object is informational, not blocking")
	}
	if !hasWarning(v, "already absent") {
		t.Fatalf("expected absence warning, got %v", v.Warnings)
	}
}

func TestVerifyContentScanFailureBlocks(t *testing.T) {
	asset := oldAsset()
	svc := testService(t, Params{
		Assets: &stubAssets{findFn: func(context.Context, string) (*models.MediaAsset, error) {
			return asset, nil
		}},
		Content: &stubContent{scanFn: func(context.Context, string) ([]content.Occurrence, error) {
			return nil, errors.New("relation does not exist")
		}},
	})

	v, err := svc.Verify(context.Background(), asset.StorageKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.SafeToDelete {
		t.Fatal("a failed content scan must block deletion")
	}
	if !hasWarning(v, "content scan failed") {
		t.Fatalf("expected scan warning, got %v", v.Warnings)
	}
}

func TestVerifyContentMatchesAdvisoryByDefault(t *testing.T) {
	asset := oldAsset()
	occurrences := []content.Occurrence{{ContentType: "article", Count: 2}}
	params := Params{
		Assets: &stubAssets{findFn: func(context.Context, string) (*models.MediaAsset, error) {
			return asset, nil
		}},
		Content: &stubContent{scanFn: func(context.Context, string) ([]content.Occurrence, error) {
			return occurrences, nil
		}},
	}

	v, err := testService(t, params).Verify(context.Background(), asset.StorageKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.SafeToDelete {
		t.Fatal("advisory content matches should not block deletion")
	}
	if !hasWarning(v, "article") {
		t.Fatalf("expected occurrence warning, got %v", v.Warnings)
	}

	params.ContentScanBlocks = true
	v, err = testService(t, params).Verify(context.Background(), asset.StorageKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.SafeToDelete {
		t.Fatal("content matches must block when the blocking flag is set")
	}
}

func TestVerifyBatchIsolatesFailures(t *testing.T) {
	asset := oldAsset()
	svc := testService(t, Params{
		Assets: &stubAssets{findFn: func(_ context.Context, key string) (*models.MediaAsset, error) {
			if key == "media/broken.jpg" {
				return nil, errors.New("connection reset")
			}
			return asset, nil
		}},
	})

	out, err := svc.VerifyBatch(context.Background(), []string{"media/broken.jpg", asset.StorageKey})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 verifications, got %d", len(out))
	}
	if out[0].SafeToDelete {
		t.Fatal("failed verification must be unsafe")
	}
	if !hasWarning(out[0], "verification failed") {
		t.Fatalf("expected failure warning, got %v", out[0].Warnings)
	}
	if !out[1].SafeToDelete {
		t.Fatal("healthy candidate should still verify")
	}
}
