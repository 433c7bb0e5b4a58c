package cleanup

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkpress-cms/mediakeeper/internal/verifier"
	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
	"github.com/inkpress-cms/mediakeeper/pkg/errors"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

type stubVerifier struct {
	batchFn func(ctx context.Context, keys []string) ([]verifier.Verification, error)
}

func (s *stubVerifier) VerifyBatch(ctx context.Context, keys []string) ([]verifier.Verification, error) {
	return s.batchFn(ctx, keys)
}

type stubAssets struct {
	assets  map[string]*models.MediaAsset
	deleted []uuid.UUID
}

func (s *stubAssets) FindByStorageKey(_ context.Context, key string) (*models.MediaAsset, error) {
	asset, ok := s.assets[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return asset, nil
}

func (s *stubAssets) Delete(_ context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubStorage struct {
	destroyed []string
	failKeys  map[string]error
}

func (s *stubStorage) Destroy(_ context.Context, key string) error {
	if err, ok := s.failKeys[key]; ok {
		return err
	}
	s.destroyed = append(s.destroyed, key)
	return nil
}

type stubOps struct {
	created   []*models.CleanupOperation
	completed bool
	failed    bool
	message   string
	processed int
	deleted   int
	freed     int64
	createErr error
}

func (s *stubOps) Create(_ context.Context, op *models.CleanupOperation) error {
	if s.createErr != nil {
		return s.createErr
	}
	op.ID = uuid.New()
	s.created = append(s.created, op)
	return nil
}

func (s *stubOps) MarkCompleted(_ context.Context, _ uuid.UUID, processed, deleted int, spaceFreed int64, _ time.Time) error {
	s.completed = true
	s.processed = processed
	s.deleted = deleted
	s.freed = spaceFreed
	return nil
}

func (s *stubOps) MarkFailed(_ context.Context, _ uuid.UUID, message string, _ time.Time) error {
	s.failed = true
	s.message = message
	return nil
}

type stubObserver struct {
	progress []Progress
	status   enums.OperationStatus
	result   Result
	notified bool
}

func (s *stubObserver) Progress(_ context.Context, p Progress) {
	s.progress = append(s.progress, p)
}

func (s *stubObserver) Complete(_ context.Context, _ uuid.UUID, status enums.OperationStatus, result Result) {
	s.notified = true
	s.status = status
	s.result = result
}

type stubCache struct {
	invalidated []string
}

func (s *stubCache) Invalidate(_ context.Context, storageKey string) {
	s.invalidated = append(s.invalidated, storageKey)
}

func safeOrphan(key string) verifier.Verification {
	return verifier.Verification{StorageKey: key, IsOrphaned: true, SafeToDelete: true}
}

type executorFixture struct {
	assets   *stubAssets
	storage  *stubStorage
	ops      *stubOps
	observer *stubObserver
	cache    *stubCache
	exec     Executor
}

func newFixture(t *testing.T, verifications []verifier.Verification) *executorFixture {
	t.Helper()
	f := &executorFixture{
		assets:   &stubAssets{assets: map[string]*models.MediaAsset{}},
		storage:  &stubStorage{failKeys: map[string]error{}},
		ops:      &stubOps{},
		observer: &stubObserver{},
		cache:    &stubCache{},
	}
	for _, v := range verifications {
		if v.IsOrphaned && v.ReferenceCount == 0 {
			f.assets.assets[v.StorageKey] = &models.MediaAsset{
				ID:         uuid.New(),
				StorageKey: v.StorageKey,
				SizeBytes:  2097152,
				UploadedAt: time.Now().Add(-72 * time.Hour),
			}
		}
	}
	exec, err := NewExecutor(Params{
		Verifier: &stubVerifier{batchFn: func(context.Context, []string) ([]verifier.Verification, error) {
			return verifications, nil
		}},
		Assets:     f.assets,
		Storage:    f.storage,
		Operations: f.ops,
		Observer:   f.observer,
		Cache:      f.cache,
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	f.exec = exec
	return f
}

func TestRunDeletesVerifiedOrphan(t *testing.T) {
	f := newFixture(t, []verifier.Verification{safeOrphan("media/a.jpg")})

	result, err := f.exec.Run(context.Background(), []string{"media/a.jpg"}, false, enums.OperationTypeManual, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Processed != 1 || result.Deleted != 1 || result.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.FreedSpace != 2097152 {
		t.Fatalf("expected 2 MB freed, got %d", result.FreedSpace)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected no item errors, got %v", result.Errors)
	}
	if len(f.storage.destroyed) != 1 || len(f.assets.deleted) != 1 {
		t.Fatal("expected blob and metadata row removed")
	}
	if !f.ops.completed || f.ops.deleted != 1 {
		t.Fatal("operation row not closed with final counts")
	}
	if len(f.cache.invalidated) == 0 {
		t.Fatal("expected cache invalidation after deletions")
	}
	if f.observer.status != enums.OperationStatusCompleted {
		t.Fatalf("expected completed status, got %s", f.observer.status)
	}
	if len(f.observer.progress) != 1 {
		t.Fatalf("expected one progress snapshot, got %d", len(f.observer.progress))
	}
}

func TestRunRecordsTriggeringActor(t *testing.T) {
	f := newFixture(t, []verifier.Verification{safeOrphan("media/a.jpg")})
	actor := uuid.New()

	_, err := f.exec.Run(context.Background(), []string{"media/a.jpg"}, false, enums.OperationTypeManual, &actor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.ops.created) != 1 {
		t.Fatalf("expected one operation row, got %d", len(f.ops.created))
	}
	op := f.ops.created[0]
	if op.TriggeredBy == nil || *op.TriggeredBy != actor {
		t.Fatalf("operation row must record the triggering actor, got %v", op.TriggeredBy)
	}

	// Scheduled runs have no actor and must leave the column null.
	f2 := newFixture(t, []verifier.Verification{safeOrphan("media/b.jpg")})
	if _, err := f2.exec.Run(context.Background(), []string{"media/b.jpg"}, false, enums.OperationTypeScheduled, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f2.ops.created[0].TriggeredBy != nil {
		t.Fatal("scheduled run must not record an actor")
	}
}

func TestRunReferencedAssetIsNotOrphaned(t *testing.T) {
	f := newFixture(t, []verifier.Verification{
		{StorageKey: "media/b.jpg", IsOrphaned: false, ReferenceCount: 1, SafeToDelete: false},
	})

	result, err := f.exec.Run(context.Background(), []string{"media/b.jpg"}, false, enums.OperationTypeManual, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Processed != 1 || result.Deleted != 0 || result.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].Code != errors.CodeNotOrphaned {
		t.Fatalf("expected NOT_ORPHANED error, got %v", result.Errors)
	}
	if len(f.storage.destroyed) != 0 || len(f.assets.deleted) != 0 {
		t.Fatal("referenced asset must not be touched")
	}
}

func TestRunUnsafeOrphanSkipped(t *testing.T) {
	f := newFixture(t, []verifier.Verification{
		{StorageKey: "media/c.jpg", IsOrphaned: true, SafeToDelete: false, Warnings: []string{"uploaded too recently"}},
	})

	result, err := f.exec.Run(context.Background(), []string{"media/c.jpg"}, false, enums.OperationTypeManual, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 1 || result.Deleted != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.Errors[0].Code != errors.CodeUnsafeDelete {
		t.Fatalf("expected UNSAFE_DELETE, got %s", result.Errors[0].Code)
	}
}

func TestRunDryRunProjectsWithoutMutating(t *testing.T) {
	f := newFixture(t, []verifier.Verification{safeOrphan("media/a.jpg"), safeOrphan("media/d.jpg")})

	result, err := f.exec.Run(context.Background(), []string{"media/a.jpg", "media/d.jpg"}, true, enums.OperationTypeManual, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.DryRun {
		t.Fatal("expected dry-run result")
	}
	if result.Deleted != 2 || result.FreedSpace != 2*2097152 {
		t.Fatalf("dry run should project counts: %+v", result)
	}
	if len(f.storage.destroyed) != 0 || len(f.assets.deleted) != 0 {
		t.Fatal("dry run must not mutate storage or metadata")
	}
	if len(f.cache.invalidated) != 0 {
		t.Fatal("dry run must not invalidate caches")
	}
}

func TestRunIsolatesDeleteFailures(t *testing.T) {
	f := newFixture(t, []verifier.Verification{safeOrphan("media/bad.jpg"), safeOrphan("media/good.jpg")})
	f.storage.failKeys["media/bad.jpg"] = stderrors.New("storage 500")

	result, err := f.exec.Run(context.Background(), []string{"media/bad.jpg", "media/good.jpg"}, false, enums.OperationTypeManual, nil)
	if err != nil {
		t.Fatalf("item failures must not fail the run: %v", err)
	}
	if result.Processed != 2 || result.Deleted != 1 || result.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.Errors[0].Code != errors.CodeDeleteFailed || !result.Errors[0].Recoverable {
		t.Fatalf("expected recoverable DELETE_FAILED, got %+v", result.Errors[0])
	}
	if !f.ops.completed {
		t.Fatal("operation should still complete")
	}
	if result.Deleted > result.Processed {
		t.Fatal("deleted must never exceed processed")
	}
}

func TestRunBatchVerificationFailureFailsOperation(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.(*executor).verifier = &stubVerifier{batchFn: func(context.Context, []string) ([]verifier.Verification, error) {
		return nil, stderrors.New("db unreachable")
	}}

	_, err := f.exec.Run(context.Background(), []string{"media/a.jpg"}, false, enums.OperationTypeScheduled, nil)
	if err == nil {
		t.Fatal("expected batch-level error to surface")
	}
	if !f.ops.failed {
		t.Fatal("operation row should be marked failed")
	}
	if f.observer.status != enums.OperationStatusFailed {
		t.Fatalf("observer should see failed status, got %s", f.observer.status)
	}
}

func TestRunSecondPassIsNoop(t *testing.T) {
	// After a successful delete the metadata row is gone, so the verifier
	// reports the key as missing and unsafe on the next run.
	f := newFixture(t, []verifier.Verification{
		{StorageKey: "media/a.jpg", IsOrphaned: true, SafeToDelete: false, Warnings: []string{"asset not found in metadata store"}},
	})

	result, err := f.exec.Run(context.Background(), []string{"media/a.jpg"}, false, enums.OperationTypeManual, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Deleted != 0 || result.Failed != 1 {
		t.Fatalf("second pass should delete nothing: %+v", result)
	}
}
