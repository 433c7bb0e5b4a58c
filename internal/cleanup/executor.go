package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/internal/verifier"
	"github.com/inkpress-cms/mediakeeper/pkg/db"
	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
	"github.com/inkpress-cms/mediakeeper/pkg/errors"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
	"github.com/inkpress-cms/mediakeeper/pkg/metrics"
)

// ItemError records one candidate that could not be deleted. Recoverable
// errors are eligible for retry in a later run.
type ItemError struct {
	StorageKey  string      `json:"storageKey"`
	Code        errors.Code `json:"code"`
	Message     string      `json:"message"`
	Recoverable bool        `json:"recoverable"`
}

// Result summarizes one executor invocation. Deleted never exceeds
// Processed.
type Result struct {
	OperationID uuid.UUID   `json:"operationId"`
	Processed   int         `json:"processed"`
	Deleted     int         `json:"deleted"`
	Failed      int         `json:"failed"`
	FreedSpace  int64       `json:"freedSpace"`
	DryRun      bool        `json:"dryRun"`
	Errors      []ItemError `json:"errors,omitempty"`
}

// Progress is the incremental snapshot pushed to the monitor after each
// successful deletion.
type Progress struct {
	OperationID    uuid.UUID
	FilesProcessed int
	FilesDeleted   int
	SpaceFreed     int64
	CurrentKey     string
}

type verifierService interface {
	VerifyBatch(ctx context.Context, storageKeys []string) ([]verifier.Verification, error)
}

type assetStore interface {
	FindByStorageKey(ctx context.Context, key string) (*models.MediaAsset, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type objectStore interface {
	Destroy(ctx context.Context, key string) error
}

type operationStore interface {
	Create(ctx context.Context, op *models.CleanupOperation) error
	MarkCompleted(ctx context.Context, id uuid.UUID, processed, deleted int, spaceFreed int64, completedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string, completedAt time.Time) error
}

type runObserver interface {
	Progress(ctx context.Context, p Progress)
	Complete(ctx context.Context, operationID uuid.UUID, status enums.OperationStatus, result Result)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, storageKey string)
}

// Executor drives the cleanup state machine for one candidate batch:
// pending -> running -> {completed, failed}.
type Executor interface {
	Run(ctx context.Context, candidateKeys []string, dryRun bool, operationType enums.OperationType, actorID *uuid.UUID) (Result, error)
}

type Params struct {
	Verifier   verifierService
	Assets     assetStore
	Storage    objectStore
	Operations operationStore
	Observer   runObserver
	Cache      cacheInvalidator
	Metrics    *metrics.CleanupMetrics
	Logger     *logger.Logger
}

type executor struct {
	verifier verifierService
	assets   assetStore
	storage  objectStore
	ops      operationStore
	observer runObserver
	cache    cacheInvalidator
	metrics  *metrics.CleanupMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewExecutor(p Params) (Executor, error) {
	if p.Verifier == nil || p.Assets == nil || p.Storage == nil || p.Operations == nil || p.Logger == nil {
		return nil, fmt.Errorf("cleanup: missing required dependencies")
	}
	return &executor{
		verifier: p.Verifier,
		assets:   p.Assets,
		storage:  p.Storage,
		ops:      p.Operations,
		observer: p.Observer,
		cache:    p.Cache,
		metrics:  p.Metrics,
		logg:     p.Logger,
		now:      time.Now,
	}, nil
}

func (e *executor) Run(ctx context.Context, candidateKeys []string, dryRun bool, operationType enums.OperationType, actorID *uuid.UUID) (Result, error) {
	startedAt := e.now()
	op := &models.CleanupOperation{
		OperationType: operationType,
		Status:        enums.OperationStatusRunning,
		TriggeredBy:   actorID,
		StartedAt:     startedAt,
	}
	if err := e.ops.Create(ctx, op); err != nil {
		return Result{}, fmt.Errorf("open cleanup operation: %w", err)
	}

	result := Result{OperationID: op.ID, DryRun: dryRun}
	logCtx := e.logg.WithContext(ctx).With().
		Str("operation_id", op.ID.String()).
		Str("operation_type", operationType.String()).
		Bool("dry_run", dryRun)
	if actorID != nil {
		logCtx = logCtx.Str("triggered_by", actorID.String())
	}
	logg := logCtx.Logger()

	verifications, err := e.verifier.VerifyBatch(ctx, candidateKeys)
	if err != nil {
		return result, e.fail(ctx, op.ID, operationType, result, fmt.Errorf("verify candidates: %w", err))
	}

	// Strictly sequential: accounting stays exact and error attribution
	// stays one-to-one with candidates.
	for _, v := range verifications {
		result.Processed++
		switch {
		case !v.IsOrphaned:
			result.Failed++
			result.Errors = append(result.Errors, ItemError{
				StorageKey:  v.StorageKey,
				Code:        errors.CodeNotOrphaned,
				Message:     fmt.Sprintf("asset still has %d reference(s)", v.ReferenceCount),
				Recoverable: false,
			})
		case !v.SafeToDelete:
			result.Failed++
			result.Errors = append(result.Errors, ItemError{
				StorageKey:  v.StorageKey,
				Code:        errors.CodeUnsafeDelete,
				Message:     unsafeMessage(v),
				Recoverable: false,
			})
		default:
			if err := e.deleteOne(ctx, v.StorageKey, dryRun, &result); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, ItemError{
					StorageKey:  v.StorageKey,
					Code:        errors.CodeDeleteFailed,
					Message:     err.Error(),
					Recoverable: true,
				})
				logg.Warn().Err(err).Str("storage_key", v.StorageKey).Msg("candidate deletion failed")
				continue
			}
			if e.observer != nil {
				e.observer.Progress(ctx, Progress{
					OperationID:    op.ID,
					FilesProcessed: result.Processed,
					FilesDeleted:   result.Deleted,
					SpaceFreed:     result.FreedSpace,
					CurrentKey:     v.StorageKey,
				})
			}
		}
	}

	completedAt := e.now()
	if err := e.ops.MarkCompleted(ctx, op.ID, result.Processed, result.Deleted, result.FreedSpace, completedAt); err != nil {
		return result, e.fail(ctx, op.ID, operationType, result, fmt.Errorf("close cleanup operation: %w", err))
	}

	if !dryRun && result.Deleted > 0 && e.cache != nil {
		e.cache.Invalidate(ctx, "")
	}
	if e.observer != nil {
		e.observer.Complete(ctx, op.ID, enums.OperationStatusCompleted, result)
	}
	e.metrics.ObserveRun(operationType.String(), dryRun, completedAt.Sub(startedAt))
	e.metrics.IncSuccess(operationType.String())
	if !dryRun {
		e.metrics.AddDeleted(operationType.String(), result.Deleted, result.FreedSpace)
	}

	logg.Info().
		Int("processed", result.Processed).
		Int("deleted", result.Deleted).
		Int("failed", result.Failed).
		Int64("freed_space", result.FreedSpace).
		Msg("cleanup run completed")

	return result, nil
}

// deleteOne removes one verified orphan: blob first, then the metadata row.
// In a dry run it only projects the counts.
func (e *executor) deleteOne(ctx context.Context, storageKey string, dryRun bool, result *Result) error {
	asset, err := e.assets.FindByStorageKey(ctx, storageKey)
	if err != nil {
		if db.IsNotFound(err) {
			return fmt.Errorf("metadata row vanished for %s", storageKey)
		}
		return fmt.Errorf("look up asset %s: %w", storageKey, err)
	}

	if dryRun {
		result.Deleted++
		result.FreedSpace += asset.SizeBytes
		return nil
	}

	// Destroy treats not-found as success; anything else aborts this item.
	if err := e.storage.Destroy(ctx, storageKey); err != nil {
		return fmt.Errorf("destroy object %s: %w", storageKey, err)
	}
	if err := e.assets.Delete(ctx, asset.ID); err != nil {
		return fmt.Errorf("delete metadata for %s: %w", storageKey, err)
	}

	result.Deleted++
	result.FreedSpace += asset.SizeBytes
	return nil
}

// fail marks the operation failed, notifies the observer, and returns the
// original batch-level error to the caller.
func (e *executor) fail(ctx context.Context, operationID uuid.UUID, operationType enums.OperationType, result Result, cause error) error {
	completedAt := e.now()
	if err := e.ops.MarkFailed(ctx, operationID, cause.Error(), completedAt); err != nil {
		e.logg.WithContext(ctx).Error().Err(err).
			Str("operation_id", operationID.String()).
			Msg("could not record failed cleanup operation")
	}
	if e.observer != nil {
		e.observer.Complete(ctx, operationID, enums.OperationStatusFailed, result)
	}
	e.metrics.IncFailure(operationType.String())
	return cause
}

func unsafeMessage(v verifier.Verification) string {
	if len(v.Warnings) > 0 {
		return "unsafe to delete: " + v.Warnings[len(v.Warnings)-1]
	}
	return "unsafe to delete"
}
