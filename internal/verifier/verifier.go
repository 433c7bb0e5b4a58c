package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/internal/content"
	"github.com/inkpress-cms/mediakeeper/pkg/db"
	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
	"github.com/inkpress-cms/mediakeeper/pkg/storage/gcs"
)

// Verification is the verdict for one storage key.
type Verification struct {
	StorageKey     string   `json:"storageKey"`
	IsOrphaned     bool     `json:"isOrphaned"`
	ReferenceCount int64    `json:"referenceCount"`
	SafeToDelete   bool     `json:"safeToDelete"`
	Warnings       []string `json:"warnings,omitempty"`
}

type assetStore interface {
	FindByStorageKey(ctx context.Context, key string) (*models.MediaAsset, error)
}

type referenceCounter interface {
	CountByMediaID(ctx context.Context, mediaID uuid.UUID) (int64, error)
}

type objectChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

type contentScanner interface {
	CountOccurrences(ctx context.Context, storageKey string) ([]content.Occurrence, error)
}

// Service decides whether a storage key is an orphan and whether deleting
// it is safe right now.
type Service interface {
	Verify(ctx context.Context, storageKey string) (Verification, error)
	VerifyBatch(ctx context.Context, storageKeys []string) ([]Verification, error)
}

type Params struct {
	Assets     assetStore
	References referenceCounter
	Storage    objectChecker
	Content    contentScanner
	Logger     *logger.Logger

	// RecentUploadGrace is how long after upload an orphan stays protected.
	RecentUploadGrace time.Duration
	// ContentScanBlocks promotes the content-scan guard from advisory to
	// blocking. Defaults to advisory.
	ContentScanBlocks bool
}

type service struct {
	assets            assetStore
	refs              referenceCounter
	storage           objectChecker
	content           contentScanner
	logg              *logger.Logger
	grace             time.Duration
	contentScanBlocks bool
	now               func() time.Time
}

func NewService(p Params) (Service, error) {
	if p.Assets == nil || p.References == nil || p.Storage == nil || p.Content == nil || p.Logger == nil {
		return nil, fmt.Errorf("verifier: missing required dependencies")
	}
	grace := p.RecentUploadGrace
	if grace <= 0 {
		grace = time.Hour
	}
	return &service{
		assets:            p.Assets,
		refs:              p.References,
		storage:           p.Storage,
		content:           p.Content,
		logg:              p.Logger,
		grace:             grace,
		contentScanBlocks: p.ContentScanBlocks,
		now:               time.Now,
	}, nil
}

func (s *service) Verify(ctx context.Context, storageKey string) (Verification, error) {
	v := Verification{StorageKey: storageKey}

	asset, err := s.assets.FindByStorageKey(ctx, storageKey)
	if err != nil {
		if db.IsNotFound(err) {
			// Nothing to delete; never eligible.
			v.IsOrphaned = true
			v.SafeToDelete = false
			v.Warnings = append(v.Warnings, "asset not found in metadata store")
			return v, nil
		}
		return v, fmt.Errorf("look up asset %s: %w", storageKey, err)
	}

	count, err := s.refs.CountByMediaID(ctx, asset.ID)
	if err != nil {
		return v, fmt.Errorf("count references for %s: %w", storageKey, err)
	}
	v.ReferenceCount = count
	v.IsOrphaned = count == 0
	if !v.IsOrphaned {
		v.SafeToDelete = false
		return v, nil
	}

	v.SafeToDelete = true

	if s.now().Sub(asset.UploadedAt) < s.grace {
		v.SafeToDelete = false
		v.Warnings = append(v.Warnings, "uploaded too recently")
	}

	exists, err := s.storage.Exists(ctx, storageKey)
	switch {
	case err != nil && errors.Is(err, gcs.ErrExistenceUnknown):
		v.SafeToDelete = false
		v.Warnings = append(v.Warnings, "cannot verify storage existence")
	case err != nil:
		v.SafeToDelete = false
		v.Warnings = append(v.Warnings, "cannot verify storage existence")
	case !exists:
		// Already gone from the blob store; informational only.
		v.Warnings = append(v.Warnings, "object already absent from storage")
	}

	occurrences, err := s.content.CountOccurrences(ctx, storageKey)
	if err != nil {
		// An unreadable content table must not unblock a delete.
		v.SafeToDelete = false
		v.Warnings = append(v.Warnings, "content scan failed")
		s.logg.WithContext(ctx).Warn().Err(err).
			Str("storage_key", storageKey).
			Msg("content scan failed during verification")
	} else {
		for _, occ := range occurrences {
			v.Warnings = append(v.Warnings,
				fmt.Sprintf("key appears %d time(s) in %s bodies", occ.Count, occ.ContentType))
			if s.contentScanBlocks {
				v.SafeToDelete = false
			}
		}
	}

	return v, nil
}

func (s *service) VerifyBatch(ctx context.Context, storageKeys []string) ([]Verification, error) {
	out := make([]Verification, 0, len(storageKeys))
	for _, key := range storageKeys {
		v, err := s.Verify(ctx, key)
		if err != nil {
			// A failed verification marks the candidate unsafe instead of
			// aborting the batch.
			out = append(out, Verification{
				StorageKey:   key,
				SafeToDelete: false,
				Warnings:     []string{fmt.Sprintf("verification failed: %v", err)},
			})
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
