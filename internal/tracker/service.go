package tracker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

// Diff summarizes one reconciliation pass.
type Diff struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Total   int `json:"total"`
}

// Service maintains the reference graph between content items and assets.
type Service interface {
	// Reconcile diffs the references extracted from a content body against
	// the stored rows for the (contentType, contentID, context) triple,
	// inserting new edges and deleting stale ones in one transaction.
	Reconcile(ctx context.Context, contentType enums.ContentType, contentID uuid.UUID, refContext enums.ReferenceContext, content string) (Diff, error)
}

type assetResolver interface {
	FindIDsByStorageKeys(ctx context.Context, keys []string) (map[string]uuid.UUID, error)
}

type referenceStore interface {
	ListForTriple(ctx context.Context, contentType enums.ContentType, contentID uuid.UUID, refContext enums.ReferenceContext) ([]models.MediaReference, error)
	CreateWithTx(tx *gorm.DB, ref *models.MediaReference) error
	DeleteWithTx(tx *gorm.DB, id uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, storageKey string)
}

type Params struct {
	DB         txRunner
	References referenceStore
	Assets     assetResolver
	Cache      cacheInvalidator
	Logger     *logger.Logger
}

type service struct {
	db     txRunner
	refs   referenceStore
	assets assetResolver
	cache  cacheInvalidator
	logg   *logger.Logger
}

func NewService(p Params) (Service, error) {
	if p.DB == nil || p.References == nil || p.Assets == nil || p.Logger == nil {
		return nil, fmt.Errorf("tracker: missing required dependencies")
	}
	return &service{
		db:     p.DB,
		refs:   p.References,
		assets: p.Assets,
		cache:  p.Cache,
		logg:   p.Logger,
	}, nil
}

func (s *service) Reconcile(ctx context.Context, contentType enums.ContentType, contentID uuid.UUID, refContext enums.ReferenceContext, content string) (Diff, error) {
	extracted := ExtractReferences(content)

	resolved, err := s.assets.FindIDsByStorageKeys(ctx, extracted)
	if err != nil {
		return Diff{}, fmt.Errorf("resolve extracted keys: %w", err)
	}

	current, err := s.refs.ListForTriple(ctx, contentType, contentID, refContext)
	if err != nil {
		return Diff{}, err
	}

	wanted := make(map[uuid.UUID]string, len(resolved))
	for key, id := range resolved {
		wanted[id] = key
	}
	have := make(map[uuid.UUID]models.MediaReference, len(current))
	for _, ref := range current {
		have[ref.MediaID] = ref
	}

	var stale []models.MediaReference
	for id, ref := range have {
		if _, ok := wanted[id]; !ok {
			stale = append(stale, ref)
		}
	}
	var fresh []uuid.UUID
	for id := range wanted {
		if _, ok := have[id]; !ok {
			fresh = append(fresh, id)
		}
	}

	diff := Diff{
		Added:   len(fresh),
		Removed: len(stale),
		Total:   len(wanted),
	}
	if diff.Added == 0 && diff.Removed == 0 {
		return diff, nil
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, ref := range stale {
			if err := s.refs.DeleteWithTx(tx, ref.ID); err != nil {
				return err
			}
		}
		for _, mediaID := range fresh {
			ref := &models.MediaReference{
				MediaID:          mediaID,
				ContentType:      contentType,
				ContentID:        contentID,
				ReferenceContext: refContext,
			}
			if err := s.refs.CreateWithTx(tx, ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Diff{}, fmt.Errorf("reconcile references: %w", err)
	}

	if s.cache != nil {
		// Stale rows only carry media ids; their usage entries are covered
		// by the broad namespace eviction inside Invalidate.
		if len(wanted) == 0 {
			s.cache.Invalidate(ctx, "")
		}
		for _, key := range wanted {
			s.cache.Invalidate(ctx, key)
		}
	}

	s.logg.WithContext(ctx).Info().
		Str("content_type", contentType.String()).
		Str("content_id", contentID.String()).
		Str("reference_context", refContext.String()).
		Int("added", diff.Added).
		Int("removed", diff.Removed).
		Int("total", diff.Total).
		Msg("references reconciled")

	return diff, nil
}
