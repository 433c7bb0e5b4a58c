package assets

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/internal/querycache"
	"github.com/inkpress-cms/mediakeeper/pkg/db"
	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/errors"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
	"github.com/inkpress-cms/mediakeeper/pkg/pagination"
	"github.com/inkpress-cms/mediakeeper/pkg/storage/gcs"
)

// uploadURLTTL bounds how long a direct-upload slot stays valid.
const uploadURLTTL = 15 * time.Minute

// UploadInput carries one upload registration.
type UploadInput struct {
	FileName    string
	Folder      string
	ContentType string
	Payload     []byte
	UploadedBy  *uuid.UUID
	Metadata    map[string]string
}

// UploadURLInput asks for a direct-upload slot.
type UploadURLInput struct {
	FileName    string
	Folder      string
	ContentType string
}

// UploadTicket is a short-lived signed PUT URL for one object. The client
// uploads directly to storage and registers the metadata afterwards.
type UploadTicket struct {
	StorageKey string    `json:"storageKey"`
	URL        string    `json:"url"`
	Method     string    `json:"method"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Page is one cursor page of assets.
type Page struct {
	Items      []models.MediaAsset `json:"items"`
	NextCursor string              `json:"nextCursor,omitempty"`
}

// SearchResult is a page plus group-by facets.
type SearchResult struct {
	Page
	FormatFacets []FacetCount `json:"formatFacets"`
	FolderFacets []FacetCount `json:"folderFacets"`
}

// UsageReport describes where one asset is referenced.
type UsageReport struct {
	Asset      models.MediaAsset       `json:"asset"`
	References []models.MediaReference `json:"references"`
	InUse      bool                    `json:"inUse"`
}

// Stats aggregates the asset table for the dashboard surface.
type Stats struct {
	Totals   Totals       `json:"totals"`
	ByFormat []FacetCount `json:"byFormat"`
	ByFolder []FacetCount `json:"byFolder"`
	Orphans  OrphanStats  `json:"orphans"`
}

type referenceReader interface {
	ListByMediaID(ctx context.Context, mediaID uuid.UUID) ([]models.MediaReference, error)
}

type objectStore interface {
	Upload(ctx context.Context, key, contentType string, payload []byte) (*gcs.ObjectInfo, error)
	SignedURL(bucket, object, contentType string, expires time.Duration) (string, error)
}

// Service is the read/registration surface over the asset metadata store.
// All list-shaped reads go through the query cache.
type Service interface {
	RegisterUpload(ctx context.Context, input UploadInput) (*models.MediaAsset, error)
	CreateUploadURL(ctx context.Context, input UploadURLInput) (*UploadTicket, error)
	GetByStorageKey(ctx context.Context, storageKey string) (*models.MediaAsset, error)
	List(ctx context.Context, filter ListFilter, page pagination.Params) (*Page, error)
	Search(ctx context.Context, query string, filter ListFilter, page pagination.Params) (*SearchResult, error)
	Usage(ctx context.Context, storageKey string) (*UsageReport, error)
	OrphanList(ctx context.Context, olderThanDays, limit int) ([]models.MediaAsset, error)
	GetStats(ctx context.Context) (*Stats, error)
}

type Params struct {
	Repo       *Repository
	References referenceReader
	Storage    objectStore
	Cache      *querycache.Manager
	Logger     *logger.Logger
}

type service struct {
	repo    *Repository
	refs    referenceReader
	storage objectStore
	cache   *querycache.Manager
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(p Params) (Service, error) {
	if p.Repo == nil || p.References == nil || p.Storage == nil || p.Cache == nil || p.Logger == nil {
		return nil, fmt.Errorf("assets: missing required dependencies")
	}
	return &service{
		repo:    p.Repo,
		refs:    p.References,
		storage: p.Storage,
		cache:   p.Cache,
		logg:    p.Logger,
		now:     time.Now,
	}, nil
}

func (s *service) RegisterUpload(ctx context.Context, input UploadInput) (*models.MediaAsset, error) {
	if input.FileName == "" || len(input.Payload) == 0 {
		return nil, errors.New(errors.CodeValidation, "file name and payload are required")
	}
	folder, storageKey := storageKeyFor(input.Folder, input.FileName, input.ContentType)

	info, err := s.storage.Upload(ctx, storageKey, input.ContentType, input.Payload)
	if err != nil {
		return nil, fmt.Errorf("upload object %s: %w", storageKey, err)
	}

	original := input.FileName
	asset := &models.MediaAsset{
		StorageKey:       info.Key,
		URL:              info.URL,
		FileName:         path.Base(info.Key),
		OriginalFileName: &original,
		SizeBytes:        info.SizeBytes,
		Format:           info.Format,
		Folder:           folder,
		UploadedBy:       input.UploadedBy,
		Metadata:         input.Metadata,
	}
	if err := s.repo.Create(ctx, asset); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, errors.New(errors.CodeConflict, "storage key already registered")
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, asset.StorageKey)
	s.logg.WithContext(ctx).Info().
		Str("storage_key", asset.StorageKey).
		Int64("size_bytes", asset.SizeBytes).
		Msg("asset registered")
	return asset, nil
}

// CreateUploadURL signs a PUT URL so large files bypass the API body. The
// key is minted here; the client registers the metadata once the PUT lands.
func (s *service) CreateUploadURL(ctx context.Context, input UploadURLInput) (*UploadTicket, error) {
	if input.FileName == "" || input.ContentType == "" {
		return nil, errors.New(errors.CodeValidation, "file name and content type are required")
	}
	_, storageKey := storageKeyFor(input.Folder, input.FileName, input.ContentType)

	signed, err := s.storage.SignedURL("", storageKey, input.ContentType, uploadURLTTL)
	if err != nil {
		return nil, fmt.Errorf("sign upload url for %s: %w", storageKey, err)
	}

	s.logg.WithContext(ctx).Info().
		Str("storage_key", storageKey).
		Msg("upload url issued")
	return &UploadTicket{
		StorageKey: storageKey,
		URL:        signed,
		Method:     "PUT",
		ExpiresAt:  s.now().Add(uploadURLTTL),
	}, nil
}

// storageKeyFor derives the canonical object key for a new upload: folder
// plus a fresh uuid plus the extension inferred from the name or MIME type.
func storageKeyFor(folder, fileName, contentType string) (string, string) {
	if folder == "" {
		folder = "uploads"
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = strings.TrimPrefix(exts[0], ".")
		}
	}
	return folder, fmt.Sprintf("%s/%s.%s", folder, uuid.NewString(), ext)
}

func (s *service) GetByStorageKey(ctx context.Context, storageKey string) (*models.MediaAsset, error) {
	asset, err := s.repo.FindByStorageKey(ctx, storageKey)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errors.New(errors.CodeNotFound, "asset not found")
		}
		return nil, err
	}
	return asset, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, page pagination.Params) (*Page, error) {
	key, err := querycache.QueryKey(querycache.NamespaceList, struct {
		Filter ListFilter        `json:"filter"`
		Page   pagination.Params `json:"page"`
	}{filter, page})
	if err != nil {
		return nil, err
	}

	var out Page
	err = s.cache.GetOrLoad(ctx, querycache.NamespaceList, key, &out, func(ctx context.Context) error {
		loaded, err := s.loadPage(ctx, "", filter, page)
		if err != nil {
			return err
		}
		out = *loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *service) Search(ctx context.Context, query string, filter ListFilter, page pagination.Params) (*SearchResult, error) {
	key, err := querycache.QueryKey(querycache.NamespaceSearch, struct {
		Query  string            `json:"query"`
		Filter ListFilter        `json:"filter"`
		Page   pagination.Params `json:"page"`
	}{query, filter, page})
	if err != nil {
		return nil, err
	}

	var out SearchResult
	err = s.cache.GetOrLoad(ctx, querycache.NamespaceSearch, key, &out, func(ctx context.Context) error {
		loaded, err := s.loadPage(ctx, query, filter, page)
		if err != nil {
			return err
		}
		formats, err := s.repo.Facets(ctx, "format", query, filter)
		if err != nil {
			return err
		}
		folders, err := s.repo.Facets(ctx, "folder", query, filter)
		if err != nil {
			return err
		}
		out = SearchResult{Page: *loaded, FormatFacets: formats, FolderFacets: folders}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *service) Usage(ctx context.Context, storageKey string) (*UsageReport, error) {
	key := querycache.EntityKey(querycache.NamespaceUsage, storageKey)

	var out UsageReport
	err := s.cache.GetOrLoad(ctx, querycache.NamespaceUsage, key, &out, func(ctx context.Context) error {
		asset, err := s.GetByStorageKey(ctx, storageKey)
		if err != nil {
			return err
		}
		refs, err := s.refs.ListByMediaID(ctx, asset.ID)
		if err != nil {
			return err
		}
		out = UsageReport{Asset: *asset, References: refs, InUse: len(refs) > 0}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *service) OrphanList(ctx context.Context, olderThanDays, limit int) ([]models.MediaAsset, error) {
	if olderThanDays < 0 {
		olderThanDays = 0
	}
	key, err := querycache.QueryKey(querycache.NamespaceOrphans, struct {
		OlderThanDays int `json:"olderThanDays"`
		Limit         int `json:"limit"`
	}{olderThanDays, limit})
	if err != nil {
		return nil, err
	}

	var out []models.MediaAsset
	err = s.cache.GetOrLoad(ctx, querycache.NamespaceOrphans, key, &out, func(ctx context.Context) error {
		cutoff := s.now().AddDate(0, 0, -olderThanDays)
		rows, err := s.repo.Orphans(ctx, cutoff, limit)
		if err != nil {
			return err
		}
		out = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) GetStats(ctx context.Context) (*Stats, error) {
	key, err := querycache.QueryKey(querycache.NamespaceStats, struct {
		Scope string `json:"scope"`
	}{"global"})
	if err != nil {
		return nil, err
	}

	var out Stats
	err = s.cache.GetOrLoad(ctx, querycache.NamespaceStats, key, &out, func(ctx context.Context) error {
		totals, err := s.repo.TableTotals(ctx)
		if err != nil {
			return err
		}
		byFormat, err := s.repo.Facets(ctx, "format", "", ListFilter{})
		if err != nil {
			return err
		}
		byFolder, err := s.repo.Facets(ctx, "folder", "", ListFilter{})
		if err != nil {
			return err
		}
		orphans, err := s.repo.OrphanAggregates(ctx)
		if err != nil {
			return err
		}
		out = Stats{Totals: totals, ByFormat: byFormat, ByFolder: byFolder, Orphans: orphans}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *service) loadPage(ctx context.Context, query string, filter ListFilter, page pagination.Params) (*Page, error) {
	limit := pagination.NormalizeLimit(page.Limit)
	cur, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, errors.New(errors.CodeValidation, "invalid pagination cursor")
	}

	var rows []models.MediaAsset
	if query == "" {
		rows, err = s.repo.List(ctx, filter, cur, pagination.LimitWithBuffer(limit))
	} else {
		rows, err = s.repo.Search(ctx, query, filter, cur, pagination.LimitWithBuffer(limit))
	}
	if err != nil {
		return nil, err
	}

	out := &Page{Items: rows}
	if len(rows) > limit {
		out.Items = rows[:limit]
		last := out.Items[limit-1]
		out.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			UploadedAt: last.UploadedAt,
			ID:         last.ID,
		})
	}
	return out, nil
}
