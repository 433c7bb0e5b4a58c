package controllers

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/api/middleware"
	"github.com/inkpress-cms/mediakeeper/api/responses"
	"github.com/inkpress-cms/mediakeeper/api/validators"
	"github.com/inkpress-cms/mediakeeper/internal/assets"
	pkgerrors "github.com/inkpress-cms/mediakeeper/pkg/errors"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
	"github.com/inkpress-cms/mediakeeper/pkg/pagination"
)

type uploadRequest struct {
	FileName    string            `json:"fileName" validate:"required"`
	Folder      string            `json:"folder"`
	ContentType string            `json:"contentType" validate:"required"`
	Data        string            `json:"data" validate:"required"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func AssetUpload(svc assets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req uploadRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "data must be base64-encoded"))
			return
		}

		var uploadedBy *uuid.UUID
		if actor := middleware.ActorIDFromContext(r.Context()); actor != "" {
			if id, err := uuid.Parse(actor); err == nil {
				uploadedBy = &id
			}
		}

		asset, err := svc.RegisterUpload(r.Context(), assets.UploadInput{
			FileName:    req.FileName,
			Folder:      req.Folder,
			ContentType: req.ContentType,
			Payload:     payload,
			UploadedBy:  uploadedBy,
			Metadata:    req.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, asset)
	}
}

type uploadURLRequest struct {
	FileName    string `json:"fileName" validate:"required"`
	Folder      string `json:"folder"`
	ContentType string `json:"contentType" validate:"required"`
}

// AssetUploadURL issues a signed PUT URL for a direct-to-storage upload.
func AssetUploadURL(svc assets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req uploadURLRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ticket, err := svc.CreateUploadURL(r.Context(), assets.UploadURLInput{
			FileName:    req.FileName,
			Folder:      req.Folder,
			ContentType: req.ContentType,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ticket)
	}
}

func AssetList(svc assets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, page := listParams(r)
		result, err := svc.List(r.Context(), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AssetSearch(svc assets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, page := listParams(r)
		result, err := svc.Search(r.Context(), r.URL.Query().Get("q"), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AssetUsage(svc assets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if key == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "key query parameter is required"))
			return
		}
		report, err := svc.Usage(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func AssetStats(svc assets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.GetStats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func AssetOrphans(svc assets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		olderThanDays := intQuery(r, "olderThanDays", 0)
		limit := intQuery(r, "limit", 0)
		orphans, err := svc.OrphanList(r.Context(), olderThanDays, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orphans)
	}
}

func listParams(r *http.Request) (assets.ListFilter, pagination.Params) {
	q := r.URL.Query()
	filter := assets.ListFilter{
		Folder:  q.Get("folder"),
		Format:  q.Get("format"),
		MinSize: int64Query(r, "minSize", 0),
		MaxSize: int64Query(r, "maxSize", 0),
	}
	if from, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		filter.From = from
	}
	if to, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		filter.To = to
	}
	page := pagination.Params{
		Limit:  intQuery(r, "limit", 0),
		Cursor: q.Get("cursor"),
	}
	return filter, page
}

func intQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func int64Query(r *http.Request, name string, fallback int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}
