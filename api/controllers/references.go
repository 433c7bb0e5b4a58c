package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/api/responses"
	"github.com/inkpress-cms/mediakeeper/api/validators"
	"github.com/inkpress-cms/mediakeeper/internal/tracker"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
	pkgerrors "github.com/inkpress-cms/mediakeeper/pkg/errors"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

type reconcileRequest struct {
	ContentType      string `json:"contentType" validate:"required,oneof=article newsletter podcast"`
	ContentID        string `json:"contentId" validate:"required,uuid"`
	ReferenceContext string `json:"referenceContext" validate:"required,oneof=content cover_image thumbnail"`
	Content          string `json:"content"`
}

// ReferencesReconcile re-syncs the reference rows for one content item from
// its current body. Content services call this on every save.
func ReferencesReconcile(svc tracker.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reconcileRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contentType, err := enums.ParseContentType(req.ContentType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid content type"))
			return
		}
		refContext, err := enums.ParseReferenceContext(req.ReferenceContext)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reference context"))
			return
		}
		contentID, err := uuid.Parse(req.ContentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid content id"))
			return
		}

		diff, err := svc.Reconcile(r.Context(), contentType, contentID, refContext, req.Content)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, diff)
	}
}
