package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/api/middleware"
	"github.com/inkpress-cms/mediakeeper/api/responses"
	"github.com/inkpress-cms/mediakeeper/api/validators"
	"github.com/inkpress-cms/mediakeeper/internal/cleanup"
	"github.com/inkpress-cms/mediakeeper/internal/verifier"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
	pkgerrors "github.com/inkpress-cms/mediakeeper/pkg/errors"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

type verifyRequest struct {
	StorageKeys []string `json:"storageKeys" validate:"required,min=1,max=500"`
}

type runRequest struct {
	StorageKeys []string `json:"storageKeys" validate:"required,min=1,max=500"`
	DryRun      bool     `json:"dryRun"`
}

// OrphanVerify runs the verifier over the submitted keys without mutating
// anything.
func OrphanVerify(svc verifier.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		verifications, err := svc.VerifyBatch(r.Context(), req.StorageKeys)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeVerification, err, "verification failed"))
			return
		}
		responses.WriteSuccess(w, verifications)
	}
}

// CleanupRun executes a manual cleanup over the submitted candidates.
func CleanupRun(exec cleanup.Executor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var actorID *uuid.UUID
		if actor := middleware.ActorIDFromContext(r.Context()); actor != "" {
			if id, err := uuid.Parse(actor); err == nil {
				actorID = &id
			}
		}

		result, err := exec.Run(r.Context(), req.StorageKeys, req.DryRun, enums.OperationTypeManual, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CleanupOperations lists recent cleanup runs, newest first.
func CleanupOperations(repo *cleanup.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := intQuery(r, "limit", 50)
		ops, err := repo.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ops)
	}
}
