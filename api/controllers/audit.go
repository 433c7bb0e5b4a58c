package controllers

import (
	"net/http"

	"github.com/inkpress-cms/mediakeeper/api/responses"
	"github.com/inkpress-cms/mediakeeper/internal/gate"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

// AuditList returns the newest audit trail rows for the admin surface.
func AuditList(repo *gate.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := intQuery(r, "limit", 100)
		rows, err := repo.ListRecent(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
