package controllers

import (
	"net/http"

	"github.com/inkpress-cms/mediakeeper/api/responses"
	"github.com/inkpress-cms/mediakeeper/internal/monitor"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

// MonitorMetrics reports engine health, orphan aggregates, and alerts.
func MonitorMetrics(svc monitor.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics, err := svc.GetMetrics(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, metrics)
	}
}

// MonitorRecommendations reports plain-text operator guidance.
func MonitorRecommendations(svc monitor.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := svc.Recommendations(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"recommendations": recs})
	}
}
