package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/inkpress-cms/mediakeeper/api/responses"
	"github.com/inkpress-cms/mediakeeper/pkg/config"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

// Pinger is anything that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MediaKeeper-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("X-MediaKeeper-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true
		for name, pinger := range pingers {
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				healthy = false
				checks[name] = "unavailable"
				logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				continue
			}
			checks[name] = "ok"
		}

		if !healthy {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, map[string]any{
				"status": "degraded",
				"checks": checks,
			})
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
