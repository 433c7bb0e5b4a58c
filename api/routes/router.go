package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkpress-cms/mediakeeper/api/controllers"
	"github.com/inkpress-cms/mediakeeper/api/middleware"
	"github.com/inkpress-cms/mediakeeper/internal/assets"
	"github.com/inkpress-cms/mediakeeper/internal/cleanup"
	"github.com/inkpress-cms/mediakeeper/internal/gate"
	"github.com/inkpress-cms/mediakeeper/internal/monitor"
	"github.com/inkpress-cms/mediakeeper/internal/scheduler"
	"github.com/inkpress-cms/mediakeeper/internal/tracker"
	"github.com/inkpress-cms/mediakeeper/internal/verifier"
	"github.com/inkpress-cms/mediakeeper/pkg/config"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	Pingers    map[string]controllers.Pinger
	Gate       gate.Service
	Audits     *gate.Repository
	Assets     assets.Service
	Tracker    tracker.Service
	Verifier   verifier.Service
	Executor   cleanup.Executor
	Operations *cleanup.Repository
	Monitor    monitor.Service
	Scheduler  scheduler.Service
	Registry   *prometheus.Registry
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Pingers))
	})

	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		guard := func(op gate.Operation) func(http.Handler) http.Handler {
			return middleware.Gate(d.Gate, op, logg)
		}

		r.Route("/assets", func(r chi.Router) {
			r.With(guard(gate.OperationViewAssets)).Get("/", controllers.AssetList(d.Assets, logg))
			r.With(guard(gate.OperationSearchAssets)).Get("/search", controllers.AssetSearch(d.Assets, logg))
			r.With(guard(gate.OperationViewUsage)).Get("/usage", controllers.AssetUsage(d.Assets, logg))
			r.With(guard(gate.OperationViewStats)).Get("/stats", controllers.AssetStats(d.Assets, logg))
			r.With(guard(gate.OperationViewStats)).Get("/orphans", controllers.AssetOrphans(d.Assets, logg))
			r.With(guard(gate.OperationUploadAsset)).Post("/", controllers.AssetUpload(d.Assets, logg))
			r.With(guard(gate.OperationUploadAsset)).Post("/upload-url", controllers.AssetUploadURL(d.Assets, logg))
		})

		r.Route("/references", func(r chi.Router) {
			r.With(guard(gate.OperationReconcileRefs)).Post("/reconcile", controllers.ReferencesReconcile(d.Tracker, logg))
		})

		r.Route("/cleanup", func(r chi.Router) {
			r.With(guard(gate.OperationVerifyOrphans)).Post("/verify", controllers.OrphanVerify(d.Verifier, logg))
			r.With(guard(gate.OperationRunCleanup)).Post("/run", controllers.CleanupRun(d.Executor, logg))
			r.With(guard(gate.OperationViewOperations)).Get("/operations", controllers.CleanupOperations(d.Operations, logg))
			r.With(guard(gate.OperationViewMonitor)).Get("/metrics", controllers.MonitorMetrics(d.Monitor, logg))
			r.With(guard(gate.OperationViewMonitor)).Get("/recommendations", controllers.MonitorRecommendations(d.Monitor, logg))
		})

		r.Route("/schedules", func(r chi.Router) {
			r.With(guard(gate.OperationViewSchedule)).Get("/", controllers.ScheduleList(d.Scheduler, logg))
			r.With(guard(gate.OperationViewSchedule)).Get("/{scheduleId}", controllers.ScheduleGet(d.Scheduler, logg))
			r.With(guard(gate.OperationManageSchedule)).Post("/", controllers.ScheduleCreate(d.Scheduler, logg))
			r.With(guard(gate.OperationManageSchedule)).Put("/{scheduleId}", controllers.ScheduleUpdate(d.Scheduler, logg))
			r.With(guard(gate.OperationManageSchedule)).Delete("/{scheduleId}", controllers.ScheduleDelete(d.Scheduler, logg))
		})

		r.Route("/audit", func(r chi.Router) {
			r.With(guard(gate.OperationViewAudit)).Get("/", controllers.AuditList(d.Audits, logg))
		})
	})

	return r
}
