package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/internal/assets"
	"github.com/inkpress-cms/mediakeeper/internal/cleanup"
	"github.com/inkpress-cms/mediakeeper/pkg/config"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

const gib = float64(1 << 30)

// Alert is a derived advisory; not persisted.
type Alert struct {
	Type      string              `json:"type"`
	Severity  enums.AlertSeverity `json:"severity"`
	Message   string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
	Data      map[string]any      `json:"data,omitempty"`
}

// Metrics is the dashboard snapshot for the cleanup engine.
type Metrics struct {
	TotalOrphans      int64              `json:"totalOrphans"`
	TotalOrphanSize   int64              `json:"totalOrphanSize"`
	OrphanPercentage  float64            `json:"orphanPercentage"`
	LastCleanupTime   *time.Time         `json:"lastCleanupTime,omitempty"`
	CleanupFrequency  int64              `json:"cleanupFrequency"`
	AverageCleanupSize float64           `json:"averageCleanupSize"`
	FailureRate       float64            `json:"failureRate"`
	Health            enums.HealthStatus `json:"health"`
	Alerts            []Alert            `json:"alerts"`
}

type orphanReader interface {
	OrphanAggregates(ctx context.Context) (assets.OrphanStats, error)
	TableTotals(ctx context.Context) (assets.Totals, error)
}

type historyReader interface {
	History(ctx context.Context, now time.Time) (cleanup.HistoryStats, error)
}

type scheduleCounter interface {
	CountByEnabled(ctx context.Context) (total, enabled int64, err error)
}

// Service derives engine health, alerts, and operator recommendations, and
// receives the executor's progress and completion hooks.
type Service interface {
	GetMetrics(ctx context.Context) (*Metrics, error)
	Recommendations(ctx context.Context) ([]string, error)
	Progress(ctx context.Context, p cleanup.Progress)
	Complete(ctx context.Context, operationID uuid.UUID, status enums.OperationStatus, result cleanup.Result)
}

type Params struct {
	Assets     orphanReader
	Operations historyReader
	Schedules  scheduleCounter
	Thresholds config.AlertsConfig
	Logger     *logger.Logger
}

type service struct {
	assets     orphanReader
	operations historyReader
	schedules  scheduleCounter
	thresholds config.AlertsConfig
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(p Params) (Service, error) {
	if p.Assets == nil || p.Operations == nil || p.Schedules == nil || p.Logger == nil {
		return nil, fmt.Errorf("monitor: missing required dependencies")
	}
	return &service{
		assets:     p.Assets,
		operations: p.Operations,
		schedules:  p.Schedules,
		thresholds: p.Thresholds,
		logg:       p.Logger,
		now:        time.Now,
	}, nil
}

func (s *service) GetMetrics(ctx context.Context) (*Metrics, error) {
	now := s.now()

	orphans, err := s.assets.OrphanAggregates(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := s.assets.TableTotals(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.operations.History(ctx, now)
	if err != nil {
		return nil, err
	}
	totalSchedules, enabledSchedules, err := s.schedules.CountByEnabled(ctx)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		TotalOrphans:       orphans.Count,
		TotalOrphanSize:    orphans.TotalBytes,
		CleanupFrequency:   history.RunsLast7Days,
		AverageCleanupSize: history.AvgSpaceFreed,
		LastCleanupTime:    history.LastCompletedAt,
	}
	if totals.Count > 0 {
		m.OrphanPercentage = float64(orphans.Count) / float64(totals.Count) * 100
	}
	if history.Total > 0 {
		m.FailureRate = float64(history.Failed) / float64(history.Total) * 100
	}

	m.Alerts = s.evaluateAlerts(now, m, orphans, totalSchedules, enabledSchedules)
	m.Health = s.classify(m)
	return m, nil
}

// evaluateAlerts applies each rule independently; alerts may co-occur.
func (s *service) evaluateAlerts(now time.Time, m *Metrics, orphans assets.OrphanStats, totalSchedules, enabledSchedules int64) []Alert {
	alerts := []Alert{}

	if m.OrphanPercentage > s.thresholds.OrphanPercentWarn {
		alerts = append(alerts, Alert{
			Type:      "orphan_percentage",
			Severity:  enums.AlertSeverityWarning,
			Message:   fmt.Sprintf("%.1f%% of assets are orphaned", m.OrphanPercentage),
			Timestamp: now,
			Data:      map[string]any{"orphanPercentage": m.OrphanPercentage},
		})
	}
	if float64(m.TotalOrphanSize) > s.thresholds.OrphanStorageGiBWarn*gib {
		alerts = append(alerts, Alert{
			Type:      "orphan_storage",
			Severity:  enums.AlertSeverityWarning,
			Message:   fmt.Sprintf("orphaned assets occupy %.2f GiB", float64(m.TotalOrphanSize)/gib),
			Timestamp: now,
			Data:      map[string]any{"totalOrphanSize": m.TotalOrphanSize},
		})
	}
	if m.FailureRate > s.thresholds.FailureRatePercentError {
		alerts = append(alerts, Alert{
			Type:      "failure_rate",
			Severity:  enums.AlertSeverityError,
			Message:   fmt.Sprintf("%.1f%% of cleanup operations failed", m.FailureRate),
			Timestamp: now,
			Data:      map[string]any{"failureRate": m.FailureRate},
		})
	}
	if totalSchedules > 0 && enabledSchedules == 0 {
		alerts = append(alerts, Alert{
			Type:      "no_enabled_schedules",
			Severity:  enums.AlertSeverityWarning,
			Message:   "cleanup schedules exist but none are enabled",
			Timestamp: now,
			Data:      map[string]any{"totalSchedules": totalSchedules},
		})
	}
	if orphans.OldestAt != nil {
		age := now.Sub(*orphans.OldestAt)
		staleAfter := time.Duration(s.thresholds.StaleOrphanDays) * 24 * time.Hour
		if age > staleAfter {
			alerts = append(alerts, Alert{
				Type:      "stale_orphans",
				Severity:  enums.AlertSeverityInfo,
				Message:   fmt.Sprintf("oldest orphan is %d days old", int(age.Hours()/24)),
				Timestamp: now,
				Data:      map[string]any{"oldestAt": orphans.OldestAt},
			})
		}
	}
	return alerts
}

func (s *service) classify(m *Metrics) enums.HealthStatus {
	hasError := false
	hasWarning := false
	for _, a := range m.Alerts {
		switch a.Severity {
		case enums.AlertSeverityError, enums.AlertSeverityCritical:
			hasError = true
		case enums.AlertSeverityWarning:
			hasWarning = true
		}
	}
	if hasError || m.FailureRate > s.thresholds.FailureRatePercentCrit {
		return enums.HealthStatusCritical
	}
	if hasWarning || m.OrphanPercentage > s.thresholds.OrphanPercentDegraded {
		return enums.HealthStatusWarning
	}
	return enums.HealthStatusHealthy
}

// Recommendations derives operator guidance from the same thresholds as the
// alert rules; identical metrics always produce identical text.
func (s *service) Recommendations(ctx context.Context) ([]string, error) {
	m, err := s.GetMetrics(ctx)
	if err != nil {
		return nil, err
	}

	var recs []string
	if m.OrphanPercentage > s.thresholds.OrphanPercentWarn {
		recs = append(recs, "Run a cleanup operation: more than a fifth of stored assets have no references.")
	}
	if float64(m.TotalOrphanSize) > s.thresholds.OrphanStorageGiBWarn*gib {
		recs = append(recs, "Reclaim storage: orphaned assets exceed the storage threshold.")
	}
	if m.FailureRate > s.thresholds.FailureRatePercentError {
		recs = append(recs, "Investigate failing cleanup operations before scheduling further runs.")
	}
	if m.CleanupFrequency == 0 {
		recs = append(recs, "No cleanup ran in the last 7 days; verify schedules are enabled.")
	}
	if len(recs) == 0 {
		recs = append(recs, "No action needed: cleanup engine is healthy.")
	}
	return recs, nil
}

// Progress logs incremental deletion progress pushed by the executor.
func (s *service) Progress(ctx context.Context, p cleanup.Progress) {
	s.logg.WithContext(ctx).Debug().
		Str("operation_id", p.OperationID.String()).
		Int("files_processed", p.FilesProcessed).
		Int("files_deleted", p.FilesDeleted).
		Int64("space_freed", p.SpaceFreed).
		Str("current_key", p.CurrentKey).
		Msg("cleanup progress")
}

// Complete logs the terminal state of a cleanup run.
func (s *service) Complete(ctx context.Context, operationID uuid.UUID, status enums.OperationStatus, result cleanup.Result) {
	event := s.logg.WithContext(ctx).Info()
	if status == enums.OperationStatusFailed {
		event = s.logg.WithContext(ctx).Warn()
	}
	event.
		Str("operation_id", operationID.String()).
		Str("status", status.String()).
		Int("processed", result.Processed).
		Int("deleted", result.Deleted).
		Int("failed", result.Failed).
		Int64("freed_space", result.FreedSpace).
		Bool("dry_run", result.DryRun).
		Msg("cleanup run finished")
}
