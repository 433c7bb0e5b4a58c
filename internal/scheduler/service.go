package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/internal/cleanup"
	"github.com/inkpress-cms/mediakeeper/pkg/db"
	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
	"github.com/inkpress-cms/mediakeeper/pkg/errors"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

// ScheduleInput carries a create or update request.
type ScheduleInput struct {
	Frequency     string `json:"frequency" validate:"required"`
	Time          string `json:"time" validate:"required"`
	OlderThanDays int    `json:"olderThanDays" validate:"required"`
	DryRun        bool   `json:"dryRun"`
	Enabled       bool   `json:"enabled"`
	MaxFiles      *int   `json:"maxFiles,omitempty"`
}

// RunRecord ties one schedule to the outcome of its triggered cleanup.
type RunRecord struct {
	ScheduleID uuid.UUID       `json:"scheduleId"`
	Result     *cleanup.Result `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type orphanLister interface {
	Orphans(ctx context.Context, olderThan time.Time, limit int) ([]models.MediaAsset, error)
}

// Service manages schedule records and triggers due schedules.
type Service interface {
	Create(ctx context.Context, input ScheduleInput) (*models.CleanupSchedule, error)
	Update(ctx context.Context, id uuid.UUID, input ScheduleInput) (*models.CleanupSchedule, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.CleanupSchedule, error)
	List(ctx context.Context) ([]models.CleanupSchedule, error)
	CheckAndExecute(ctx context.Context) ([]RunRecord, error)
}

type Params struct {
	Repo         *Repository
	Assets       orphanLister
	Executor     cleanup.Executor
	Logger       *logger.Logger
	MaxBatchSize int
}

type service struct {
	repo         *Repository
	assets       orphanLister
	executor     cleanup.Executor
	logg         *logger.Logger
	maxBatchSize int
	now          func() time.Time
}

func NewService(p Params) (Service, error) {
	if p.Repo == nil || p.Assets == nil || p.Executor == nil || p.Logger == nil {
		return nil, fmt.Errorf("scheduler: missing required dependencies")
	}
	maxBatch := p.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = 500
	}
	return &service{
		repo:         p.Repo,
		assets:       p.Assets,
		executor:     p.Executor,
		logg:         p.Logger,
		maxBatchSize: maxBatch,
		now:          time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input ScheduleInput) (*models.CleanupSchedule, error) {
	schedule, err := scheduleFromInput(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input ScheduleInput) (*models.CleanupSchedule, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := scheduleFromInput(input)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.CleanupSchedule, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errors.New(errors.CodeNotFound, "cleanup schedule not found")
		}
		return nil, err
	}
	return schedule, nil
}

func (s *service) List(ctx context.Context) ([]models.CleanupSchedule, error) {
	return s.repo.List(ctx)
}

// CheckAndExecute runs every enabled schedule that is due right now. One
// schedule's failure never prevents the others from running.
func (s *service) CheckAndExecute(ctx context.Context) ([]RunRecord, error) {
	now := s.now()
	schedules, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	var records []RunRecord
	for _, schedule := range schedules {
		if !IsDue(schedule, now) {
			continue
		}
		// The poll interval is shorter than the due window, so the same
		// slot stays due across several passes. A slot already claimed
		// this window is skipped.
		if schedule.LastRunAt != nil && now.Sub(*schedule.LastRunAt) < dueWindow {
			continue
		}
		record := RunRecord{ScheduleID: schedule.ID}

		if err := s.repo.MarkRan(ctx, schedule.ID, now); err != nil {
			record.Error = err.Error()
			records = append(records, record)
			s.logg.WithContext(ctx).Warn().Err(err).
				Str("schedule_id", schedule.ID.String()).
				Msg("could not claim schedule slot")
			continue
		}

		limit := s.maxBatchSize
		if schedule.MaxFiles != nil && *schedule.MaxFiles > 0 && *schedule.MaxFiles < limit {
			limit = *schedule.MaxFiles
		}
		cutoff := now.AddDate(0, 0, -schedule.OlderThanDays)

		candidates, err := s.assets.Orphans(ctx, cutoff, limit)
		if err != nil {
			record.Error = err.Error()
			records = append(records, record)
			s.logg.WithContext(ctx).Warn().Err(err).
				Str("schedule_id", schedule.ID.String()).
				Msg("could not load cleanup candidates")
			continue
		}
		keys := make([]string, len(candidates))
		for i, c := range candidates {
			keys[i] = c.StorageKey
		}

		result, err := s.executor.Run(ctx, keys, schedule.DryRun, enums.OperationTypeScheduled, nil)
		if err != nil {
			record.Error = err.Error()
			s.logg.WithContext(ctx).Warn().Err(err).
				Str("schedule_id", schedule.ID.String()).
				Msg("scheduled cleanup failed")
		} else {
			record.Result = &result
		}
		records = append(records, record)
	}
	return records, nil
}

func scheduleFromInput(input ScheduleInput) (*models.CleanupSchedule, error) {
	frequency, err := enums.ParseScheduleFrequency(input.Frequency)
	if err != nil {
		return nil, errors.New(errors.CodeScheduleConfig, fmt.Sprintf("invalid frequency %q", input.Frequency))
	}
	if _, _, err := parseClock(input.Time); err != nil {
		return nil, errors.New(errors.CodeScheduleConfig, fmt.Sprintf("invalid time %q: want HH:MM", input.Time))
	}
	if input.OlderThanDays < 1 {
		return nil, errors.New(errors.CodeScheduleConfig, "olderThanDays must be at least 1")
	}
	if input.MaxFiles != nil && *input.MaxFiles < 1 {
		return nil, errors.New(errors.CodeScheduleConfig, "maxFiles must be at least 1 when set")
	}
	return &models.CleanupSchedule{
		Frequency:     frequency,
		Time:          input.Time,
		OlderThanDays: input.OlderThanDays,
		DryRun:        input.DryRun,
		Enabled:       input.Enabled,
		MaxFiles:      input.MaxFiles,
	}, nil
}
