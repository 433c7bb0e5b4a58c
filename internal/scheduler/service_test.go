package scheduler

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/inkpress-cms/mediakeeper/internal/cleanup"
	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
	pkgerrors "github.com/inkpress-cms/mediakeeper/pkg/errors"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

func setupScheduleTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS cleanup_schedules (
  id TEXT PRIMARY KEY,
  frequency TEXT NOT NULL,
  time TEXT NOT NULL,
  older_than_days INTEGER NOT NULL,
  dry_run INTEGER NOT NULL DEFAULT 0,
  enabled INTEGER NOT NULL DEFAULT 1,
  max_files INTEGER,
  last_run_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

type stubOrphans struct {
	orphans  []models.MediaAsset
	captured struct {
		olderThan time.Time
		limit     int
	}
	err error
}

func (s *stubOrphans) Orphans(_ context.Context, olderThan time.Time, limit int) ([]models.MediaAsset, error) {
	s.captured.olderThan = olderThan
	s.captured.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.orphans, nil
}

type stubExecutor struct {
	runs    [][]string
	dryRuns []bool
	result  cleanup.Result
	err     error
}

func (s *stubExecutor) Run(_ context.Context, keys []string, dryRun bool, _ enums.OperationType, _ *uuid.UUID) (cleanup.Result, error) {
	s.runs = append(s.runs, keys)
	s.dryRuns = append(s.dryRuns, dryRun)
	if s.err != nil {
		return cleanup.Result{}, s.err
	}
	return s.result, nil
}

func newScheduleService(t *testing.T, db *gorm.DB, orphans *stubOrphans, exec *stubExecutor) *service {
	t.Helper()
	svc, err := NewService(Params{
		Repo:         NewRepository(db),
		Assets:       orphans,
		Executor:     exec,
		Logger:       logger.New(logger.Options{ServiceName: "test"}),
		MaxBatchSize: 100,
	})
	require.NoError(t, err)
	return svc.(*service)
}

func seedSchedule(t *testing.T, db *gorm.DB, schedule models.CleanupSchedule) models.CleanupSchedule {
	t.Helper()
	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}
	require.NoError(t, db.Create(&schedule).Error)
	return schedule
}

func TestCreateValidatesInput(t *testing.T) {
	svc := newScheduleService(t, setupScheduleTestDB(t), &stubOrphans{}, &stubExecutor{})

	cases := []struct {
		name  string
		input ScheduleInput
	}{
		{"bad frequency", ScheduleInput{Frequency: "hourly", Time: "02:00", OlderThanDays: 30}},
		{"bad clock", ScheduleInput{Frequency: "daily", Time: "2am", OlderThanDays: 30}},
		{"zero olderThanDays", ScheduleInput{Frequency: "daily", Time: "02:00", OlderThanDays: 0}},
		{"zero maxFiles", ScheduleInput{Frequency: "daily", Time: "02:00", OlderThanDays: 30, MaxFiles: intPtr(0)}},
	}
	for _, tc := range cases {
		_, err := svc.Create(context.Background(), tc.input)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if pkgerrors.As(err).Code() != pkgerrors.CodeScheduleConfig {
			t.Errorf("%s: expected SCHEDULE_CONFIG, got %v", tc.name, err)
		}
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	svc := newScheduleService(t, setupScheduleTestDB(t), &stubOrphans{}, &stubExecutor{})

	created, err := svc.Create(context.Background(), ScheduleInput{
		Frequency:     "weekly",
		Time:          "02:00",
		OlderThanDays: 30,
		Enabled:       true,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ScheduleFrequencyWeekly, got.Frequency)
	require.Equal(t, "02:00", got.Time)
}

func TestGetUnknownScheduleIsNotFound(t *testing.T) {
	svc := newScheduleService(t, setupScheduleTestDB(t), &stubOrphans{}, &stubExecutor{})

	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestCheckAndExecuteRunsDueSchedules(t *testing.T) {
	db := setupScheduleTestDB(t)
	orphans := &stubOrphans{orphans: []models.MediaAsset{
		{ID: uuid.New(), StorageKey: "media/a.jpg"},
		{ID: uuid.New(), StorageKey: "media/b.jpg"},
	}}
	exec := &stubExecutor{result: cleanup.Result{Processed: 2, Deleted: 2}}
	svc := newScheduleService(t, db, orphans, exec)

	due := seedSchedule(t, db, models.CleanupSchedule{
		Frequency:     enums.ScheduleFrequencyDaily,
		Time:          "02:00",
		OlderThanDays: 30,
		Enabled:       true,
		MaxFiles:      intPtr(10),
	})
	seedSchedule(t, db, models.CleanupSchedule{
		Frequency:     enums.ScheduleFrequencyDaily,
		Time:          "14:00",
		OlderThanDays: 30,
		Enabled:       true,
	})
	seedSchedule(t, db, models.CleanupSchedule{
		Frequency:     enums.ScheduleFrequencyDaily,
		Time:          "02:00",
		OlderThanDays: 30,
		Enabled:       false,
	})

	fixed := time.Date(2026, time.August, 31, 2, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	records, err := svc.CheckAndExecute(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, due.ID, records[0].ScheduleID)
	require.NotNil(t, records[0].Result)
	require.Equal(t, 2, records[0].Result.Deleted)

	require.Len(t, exec.runs, 1)
	require.Equal(t, []string{"media/a.jpg", "media/b.jpg"}, exec.runs[0])
	require.Equal(t, 10, orphans.captured.limit)
	require.Equal(t, fixed.AddDate(0, 0, -30), orphans.captured.olderThan)
}

func TestCheckAndExecuteClaimsSlotOnce(t *testing.T) {
	db := setupScheduleTestDB(t)
	orphans := &stubOrphans{orphans: []models.MediaAsset{
		{ID: uuid.New(), StorageKey: "media/a.jpg"},
	}}
	exec := &stubExecutor{result: cleanup.Result{Processed: 1, Deleted: 1}}
	svc := newScheduleService(t, db, orphans, exec)

	seedSchedule(t, db, models.CleanupSchedule{
		Frequency:     enums.ScheduleFrequencyWeekly,
		Time:          "02:00",
		OlderThanDays: 30,
		Enabled:       true,
	})

	// One-minute polls across the whole due window around Monday 02:00.
	slot := time.Date(2026, time.August, 31, 2, 0, 0, 0, time.UTC)
	for offset := -2 * time.Minute; offset <= 2*time.Minute; offset += time.Minute {
		tick := slot.Add(offset)
		svc.now = func() time.Time { return tick }
		_, err := svc.CheckAndExecute(context.Background())
		require.NoError(t, err)
	}
	require.Len(t, exec.runs, 1, "one slot must trigger exactly one run")

	// The claim does not outlive the slot: next week's window fires again.
	nextSlot := slot.AddDate(0, 0, 7)
	svc.now = func() time.Time { return nextSlot }
	_, err := svc.CheckAndExecute(context.Background())
	require.NoError(t, err)
	require.Len(t, exec.runs, 2)
}

func TestCheckAndExecuteCapsBatchSize(t *testing.T) {
	db := setupScheduleTestDB(t)
	orphans := &stubOrphans{}
	svc := newScheduleService(t, db, orphans, &stubExecutor{})

	seedSchedule(t, db, models.CleanupSchedule{
		Frequency:     enums.ScheduleFrequencyDaily,
		Time:          "02:00",
		OlderThanDays: 7,
		Enabled:       true,
		MaxFiles:      intPtr(100000),
	})

	svc.now = func() time.Time { return time.Date(2026, time.August, 31, 2, 0, 0, 0, time.UTC) }

	_, err := svc.CheckAndExecute(context.Background())
	require.NoError(t, err)
	require.Equal(t, 100, orphans.captured.limit)
}

func TestCheckAndExecuteIsolatesFailures(t *testing.T) {
	db := setupScheduleTestDB(t)
	exec := &stubExecutor{err: stderrors.New("executor exploded")}
	svc := newScheduleService(t, db, &stubOrphans{}, exec)

	first := seedSchedule(t, db, models.CleanupSchedule{
		Frequency:     enums.ScheduleFrequencyDaily,
		Time:          "02:00",
		OlderThanDays: 30,
		Enabled:       true,
	})
	second := seedSchedule(t, db, models.CleanupSchedule{
		Frequency:     enums.ScheduleFrequencyDaily,
		Time:          "02:01",
		OlderThanDays: 30,
		Enabled:       true,
	})

	svc.now = func() time.Time { return time.Date(2026, time.August, 31, 2, 0, 30, 0, time.UTC) }

	records, err := svc.CheckAndExecute(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		require.NotEmpty(t, record.Error)
	}
	require.ElementsMatch(t,
		[]uuid.UUID{first.ID, second.ID},
		[]uuid.UUID{records[0].ScheduleID, records[1].ScheduleID})
	require.Len(t, exec.runs, 2, "both schedules must still execute")
}

func intPtr(v int) *int { return &v }
