package gate

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/inkpress-cms/mediakeeper/pkg/config"
	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

type stubLimiter struct {
	allowed bool
	count   int64
	err     error
	ttl     time.Duration
	scope   string
	limit   int64
	window  time.Duration
}

func (s *stubLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	s.scope = scope
	s.limit = limit
	s.window = window
	if s.err != nil {
		return false, 0, s.err
	}
	return s.allowed, s.count, nil
}

func (s *stubLimiter) TTL(context.Context, string) (time.Duration, error) {
	return s.ttl, nil
}

func (s *stubLimiter) RateLimitKey(scope string) string { return "ratelimit:" + scope }

type stubAudits struct {
	rows []*models.AuditLog
	err  error
}

func (s *stubAudits) Create(_ context.Context, entry *models.AuditLog) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, entry)
	return nil
}

func limits() config.RateLimitConfig {
	return config.RateLimitConfig{
		UploadWindow:  time.Minute,
		UploadLimit:   10,
		CleanupWindow: 5 * time.Minute,
		CleanupLimit:  2,
		MutateWindow:  time.Minute,
		MutateLimit:   30,
		ViewWindow:    time.Minute,
		ViewLimit:     120,
	}
}

func newGate(t *testing.T, limiter *stubLimiter, audits *stubAudits) Service {
	t.Helper()
	svc, err := NewService(Params{
		Limiter: limiter,
		Audits:  audits,
		Limits:  limits(),
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return svc
}

func TestCheckAccessAllowsMatrixGrant(t *testing.T) {
	svc := newGate(t, &stubLimiter{allowed: true}, &stubAudits{})

	d := svc.CheckAccess(enums.ActorRoleAdmin, OperationRunCleanup)
	if !d.Allowed {
		t.Fatalf("admin should run cleanup: %s", d.Reason)
	}
}

func TestCheckAccessDeniesWithReason(t *testing.T) {
	svc := newGate(t, &stubLimiter{allowed: true}, &stubAudits{})

	d := svc.CheckAccess(enums.ActorRoleViewer, OperationRunCleanup)
	if d.Allowed {
		t.Fatal("viewer must not run cleanup")
	}
	if d.Reason == "" {
		t.Fatal("denial should carry a reason")
	}
}

func TestCheckAccessUnknownRole(t *testing.T) {
	svc := newGate(t, &stubLimiter{allowed: true}, &stubAudits{})

	d := svc.CheckAccess(enums.ActorRole("root"), OperationViewAssets)
	if d.Allowed {
		t.Fatal("unknown role must be denied")
	}
}

func TestCheckRateLimitUsesClassWindow(t *testing.T) {
	limiter := &stubLimiter{allowed: true, count: 1}
	svc := newGate(t, limiter, &stubAudits{})

	d := svc.CheckRateLimit(context.Background(), OperationRunCleanup, "user-1")
	if !d.Allowed {
		t.Fatal("expected allowed")
	}
	if limiter.scope != "cleanup:user-1" {
		t.Fatalf("expected cleanup-class scope, got %s", limiter.scope)
	}
	if limiter.limit != 2 || limiter.window != 5*time.Minute {
		t.Fatalf("expected cleanup window (2 per 5m), got %d per %s", limiter.limit, limiter.window)
	}
	if d.Remaining != 1 {
		t.Fatalf("expected 1 remaining, got %d", d.Remaining)
	}
}

func TestCheckRateLimitFailsClosed(t *testing.T) {
	limiter := &stubLimiter{err: stderrors.New("redis down")}
	svc := newGate(t, limiter, &stubAudits{})

	d := svc.CheckRateLimit(context.Background(), OperationViewAssets, "user-1")
	if d.Allowed {
		t.Fatal("limiter failure must deny the call")
	}
	if d.Remaining != 0 {
		t.Fatalf("expected 0 remaining on failure, got %d", d.Remaining)
	}
}

func TestCheckRateLimitExhaustedWindow(t *testing.T) {
	limiter := &stubLimiter{allowed: false, count: 3, ttl: 30 * time.Second}
	svc := newGate(t, limiter, &stubAudits{})

	before := time.Now()
	d := svc.CheckRateLimit(context.Background(), OperationRunCleanup, "user-1")
	if d.Allowed {
		t.Fatal("exhausted window must deny")
	}
	if d.Remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", d.Remaining)
	}
	if d.ResetAt.Before(before) || d.ResetAt.After(before.Add(time.Minute)) {
		t.Fatalf("resetAt should reflect the TTL, got %s", d.ResetAt)
	}
}

func TestAuditWritesRow(t *testing.T) {
	audits := &stubAudits{}
	svc := newGate(t, &stubLimiter{allowed: true}, audits)

	svc.Audit(context.Background(), AuditEntry{
		ActorID:   "user-1",
		Role:      enums.ActorRoleAdmin,
		Operation: OperationRunCleanup,
		Target:    "/api/v1/cleanup/run",
		Success:   true,
		ClientIP:  "10.0.0.1",
		UserAgent: "curl/8.0",
	})

	if len(audits.rows) != 1 {
		t.Fatalf("expected one audit row, got %d", len(audits.rows))
	}
	row := audits.rows[0]
	if row.ActorID != "user-1" || row.Operation != string(OperationRunCleanup) || !row.Success {
		t.Fatalf("audit row mismatch: %+v", row)
	}
}

func TestAuditFailureIsSwallowed(t *testing.T) {
	audits := &stubAudits{err: stderrors.New("insert failed")}
	svc := newGate(t, &stubLimiter{allowed: true}, audits)

	// Must not panic or surface the error.
	svc.Audit(context.Background(), AuditEntry{
		ActorID:   "user-1",
		Role:      enums.ActorRoleEditor,
		Operation: OperationVerifyOrphans,
		Success:   false,
	})
}
