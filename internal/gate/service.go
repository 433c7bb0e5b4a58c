package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/inkpress-cms/mediakeeper/pkg/config"
	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

// Decision is an access verdict.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// RateLimitDecision carries the window state alongside the verdict.
type RateLimitDecision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// AuditEntry is one gate-observed mutating call.
type AuditEntry struct {
	ActorID   string
	Role      enums.ActorRole
	Operation Operation
	Target    string
	Success   bool
	ClientIP  string
	UserAgent string
}

type limiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	RateLimitKey(scope string) string
}

type auditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// Service guards every exposed operation with the role matrix, per-class
// rate limits, and the audit trail.
type Service interface {
	CheckAccess(role enums.ActorRole, op Operation) Decision
	CheckRateLimit(ctx context.Context, op Operation, identity string) RateLimitDecision
	Audit(ctx context.Context, entry AuditEntry)
}

type Params struct {
	Limiter limiter
	Audits  auditStore
	Limits  config.RateLimitConfig
	Logger  *logger.Logger
}

type service struct {
	limiter limiter
	audits  auditStore
	limits  config.RateLimitConfig
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(p Params) (Service, error) {
	if p.Limiter == nil || p.Audits == nil || p.Logger == nil {
		return nil, fmt.Errorf("gate: missing required dependencies")
	}
	return &service{
		limiter: p.Limiter,
		audits:  p.Audits,
		limits:  p.Limits,
		logg:    p.Logger,
		now:     time.Now,
	}, nil
}

func (s *service) CheckAccess(role enums.ActorRole, op Operation) Decision {
	if !role.IsValid() {
		return Decision{Allowed: false, Reason: fmt.Sprintf("unknown role %q", role)}
	}
	if !Allowed(role, op) {
		return Decision{Allowed: false, Reason: fmt.Sprintf("role %s may not perform %s", role, op)}
	}
	return Decision{Allowed: true}
}

// CheckRateLimit applies the fixed window for the operation's class. A
// limiter failure denies the call: the gate fails closed.
func (s *service) CheckRateLimit(ctx context.Context, op Operation, identity string) RateLimitDecision {
	class := ClassOf(op)
	limit, window := s.windowFor(class)
	scope := fmt.Sprintf("%s:%s", class, identity)

	allowed, count, err := s.limiter.FixedWindowAllow(ctx, scope, limit, window)
	if err != nil {
		s.logg.WithContext(ctx).Warn().Err(err).
			Str("operation", string(op)).
			Str("identity", identity).
			Msg("rate limit store failed, denying")
		return RateLimitDecision{Allowed: false, Remaining: 0, ResetAt: s.now().Add(window)}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	resetAt := s.now().Add(window)
	if ttl, err := s.limiter.TTL(ctx, s.limiter.RateLimitKey(scope)); err == nil && ttl > 0 {
		resetAt = s.now().Add(ttl)
	}
	return RateLimitDecision{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}
}

// Audit records the call outcome. Failures are logged and swallowed; the
// audit trail must never fail the primary operation.
func (s *service) Audit(ctx context.Context, entry AuditEntry) {
	row := &models.AuditLog{
		ActorID:   entry.ActorID,
		Role:      entry.Role,
		Operation: string(entry.Operation),
		Target:    entry.Target,
		Success:   entry.Success,
		ClientIP:  entry.ClientIP,
		UserAgent: entry.UserAgent,
	}
	if err := s.audits.Create(ctx, row); err != nil {
		s.logg.WithContext(ctx).Warn().Err(err).
			Str("operation", string(entry.Operation)).
			Str("actor_id", entry.ActorID).
			Msg("audit write failed")
	}
}

func (s *service) windowFor(class Class) (int64, time.Duration) {
	switch class {
	case ClassUpload:
		return int64(s.limits.UploadLimit), s.limits.UploadWindow
	case ClassCleanup:
		return int64(s.limits.CleanupLimit), s.limits.CleanupWindow
	case ClassView:
		return int64(s.limits.ViewLimit), s.limits.ViewWindow
	default:
		return int64(s.limits.MutateLimit), s.limits.MutateWindow
	}
}
