package middleware

import (
	"net"
	"net/http"

	"github.com/inkpress-cms/mediakeeper/api/responses"
	"github.com/inkpress-cms/mediakeeper/internal/gate"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
	pkgerrors "github.com/inkpress-cms/mediakeeper/pkg/errors"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

// Gate wraps a route with the access-control gate: role check, per-class
// rate limit (fail closed), and an audit record for every mutating call
// regardless of outcome.
func Gate(svc gate.Service, op gate.Operation, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actorID := ActorIDFromContext(ctx)
			role, err := enums.ParseActorRole(RoleFromContext(ctx))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "unknown role"))
				return
			}

			audit := func(success bool) {
				if !gate.Mutating(op) {
					return
				}
				svc.Audit(ctx, gate.AuditEntry{
					ActorID:   actorID,
					Role:      role,
					Operation: op,
					Target:    r.URL.Path,
					Success:   success,
					ClientIP:  clientIP(r),
					UserAgent: r.UserAgent(),
				})
			}

			if decision := svc.CheckAccess(role, op); !decision.Allowed {
				audit(false)
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, decision.Reason))
				return
			}

			if decision := svc.CheckRateLimit(ctx, op, actorID); !decision.Allowed {
				audit(false)
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			audit(rec.status < http.StatusBadRequest)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
