package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/matescarabino/gatheringTracker-server/internal/domain"
	"github.com/matescarabino/gatheringTracker-server/internal/security/audit"
	"github.com/matescarabino/gatheringTracker-server/internal/security/auth"
	"github.com/matescarabino/gatheringTracker-server/internal/security/ratelimit"
	"github.com/matescarabino/gatheringTracker-server/pkg/cache"
)

// GroupCodeHeader carries a join code that selects the tenant scope.
const GroupCodeHeader = "x-group-code"

const codeCacheTTL = time.Minute

type userContextKey struct{}
type accessContextKey struct{}

// Identify verifies an optional bearer token and attaches the matching local
// user to the request context. Requests without valid credentials pass
// through anonymously; RequireGroup decides what anonymous callers may do.
func Identify(verifier auth.Verifier, users domain.UserRepository, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, err := auth.ExtractToken(authHeader)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				log.Debug("token verification failed", slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetByID(r.Context(), claims.Subject)
			if err != nil {
				// Token is fine but the user never synced; treat as a guest.
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireGroup resolves the tenant scope for data routes. Admins default to
// the group they administer; an x-group-code header is honored for an admin
// only when they own that group. Guests must present a valid join code.
// Code lookups are cached briefly to keep guest traffic off the database.
func RequireGroup(groups domain.GroupRepository, codes *cache.Cache[*domain.Group], auditLog *audit.Logger, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			code := strings.ToUpper(strings.TrimSpace(r.Header.Get(GroupCodeHeader)))

			if user != nil {
				if code != "" {
					group, err := lookupCode(r.Context(), groups, codes, code)
					if err == nil && group.AdminID == user.ID {
						serveScoped(w, r, next, domain.Access{Kind: domain.AccessAdmin, GroupID: group.ID, User: user})
						return
					}
					// A code the admin does not own is ignored; fall back to
					// the admin's own group.
				}

				group, err := groups.GetByAdmin(r.Context(), user.ID)
				if err != nil {
					if errors.Is(err, domain.ErrNotFound) {
						auditLog.LogDenied(r.Context(), 0, user.ID, "admin without group")
						writeJSONError(w, http.StatusBadRequest, "No group found for this account. Create a group first.")
						return
					}
					log.Error("failed to resolve admin group", slog.String("error", err.Error()))
					writeJSONError(w, http.StatusInternalServerError, "group resolution failed")
					return
				}
				serveScoped(w, r, next, domain.Access{Kind: domain.AccessAdmin, GroupID: group.ID, User: user})
				return
			}

			if code == "" {
				writeJSONError(w, http.StatusUnauthorized, "Group identification required (login or group code)")
				return
			}

			group, err := lookupCode(r.Context(), groups, codes, code)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					writeJSONError(w, http.StatusNotFound, "Group code not found")
					return
				}
				log.Error("failed to resolve group code", slog.String("error", err.Error()))
				writeJSONError(w, http.StatusInternalServerError, "group resolution failed")
				return
			}

			serveScoped(w, r, next, domain.Access{Kind: domain.AccessGuest, GroupID: group.ID})
		})
	}
}

// RateLimit rejects clients that exceed the per-address request budget.
func RateLimit(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !limiter.Allow(ip) {
				log.Warn("rate limit exceeded", slog.String("client_ip", ip))
				writeJSONError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func serveScoped(w http.ResponseWriter, r *http.Request, next http.Handler, access domain.Access) {
	ctx := context.WithValue(r.Context(), accessContextKey{}, access)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func lookupCode(ctx context.Context, groups domain.GroupRepository, codes *cache.Cache[*domain.Group], code string) (*domain.Group, error) {
	if group, ok := codes.Get(code); ok {
		return group, nil
	}

	group, err := groups.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	codes.Set(code, group, codeCacheTTL)
	return group, nil
}

// ContextWithUser returns a context carrying an authenticated user.
func ContextWithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// ContextWithAccess returns a context carrying a resolved tenant scope.
func ContextWithAccess(ctx context.Context, a domain.Access) context.Context {
	return context.WithValue(ctx, accessContextKey{}, a)
}

// UserFromContext returns the authenticated admin, or nil for guests.
func UserFromContext(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(userContextKey{}).(*domain.User); ok {
		return u
	}
	return nil
}

// AccessFromContext returns the resolved tenant scope. The second value is
// false on routes not wrapped by RequireGroup.
func AccessFromContext(ctx context.Context) (domain.Access, bool) {
	a, ok := ctx.Value(accessContextKey{}).(domain.Access)
	return a, ok
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
