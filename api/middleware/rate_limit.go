package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/stockyard-backend/api/responses"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

// Only this much of the body is inspected for an email address.
const emailPeekBytes = 64 << 10

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(policy, dimension, subject string) string
}

// RateLimitPolicy is a fixed-window budget for one public surface, counted
// separately per client IP and per submitted email. A zero limit turns that
// dimension off.
type RateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) RateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "public"
	}
	return RateLimitPolicy{name: name, window: window, ipLimit: ipLimit, emailLimit: emailLimit}
}

func (p RateLimitPolicy) active() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// budget is one counter a request must stay under.
type budget struct {
	dimension string
	subject   string
	limit     int
}

// RateLimit rejects requests over budget with 429 and a Retry-After of one
// window. Counter failures surface as 503. The email dimension peeks at the
// JSON body and hands the full body on untouched.
func RateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.active() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			budgets, err := policy.budgetsFor(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			for _, b := range budgets {
				count, err := store.IncrWithTTL(ctx, store.RateLimitKey(policy.name, b.dimension, b.subject), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit counter"))
					return
				}
				if count > int64(b.limit) {
					policy.reject(ctx, logg, w, b, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p RateLimitPolicy) budgetsFor(r *http.Request) ([]budget, error) {
	var out []budget
	if ip := clientIP(r); p.ipLimit > 0 && ip != "" {
		out = append(out, budget{dimension: "ip", subject: ip, limit: p.ipLimit})
	}
	if p.emailLimit > 0 && r.Body != nil {
		email, err := peekEmail(r)
		if err != nil {
			return nil, err
		}
		if email != "" {
			out = append(out, budget{dimension: "email", subject: sha256Hex(email), limit: p.emailLimit})
		}
	}
	return out, nil
}

// peekEmail reads the head of the body, restores the whole stream and
// returns the normalized "email" field if the head parses as JSON.
func peekEmail(r *http.Request) (string, error) {
	head, err := io.ReadAll(io.LimitReader(r.Body, emailPeekBytes))
	if err != nil {
		return "", err
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

	var probe struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(head, &probe) != nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(probe.Email)), nil
}

func (p RateLimitPolicy) reject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, b budget, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":    p.name,
			"dimension": b.dimension,
			"subject":   b.subject,
			"attempts":  count,
			"limit":     b.limit,
		}), "rate limit exceeded")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(p.window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests, try again later"))
}

// clientIP trusts the left-most X-Forwarded-For entry; the service runs
// behind a load balancer that sets it.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func sha256Hex(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
