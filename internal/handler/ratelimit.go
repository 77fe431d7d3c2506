package handler

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	appI18n "github.com/pavelanni/recall/internal/i18n"
	"github.com/pavelanni/recall/internal/model"
)

const (
	limiterIdle = 10 * time.Minute
	maxLimiters = 10000
)

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// rateLimiter keeps one token bucket per learner. Buckets idle for
// limiterIdle are dropped once the map reaches maxLimiters; if that is not
// enough the least recently seen bucket goes. A nil *rateLimiter allows
// everything.
type rateLimiter struct {
	mu     sync.Mutex
	limit  rate.Limit
	burst  int
	limits map[string]*limiterEntry
	now    func() time.Time
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limit:  rate.Limit(perSecond),
		burst:  burst,
		limits: make(map[string]*limiterEntry),
		now:    time.Now,
	}
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	if e, ok := rl.limits[key]; ok {
		e.seen = now
		return e.lim
	}
	if len(rl.limits) >= maxLimiters {
		rl.prune(now)
	}
	e := &limiterEntry{lim: rate.NewLimiter(rl.limit, rl.burst), seen: now}
	rl.limits[key] = e
	return e.lim
}

// prune must be called with mu held.
func (rl *rateLimiter) prune(now time.Time) {
	var oldestKey string
	var oldest *limiterEntry
	for k, e := range rl.limits {
		if now.Sub(e.seen) >= limiterIdle {
			delete(rl.limits, k)
			continue
		}
		if oldest == nil || e.seen.Before(oldest.seen) {
			oldestKey, oldest = k, e
		}
	}
	if len(rl.limits) >= maxLimiters {
		delete(rl.limits, oldestKey)
	}
}

func (rl *rateLimiter) allow(key string) bool {
	if rl == nil {
		return true
	}
	return rl.getLimiter(key).Allow()
}

func (h *Handler) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.allow(learnerID(r)) {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, model.ErrorResponse{
				Error:   "rate_limited",
				Message: appI18n.T(r.Context(), "ErrRateLimited"),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
