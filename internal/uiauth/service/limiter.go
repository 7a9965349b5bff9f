package service

import (
	"sync"
	"time"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
	"golang.org/x/time/rate"
	"k8s.io/utils/clock"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of attempts allowed in the window.
	RequestsPerWindow int
	Window            time.Duration
	// Burst allows temporary bursts above the rate.
	Burst int
}

// DefaultStageLimit allows 10 attempts per minute per origin and stage.
var DefaultStageLimit = RateLimitConfig{
	RequestsPerWindow: 10,
	Window:            time.Minute,
	Burst:             10,
}

// AttemptLimiter throttles stage attempts per client origin and stage type.
type AttemptLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	clock    clock.PassiveClock

	mu          sync.Mutex
	lastCleanup time.Time
}

func NewAttemptLimiter(cfg RateLimitConfig, clk clock.PassiveClock) *AttemptLimiter {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if cfg.RequestsPerWindow <= 0 || cfg.Window <= 0 {
		cfg = DefaultStageLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerWindow
	}
	return &AttemptLimiter{
		rate:        rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:       cfg.Burst,
		clock:       clk,
		lastCleanup: clk.Now(),
	}
}

// Allow consumes one attempt. Requests without an origin are not limited.
func (l *AttemptLimiter) Allow(clientOrigin string, stage domain.StageType) bool {
	if clientOrigin == "" {
		return true
	}
	return l.getLimiter(clientOrigin+"|"+stage.String()).AllowN(l.clock.Now(), 1)
}

func (l *AttemptLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	l.maybeCleanup()

	limiter := rate.NewLimiter(l.rate, l.burst)
	actual, _ := l.limiters.LoadOrStore(key, limiter)
	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose buckets have refilled, at most once
// every five minutes.
func (l *AttemptLimiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.Sub(l.lastCleanup) < 5*time.Minute {
		return
	}
	l.lastCleanup = now

	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).TokensAt(now) >= float64(l.burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}
