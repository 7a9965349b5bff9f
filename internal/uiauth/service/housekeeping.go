package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/metrics"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/nonce"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/session"
	"k8s.io/utils/clock"
)

// DefaultHousekeepingInterval matches the nonce expiry grace period.
const DefaultHousekeepingInterval = 60 * time.Second

// HousekeepingService periodically prunes expired login nonces and idle
// interactive auth sessions.
type HousekeepingService struct {
	Nonces   nonce.Store
	Sessions *session.Store
	Logger   *slog.Logger
	Interval time.Duration
	Clock    clock.WithTicker
	Metrics  *metrics.Recorder // optional

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to DefaultHousekeepingInterval.
func NewHousekeepingService(
	nonces nonce.Store,
	sessions *session.Store,
	logger *slog.Logger,
	interval time.Duration,
	clk clock.WithTicker,
) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	return &HousekeepingService{
		Nonces:   nonces,
		Sessions: sessions,
		Logger:   logger,
		Interval: interval,
		Clock:    clk,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down and waits for an in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := s.Clock.NewTicker(s.Interval)
	defer ticker.Stop()

	s.cleanup()

	for {
		select {
		case <-ticker.C():
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup runs each sweep independently; one failing does not stop the other.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	now := s.Clock.Now()

	pruned, err := s.Nonces.Prune(ctx, now)
	if err != nil {
		s.Logger.Error("failed to prune login nonces", "error", err)
	}
	s.Metrics.NoncesPruned(pruned)

	var swept int
	if s.Sessions != nil && s.Sessions.TTL() > 0 {
		swept = s.Sessions.Sweep(now.Add(-s.Sessions.TTL()))
	}
	s.Metrics.SessionsSwept(swept)

	s.Logger.Debug("housekeeping cleanup completed", "nonces_pruned", pruned, "sessions_swept", swept)
}
