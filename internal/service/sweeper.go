package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/flight-concierge/pkg/logger"
)

// Sweeper periodically purges expired sessions.
type Sweeper struct {
	service  *ConversationService
	interval time.Duration
	timeout  time.Duration
	logger   *logger.Logger
}

// NewSweeper creates a sweeper that runs every interval. Each purge is bounded by half the
// interval.
func NewSweeper(svc *ConversationService, interval time.Duration, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		service:  svc,
		interval: interval,
		timeout:  interval / 2,
		logger:   log.Named("sweeper"),
	}
}

// Run sweeps until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("session sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	purged, err := s.service.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("failed to purge expired sessions", zap.Error(err))
		return
	}
	if purged > 0 {
		s.logger.Info("purged expired sessions", zap.Int("count", purged))
	}
}
