package service

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

// RunReaper purges stale challenges every interval until ctx is cancelled.
func (s *AuthService) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeChallenges(ctx); err != nil {
				s.logger.Error("Challenge purge failed", err, watermill.LogFields{})
			}
		}
	}
}
