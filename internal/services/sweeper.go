package services

import (
	"context"
	"errors"
	"log"
	"time"
)

const sweepBatchSize = 100

// Sweeper periodically finalizes approved sessions whose scheduled window
// has elapsed. No-shows cannot be inferred here; operators mark those
// explicitly through the finalize endpoint.
type Sweeper struct {
	service  *SessionService
	interval time.Duration
}

func NewSweeper(service *SessionService, interval time.Duration) *Sweeper {
	return &Sweeper{service: service, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			completed, err := s.service.CompleteOverdueSessions(ctx)
			if err != nil {
				log.Printf("sweeper: %v", err)
				continue
			}
			if completed > 0 {
				log.Printf("sweeper: completed %d overdue sessions", completed)
			}
		}
	}
}

// CompleteOverdueSessions marks approved sessions past their end as
// completed and reports how many succeeded. A session finalized concurrently
// by an operator is skipped, not an error.
func (s *SessionService) CompleteOverdueSessions(ctx context.Context) (int, error) {
	ids, err := s.sessionRepo.ListOverdueApproved(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, id := range ids {
		if _, err := s.CompleteSession(ctx, id, nil, nil); err != nil {
			if errors.Is(err, ErrInvalidStateTransition) {
				continue
			}
			return completed, err
		}
		completed++
	}
	return completed, nil
}
