package services

import (
	"context"
	"fmt"

	"github.com/vncsmyrnk/rankedpoll/internal/core/ports"
)

type sweepService struct {
	purger ports.ExpiredPollPurger
}

func NewSweepService(purger ports.ExpiredPollPurger) ports.SweepService {
	return &sweepService{
		purger: purger,
	}
}

func (s *sweepService) SweepExpiredPolls(ctx context.Context) (int64, error) {
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired polls: %w", err)
	}
	return n, nil
}
