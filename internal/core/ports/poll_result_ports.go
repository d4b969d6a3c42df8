package ports

import "context"

// ExpiredPollPurger removes documents whose lifetime has elapsed. Readers
// already treat expired documents as absent; purging only reclaims space.
type ExpiredPollPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type SweepService interface {
	SweepExpiredPolls(ctx context.Context) (int64, error)
}
