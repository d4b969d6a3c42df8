package ports

import (
	"time"

	"github.com/vncsmyrnk/rankedpoll/internal/core/domain"
)

// TokenService signs and verifies poll scoped identity claims.
type TokenService interface {
	Issue(identity domain.Identity, ttl time.Duration) (string, error)
	Verify(token string) (domain.Identity, error)
}
