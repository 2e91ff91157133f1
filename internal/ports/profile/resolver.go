package profile

import (
	"context"
	"time"

	"chirp/internal/core/profile"
)

// Resolver maps author ids to display profiles. Unknown or malformed ids are
// absent from the result; only an unreachable identity service is an error.
type Resolver interface {
	ResolveMany(ctx context.Context, ids []string) (map[string]profile.AuthorProfile, error)
	ResolveUsername(ctx context.Context, username string) (*profile.AuthorProfile, error)
}

// Directory is the identity service itself. GetUsers returns only the users
// it found, in any order.
type Directory interface {
	GetUsers(ctx context.Context, ids []string) ([]profile.AuthorProfile, error)
	GetUserByUsername(ctx context.Context, username string) (*profile.AuthorProfile, error)
}

// Cache stores resolved profiles by id.
type Cache interface {
	GetMany(ctx context.Context, ids []string) (map[string]profile.AuthorProfile, error)
	SetMany(ctx context.Context, profiles []profile.AuthorProfile, ttl time.Duration) error
}
