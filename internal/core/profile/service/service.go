package profileapp

import (
	"context"
	"strings"

	"chirp/internal/core/profile"
	profilePort "chirp/internal/ports/profile"
)

// ProfileService سرویس پروفایل کاربران
type ProfileService struct {
	Resolver profilePort.Resolver
}

func NewProfileService(resolver profilePort.Resolver) *ProfileService {
	return &ProfileService{Resolver: resolver}
}

// GetUserByUsername accepts the username with or without its leading "@".
func (s *ProfileService) GetUserByUsername(ctx context.Context, username string) (*profile.AuthorProfile, error) {
	return s.Resolver.ResolveUsername(ctx, strings.TrimPrefix(strings.TrimSpace(username), "@"))
}
