package identity

import (
	"context"
	"fmt"
	"os"
	"sync"

	"chirp/internal/core/profile"

	"gopkg.in/yaml.v3"
)

// Fixtures is an in-process identity directory, loaded from YAML for local
// development:
//
//	users:
//	  - id: user_alice
//	    username: alice
//	    profileImageUrl: https://img.example/alice.png
type Fixtures struct {
	mu         sync.RWMutex
	byID       map[string]profile.AuthorProfile
	byUsername map[string]string
}

func NewFixtures(profiles ...profile.AuthorProfile) *Fixtures {
	f := &Fixtures{
		byID:       make(map[string]profile.AuthorProfile),
		byUsername: make(map[string]string),
	}
	for _, p := range profiles {
		f.Add(p)
	}
	return f
}

func LoadFixtures(path string) (*Fixtures, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identity fixtures: %w", err)
	}
	var doc struct {
		Users []profile.AuthorProfile `yaml:"users"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse identity fixtures %s: %w", path, err)
	}
	for i, u := range doc.Users {
		if !profile.ValidID(u.ID) || u.Username == "" {
			return nil, fmt.Errorf("identity fixtures %s: user %d needs a valid id and a username", path, i)
		}
	}
	return NewFixtures(doc.Users...), nil
}

func (f *Fixtures) Add(p profile.AuthorProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[p.ID] = p
	f.byUsername[p.Username] = p.ID
}

func (f *Fixtures) GetUsers(ctx context.Context, ids []string) ([]profile.AuthorProfile, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]profile.AuthorProfile, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *Fixtures) GetUserByUsername(ctx context.Context, username string) (*profile.AuthorProfile, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.byUsername[username]
	if !ok {
		return nil, nil
	}
	p := f.byID[id]
	return &p, nil
}
