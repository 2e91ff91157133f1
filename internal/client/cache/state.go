// Package cache is the client side query cache: one entry per query.Key,
// each holding a State the view layer renders directly.
package cache

import (
	"encoding/json"
	"fmt"

	"chirp/internal/core/apperr"
	"chirp/internal/core/feed"
	"chirp/internal/core/profile"
	"chirp/internal/query"
)

// State is one of Loading, Failed, Ready or Empty.
type State interface{ state() }

// Loading means no data is cached and a fetch is in flight.
type Loading struct{}

// Failed means the last fetch failed and there is no data to fall back on.
type Failed struct {
	Kind apperr.Kind
	Err  error
}

type Ready struct {
	Data any
}

// Empty is a successful result with nothing in it.
type Empty struct{}

func (Loading) state() {}
func (Failed) state()  {}
func (Ready) state()   {}
func (Empty) state()   {}

func failed(err error) Failed { return Failed{Kind: apperr.KindOf(err), Err: err} }

func settled(data any) State {
	switch v := data.(type) {
	case nil:
		return Empty{}
	case []feed.Item:
		if len(v) == 0 {
			return Empty{}
		}
	}
	return Ready{Data: data}
}

// decode turns dehydrated JSON into the value a fetch for k would return.
func decode(k query.Key, raw json.RawMessage) (any, error) {
	switch k.Kind {
	case query.PostsGetAll, query.PostsGetPostByUserID:
		var items []feed.Item
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		if items == nil {
			items = []feed.Item{}
		}
		return items, nil
	case query.PostsGetByID:
		var item feed.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		return item, nil
	case query.ProfileGetByUsername:
		var p profile.AuthorProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("decode %s: unknown kind", k)
}
