// Package query names the read queries shared by the RPC surface, the page
// pre-renderer and the client cache.
package query

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

type Kind string

const (
	PostsGetAll          Kind = "posts.getAll"
	PostsGetPostByUserID Kind = "posts.getPostByUserId"
	PostsGetByID         Kind = "posts.getById"
	ProfileGetByUsername Kind = "profile.getUserByUserName"
)

// Key identifies one cached query: its kind plus the single parameter the
// kind takes. PostsGetAll has no parameter.
type Key struct {
	Kind  Kind
	Param string
}

func FeedAll() Key { return Key{Kind: PostsGetAll} }
func FeedByAuthor(authorID string) Key { return Key{Kind: PostsGetPostByUserID, Param: authorID} }
func PostByID(id string) Key { return Key{Kind: PostsGetByID, Param: id} }
func ProfileByUsername(name string) Key { return Key{Kind: ProfileGetByUsername, Param: name} }

func (k Kind) valid() bool {
	switch k {
	case PostsGetAll, PostsGetPostByUserID, PostsGetByID, ProfileGetByUsername:
		return true
	}
	return false
}

func (k Kind) takesParam() bool { return k != PostsGetAll }

// String renders the canonical form, "kind" or "kind?param".
func (k Key) String() string {
	if !k.Kind.takesParam() {
		return string(k.Kind)
	}
	return string(k.Kind) + "?" + url.QueryEscape(k.Param)
}

func ParseKey(s string) (Key, error) {
	kind, param, hasParam := strings.Cut(s, "?")
	k := Key{Kind: Kind(kind)}
	if !k.Kind.valid() {
		return Key{}, fmt.Errorf("unknown query kind %q", kind)
	}
	if k.Kind.takesParam() != hasParam {
		return Key{}, fmt.Errorf("query %q: parameter mismatch", s)
	}
	if hasParam {
		p, err := url.QueryUnescape(param)
		if err != nil {
			return Key{}, fmt.Errorf("query %q: %w", s, err)
		}
		if p == "" {
			return Key{}, fmt.Errorf("query %q: empty parameter", s)
		}
		k.Param = p
	}
	return k, nil
}

func (k Key) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// StateScriptID is the id of the <script type="application/json"> element a
// rendered page carries its Dehydrated state in.
const StateScriptID = "__CHIRP_STATE__"

// Dehydrated is resolved query data handed from the page renderer to the
// client cache, keyed by the canonical key string.
type Dehydrated map[string]json.RawMessage

func (d Dehydrated) Put(k Key, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("dehydrate %s: %w", k, err)
	}
	d[k.String()] = b
	return nil
}
