package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chirp/internal/core/apperr"
	"chirp/internal/query"

	"golang.org/x/net/html"
)

// PageState fetches a rendered page and returns the query state it embeds.
func (c *Client) PageState(ctx context.Context, path string) (query.Dehydrated, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, apperr.Upstream("api", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperr.NotFound("page", path)
	case resp.StatusCode >= 300:
		return nil, apperr.Upstream("api", fmt.Errorf("page %s: status %d", path, resp.StatusCode))
	}
	return ExtractState(resp.Body)
}

// ExtractState finds the embedded state script in an HTML document. A page
// without one yields an empty state.
func ExtractState(r io.Reader) (query.Dehydrated, error) {
	z := html.NewTokenizer(r)
	inState := false
	var buf strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return query.Dehydrated{}, nil
			}
			return nil, fmt.Errorf("parse page: %w", z.Err())
		case html.StartTagToken:
			tok := z.Token()
			if tok.Data == "script" && attr(tok, "id") == query.StateScriptID {
				inState = true
			}
		case html.TextToken:
			if inState {
				buf.Write(z.Text())
			}
		case html.EndTagToken:
			if inState {
				state := query.Dehydrated{}
				if err := json.Unmarshal([]byte(buf.String()), &state); err != nil {
					return nil, fmt.Errorf("decode page state: %w", err)
				}
				return state, nil
			}
		}
	}
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
