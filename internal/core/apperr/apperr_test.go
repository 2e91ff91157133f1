package apperr

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{&ValidationError{Field: "content", Reason: ReasonEmpty}, KindValidation},
		{&RateLimitError{RetryAfter: time.Second}, KindRateLimited},
		{NotFound("post", "x"), KindNotFound},
		{Upstream("identity", errors.New("down")), KindUpstream},
		{&UnauthenticatedError{}, KindUnauthenticated},
		{errors.New("boom"), KindInternal},
		{fmt.Errorf("failed to create post: %w", Upstream("store", errors.New("x"))), KindUpstream},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(tc.err), "%v", tc.err)
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "content must not be empty", (&ValidationError{Field: "content", Reason: ReasonEmpty}).Error())
	assert.Equal(t, "content must be at most 280 characters",
		(&ValidationError{Field: "content", Reason: ReasonTooLong, Limit: 280}).Error())
	assert.Equal(t, "rate limit exceeded, retry in 42s", (&RateLimitError{RetryAfter: 41600 * time.Millisecond}).Error())
	assert.Equal(t, `post "x" not found`, NotFound("post", "x").Error())
	assert.Equal(t, "profile not found", NotFound("profile", "").Error())
}

func TestUpstreamUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("identity", cause)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", NotFound("post", "y"))))
}
