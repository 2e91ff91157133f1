package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"chirp/internal/core/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error":{...}}. Upstream and internal failures
// are logged and their details withheld.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := StatusFor(err)
	kind := apperr.KindOf(err)
	body := gin.H{"kind": kind, "message": err.Error()}

	var (
		ve *apperr.ValidationError
		re *apperr.RateLimitError
	)
	switch {
	case errors.As(err, &ve):
		body["field"] = ve.Field
		body["reason"] = ve.Reason
		if ve.Limit > 0 {
			body["limit"] = ve.Limit
		}
	case errors.As(err, &re):
		secs := int(math.Ceil(re.RetryAfter.Seconds()))
		if secs > 0 {
			body["retryAfterSeconds"] = secs
			c.Header("Retry-After", strconv.Itoa(secs))
		}
	case status >= http.StatusInternalServerError:
		logger.Error("request failed",
			zap.String("path", c.Request.URL.Path), zap.String("kind", string(kind)), zap.Error(err))
		body["message"] = "something went wrong"
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
