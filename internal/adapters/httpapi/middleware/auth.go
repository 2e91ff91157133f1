package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"chirp/internal/core/apperr"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

// SessionCookie carries the session token for browser requests.
const SessionCookie = "__session"

var errNoToken = errors.New("no session token")

// IssueToken signs an HS256 session token for userID. The identity provider
// issues these in production; this is used by dev tooling and tests.
func IssueToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &jwt.StandardClaims{
		Subject:   userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken verifies tokenString and returns its subject.
func ParseToken(secret []byte, tokenString string) (string, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid session token")
	}
	return claims.Subject, nil
}

func tokenFrom(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tok == "" {
			return "", errors.New("malformed authorization header")
		}
		return tok, nil
	}
	if ck, err := r.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return ck.Value, nil
	}
	return "", errNoToken
}

// SessionUserID returns the authenticated user id for r.
func SessionUserID(secret []byte, r *http.Request) (string, error) {
	tok, err := tokenFrom(r)
	if err != nil {
		return "", err
	}
	return ParseToken(secret, tok)
}

// JWTAuthMiddleware rejects requests without a valid session and stores the
// user id under "userID".
func JWTAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := SessionUserID(secret, c.Request)
		if err != nil {
			e := &apperr.UnauthenticatedError{}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
				"kind":    apperr.KindUnauthenticated,
				"message": e.Error(),
			}})
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

// OptionalJWTMiddleware sets "userID" when a valid session is present and
// lets every request through.
func OptionalJWTMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := SessionUserID(secret, c.Request); err == nil {
			c.Set("userID", userID)
		}
		c.Next()
	}
}
