package profile

import "regexp"

// AuthorProfile is display data owned by the external identity service.
type AuthorProfile struct {
	ID              string `json:"id" yaml:"id"`
	Username        string `json:"username" yaml:"username"`
	ProfileImageURL string `json:"profileImageUrl" yaml:"profileImageUrl"`
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidID reports whether id is well formed enough to send upstream.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
