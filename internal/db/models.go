package db

import "time"

// Session is a row of the sessions table. The token columns are all set or
// all NULL; a session without a token has AccessToken == nil.
type Session struct {
	ID           string
	UserID       string
	UserName     string
	AccessToken  *string
	RefreshToken *string
	TokenExpiry  *time.Time
	Scope        []string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// HasToken reports whether the row carries OAuth credentials.
func (s *Session) HasToken() bool {
	return s.AccessToken != nil && s.RefreshToken != nil && s.TokenExpiry != nil
}
