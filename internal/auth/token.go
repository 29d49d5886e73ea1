// Package auth implements the session-backed Spotify OAuth token lifecycle:
// the authorization flow, expiry-triggered refresh, and the guard that
// resolves a usable token for protected requests.
package auth

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenRecord is the OAuth credential set held by a single session.
// A record is either absent or fully populated; see Validate.
type TokenRecord struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"` // seconds since epoch
	Scope        []string `json:"scope"`
}

// Validate reports ErrIncompleteToken if any credential field is missing.
func (r TokenRecord) Validate() error {
	var missing []string
	if r.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if r.RefreshToken == "" {
		missing = append(missing, "refresh_token")
	}
	if r.ExpiresAt <= 0 {
		missing = append(missing, "expires_at")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteToken, strings.Join(missing, ", "))
	}
	return nil
}

// Expiry returns ExpiresAt as a time.Time.
func (r TokenRecord) Expiry() time.Time {
	return time.Unix(r.ExpiresAt, 0)
}

// HasScope reports whether the record was granted the given permission.
func (r TokenRecord) HasScope(scope string) bool {
	return slices.Contains(r.Scope, scope)
}

// OAuth2 converts the record into an oauth2.Token for use with HTTP clients.
func (r TokenRecord) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       r.Expiry(),
	}
}

// Clone returns a deep copy of the record.
func (r TokenRecord) Clone() TokenRecord {
	r.Scope = slices.Clone(r.Scope)
	return r
}

// FromOAuth2 builds a TokenRecord from a token endpoint response.
// The granted scope is read from the response's "scope" field when present,
// otherwise fallbackScope is used. The returned record may be incomplete
// (for example a refresh response without a rotated refresh token); callers
// fill the gaps and Validate before storing it.
func FromOAuth2(tok *oauth2.Token, fallbackScope []string) TokenRecord {
	if tok == nil {
		return TokenRecord{}
	}

	rec := TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scope:        slices.Clone(fallbackScope),
	}
	if !tok.Expiry.IsZero() {
		rec.ExpiresAt = tok.Expiry.Unix()
	}
	if granted, ok := tok.Extra("scope").(string); ok && strings.TrimSpace(granted) != "" {
		rec.Scope = ParseScope(granted)
	}
	return rec
}

// ParseScope splits a space-delimited scope string into a sorted, de-duplicated set.
func ParseScope(s string) []string {
	fields := strings.Fields(s)
	slices.Sort(fields)
	return slices.Compact(fields)
}
