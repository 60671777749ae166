package domain

import (
	"net/url"
	"strings"
	"time"
)

// Status is the lifecycle state of a link. Only active links redirect.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusExpired:
		return true
	}
	return false
}

// Link represents a shortened link owned by a user
// This is our "domain model" - it contains both data AND behavior (methods)
type Link struct {
	ID          string     // UUID for internal identification
	OwnerID     string     // Subject of the token that created it
	ShortCode   string     // Globally unique, 4-10 chars of [A-Za-z0-9]
	OriginalURL string     // The absolute URL to redirect to
	Title       string     // Human readable label
	Tags        []string   // Free-form labels used by search
	Category    string     // Optional grouping
	IsPublic    bool       // Listed in the public directory
	Status      Status     // active, inactive or expired
	ExpiresAt   *time.Time // Optional expiration time (pointer = nullable)
	Analytics   Analytics  // Click counters, written only by the redirect path
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewLink is a constructor function that creates a new active link
func NewLink(ownerID, originalURL, shortCode, title string) *Link {
	now := time.Now().UTC()
	return &Link{
		OwnerID:     ownerID,
		OriginalURL: strings.TrimSpace(originalURL),
		ShortCode:   shortCode,
		Title:       strings.TrimSpace(title),
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsExpired checks if the link has passed its expiration time
func (l *Link) IsExpired(now time.Time) bool {
	// If ExpiresAt is nil (not set), the link never expires
	if l.ExpiresAt == nil {
		return false
	}
	return !now.Before(*l.ExpiresAt)
}

// CanRedirect checks if the link can be used for redirection.
// Returns ErrGone for inactive, expired, or past-expiry links.
func (l *Link) CanRedirect(now time.Time) error {
	if l.Status != StatusActive || l.IsExpired(now) {
		return ErrGone
	}
	return nil
}

// Validate checks the owner-editable fields before they reach the store.
// The short code format is checked by the allocator, not here.
func (l *Link) Validate() error {
	if err := ValidateDestination(l.OriginalURL); err != nil {
		return err
	}
	if l.Title == "" {
		return ErrTitleRequired
	}
	if !l.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// RecordClick applies one click to the in-memory analytics.
// Stores without server-side increments call this while holding their own lock.
func (l *Link) RecordClick(c Click) {
	l.Analytics.Apply(c)
}

// ValidateDestination accepts absolute http(s) URLs with a host
func ValidateDestination(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmptyURL
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}
	if parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// NormalizeTags trims tags and drops empty ones, keeping order
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// Clone returns a deep copy of the link
func (l *Link) Clone() *Link {
	out := *l
	out.Tags = append([]string(nil), l.Tags...)
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		out.ExpiresAt = &t
	}
	out.Analytics = l.Analytics.Clone()
	return &out
}
