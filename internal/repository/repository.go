package repository

import (
	"context"

	"shortlinks/internal/domain"
)

// LinkRepository defines the interface for link data access
// This is the "Repository Pattern" - it abstracts data storage
//
// Every implementation must enforce short code uniqueness itself and report a
// duplicate as domain.ErrCodeTaken. Backend failures are wrapped with
// domain.ErrStorageUnavailable so callers can tell them apart with errors.Is.
type LinkRepository interface {
	// Create inserts a new link. link.ID is assigned by the store when empty.
	Create(ctx context.Context, link *domain.Link) error

	// GetByID retrieves a link (with analytics) by its id
	GetByID(ctx context.Context, id string) (*domain.Link, error)

	// GetByCode retrieves a link (with analytics) by its short code
	GetByCode(ctx context.Context, code string) (*domain.Link, error)

	// Exists checks if a short code is currently assigned
	Exists(ctx context.Context, code string) (bool, error)

	// Update writes the owner-editable fields of a link. Analytics are never written here.
	Update(ctx context.Context, link *domain.Link) error

	// Delete removes a link and its analytics
	Delete(ctx context.Context, id string) error

	// List returns one page of links matching q plus the total match count
	List(ctx context.Context, q ListQuery) ([]*domain.Link, int64, error)

	// IncrementAnalytics atomically applies one click to the link with the given code
	// and returns its destination. It returns domain.ErrNotFound when no link owns the
	// code and domain.ErrGone when the link is not redirectable; neither writes anything.
	IncrementAnalytics(ctx context.Context, code string, click domain.Click) (string, error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}

// Sort fields accepted by List
const (
	SortCreatedAt = "createdAt"
	SortTitle     = "title"
	SortClicks    = "clicks"
)

// ListQuery selects a page of links.
//
// With OwnerID set, Search matches title, short code, category and tags.
// With PublicOnly set, Search matches title and category only.
type ListQuery struct {
	OwnerID    string
	PublicOnly bool
	Search     string
	Category   string
	Tag        string
	SortField  string
	SortDesc   bool
	Limit      int
	Offset     int
}
