package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"shortlinks/internal/domain"
	"shortlinks/internal/metrics"
	"shortlinks/internal/repository"
	"shortlinks/internal/shortcode"
	"shortlinks/pkg/logger"
)

// Cache interface for link metadata caching
// Using an interface allows for easy testing and swapping implementations
// (Redis in production, bigcache when Redis is disabled)
type Cache interface {
	// GetLink returns nil, nil on a miss
	GetLink(ctx context.Context, code string) (*domain.Link, error)
	SetLink(ctx context.Context, link *domain.Link) error
	DeleteLink(ctx context.Context, code string) error
}

// CodeAllocator hands out short codes that were free when checked
type CodeAllocator interface {
	Allocate(ctx context.Context) (string, error)
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// CreateLinkInput carries the owner-supplied fields of a new link
type CreateLinkInput struct {
	OriginalURL string
	Title       string
	Tags        []string
	Category    string
	IsPublic    bool
	ShortCode   string // optional custom code
	ExpiresAt   *time.Time
}

// UpdateLinkInput is a partial update; nil fields are left unchanged
type UpdateLinkInput struct {
	OriginalURL *string
	Title       *string
	Tags        []string // nil = unchanged, empty = clear
	Category    *string
	IsPublic    *bool
	Status      *domain.Status
	ShortCode   *string
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// ListInput holds the listing parameters shared by owner and public listings
type ListInput struct {
	Search   string
	Category string
	Tag      string
	Sort     string // createdAt, title or clicks; "-" prefix for descending
	Page     int
	Limit    int
}

// LinkPage is one page of a listing
type LinkPage struct {
	Links       []*domain.Link
	TotalPages  int
	CurrentPage int
	TotalLinks  int64
}

// LinkService handles the owner-facing link operations
// This is the SERVICE LAYER - it sits between HTTP handlers and repositories
type LinkService struct {
	repo           repository.LinkRepository
	cache          Cache
	allocator      CodeAllocator
	insertAttempts int
	logger         *logger.Logger
}

// NewLinkService creates a new link service.
// insertAttempts bounds how often a generated code that lost the insert race is replaced.
func NewLinkService(repo repository.LinkRepository, cache Cache, allocator CodeAllocator, insertAttempts int, log *logger.Logger) *LinkService {
	if cache == nil {
		cache = nopCache{}
	}
	if insertAttempts < 1 {
		insertAttempts = 1
	}
	return &LinkService{
		repo:           repo,
		cache:          cache,
		allocator:      allocator,
		insertAttempts: insertAttempts,
		logger:         log,
	}
}

// CreateLink validates the input, picks a short code and stores the link.
// A custom code that is already taken fails with domain.ErrCodeTaken; a
// generated one is replaced and retried.
func (s *LinkService) CreateLink(ctx context.Context, ownerID string, in CreateLinkInput) (*domain.Link, error) {
	link := domain.NewLink(ownerID, in.OriginalURL, strings.TrimSpace(in.ShortCode), in.Title)
	link.Tags = domain.NormalizeTags(in.Tags)
	link.Category = strings.TrimSpace(in.Category)
	link.IsPublic = in.IsPublic
	link.ExpiresAt = in.ExpiresAt

	if err := link.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	if link.ShortCode != "" {
		if !shortcode.IsValid(link.ShortCode) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFormat, link.ShortCode)
		}
		if err := s.repo.Create(ctx, link); err != nil {
			return nil, err
		}
	} else if err := s.createWithGeneratedCode(ctx, link); err != nil {
		return nil, err
	}

	metrics.RecordLinkCreated()
	s.cacheLink(ctx, link)

	s.logger.Info("link created",
		"link_id", link.ID,
		"short_code", link.ShortCode,
		"owner_id", ownerID,
	)

	return link, nil
}

// createWithGeneratedCode relies on the store's unique constraint: the
// allocator pre-check can race with another writer, the insert cannot.
func (s *LinkService) createWithGeneratedCode(ctx context.Context, link *domain.Link) error {
	for attempt := 1; attempt <= s.insertAttempts; attempt++ {
		code, err := s.allocator.Allocate(ctx)
		if err != nil {
			return fmt.Errorf("failed to allocate short code: %w", err)
		}

		link.ID = ""
		link.ShortCode = code

		err = s.repo.Create(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrCodeTaken) {
			return err
		}

		metrics.RecordInsertConflict()
		s.logger.Warn("generated short code lost insert race",
			"short_code", code,
			"attempt", attempt,
		)
	}

	return fmt.Errorf("%w: %d insert conflicts", domain.ErrNamespaceExhausted, s.insertAttempts)
}

// GetLink returns a link with its analytics
func (s *LinkService) GetLink(ctx context.Context, ownerID, id string) (*domain.Link, error) {
	return s.ownedLink(ctx, ownerID, id)
}

// GetAnalytics returns only the aggregated click data of a link
func (s *LinkService) GetAnalytics(ctx context.Context, ownerID, id string) (domain.Analytics, error) {
	link, err := s.ownedLink(ctx, ownerID, id)
	if err != nil {
		return domain.Analytics{}, err
	}
	return link.Analytics, nil
}

// UpdateLink applies a partial update. Analytics cannot be changed here.
func (s *LinkService) UpdateLink(ctx context.Context, ownerID, id string, in UpdateLinkInput) (*domain.Link, error) {
	link, err := s.ownedLink(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	previousCode := link.ShortCode

	if in.OriginalURL != nil {
		link.OriginalURL = strings.TrimSpace(*in.OriginalURL)
	}
	if in.Title != nil {
		link.Title = strings.TrimSpace(*in.Title)
	}
	if in.Tags != nil {
		link.Tags = domain.NormalizeTags(in.Tags)
	}
	if in.Category != nil {
		link.Category = strings.TrimSpace(*in.Category)
	}
	if in.IsPublic != nil {
		link.IsPublic = *in.IsPublic
	}
	if in.Status != nil {
		link.Status = *in.Status
	}
	if in.ClearExpiry {
		link.ExpiresAt = nil
	} else if in.ExpiresAt != nil {
		link.ExpiresAt = in.ExpiresAt
	}
	if in.ShortCode != nil {
		code := strings.TrimSpace(*in.ShortCode)
		if !shortcode.IsValid(code) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFormat, code)
		}
		link.ShortCode = code
	}

	if err := link.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	link.UpdatedAt = time.Now().UTC()

	// The store rejects a code owned by another link
	if err := s.repo.Update(ctx, link); err != nil {
		return nil, err
	}

	s.invalidate(ctx, previousCode)
	if link.ShortCode != previousCode {
		s.invalidate(ctx, link.ShortCode)
	}

	return link, nil
}

// DeleteLink removes a link and its analytics
func (s *LinkService) DeleteLink(ctx context.Context, ownerID, id string) error {
	link, err := s.ownedLink(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, link.ID); err != nil {
		return err
	}

	metrics.RecordLinkDeleted()
	s.invalidate(ctx, link.ShortCode)

	s.logger.Info("link deleted", "link_id", link.ID, "short_code", link.ShortCode)
	return nil
}

// ListLinks lists the caller's links. Search covers title, short code, category and tags.
func (s *LinkService) ListLinks(ctx context.Context, ownerID string, in ListInput) (*LinkPage, error) {
	q, err := buildQuery(in)
	if err != nil {
		return nil, err
	}
	q.OwnerID = ownerID
	return s.list(ctx, q, in)
}

// ListPublicLinks lists public links of every owner. Search covers title and category.
func (s *LinkService) ListPublicLinks(ctx context.Context, in ListInput) (*LinkPage, error) {
	q, err := buildQuery(in)
	if err != nil {
		return nil, err
	}
	q.PublicOnly = true
	return s.list(ctx, q, in)
}

func (s *LinkService) list(ctx context.Context, q repository.ListQuery, in ListInput) (*LinkPage, error) {
	links, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	return &LinkPage{
		Links:       links,
		TotalPages:  int(math.Ceil(float64(total) / float64(q.Limit))),
		CurrentPage: q.Offset/q.Limit + 1,
		TotalLinks:  total,
	}, nil
}

// buildQuery normalizes paging and parses the sort key
func buildQuery(in ListInput) (repository.ListQuery, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if page-1 > math.MaxInt/limit {
		return repository.ListQuery{}, fmt.Errorf("%w: page %d is out of range", domain.ErrValidation, page)
	}

	field, desc, err := parseSort(in.Sort)
	if err != nil {
		return repository.ListQuery{}, err
	}

	return repository.ListQuery{
		Search:    strings.TrimSpace(in.Search),
		Category:  strings.TrimSpace(in.Category),
		Tag:       strings.TrimSpace(in.Tag),
		SortField: field,
		SortDesc:  desc,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}, nil
}

// parseSort accepts createdAt, title and clicks with an optional "-" prefix.
// An empty key means newest first.
func parseSort(raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return repository.SortCreatedAt, true, nil
	}

	desc := strings.HasPrefix(raw, "-")
	field := strings.TrimPrefix(raw, "-")

	switch field {
	case repository.SortCreatedAt, repository.SortTitle, repository.SortClicks:
		return field, desc, nil
	}
	return "", false, fmt.Errorf("%w: unknown sort field %q", domain.ErrValidation, field)
}

// ownedLink loads a link and checks that ownerID owns it
func (s *LinkService) ownedLink(ctx context.Context, ownerID, id string) (*domain.Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if link.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", domain.ErrForbidden, id)
	}
	return link, nil
}

// Cache writes are best effort: the store stays the source of truth
func (s *LinkService) cacheLink(ctx context.Context, link *domain.Link) {
	if err := s.cache.SetLink(ctx, link); err != nil {
		s.logger.Warn("failed to cache link", "short_code", link.ShortCode, "error", err)
	}
}

func (s *LinkService) invalidate(ctx context.Context, code string) {
	if err := s.cache.DeleteLink(ctx, code); err != nil {
		s.logger.Warn("failed to invalidate cached link", "short_code", code, "error", err)
	}
}

// nopCache is used when no cache is configured
type nopCache struct{}

func (nopCache) GetLink(context.Context, string) (*domain.Link, error) { return nil, nil }
func (nopCache) SetLink(context.Context, *domain.Link) error           { return nil }
func (nopCache) DeleteLink(context.Context, string) error              { return nil }
