// Package memory is an in-process link store used for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"shortlinks/internal/domain"
	"shortlinks/internal/repository"

	"github.com/google/uuid"
)

// LinkRepository keeps links in maps guarded by a single lock.
// The lock makes IncrementAnalytics an atomic increment-or-insert, and the
// code index enforces uniqueness the same way a unique column would.
type LinkRepository struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Link
	byCode map[string]string // short code -> id
}

// NewLinkRepository creates an empty in-memory repository
func NewLinkRepository() *LinkRepository {
	return &LinkRepository{
		byID:   make(map[string]*domain.Link),
		byCode: make(map[string]string),
	}
}

var _ repository.LinkRepository = (*LinkRepository)(nil)

func (r *LinkRepository) Create(ctx context.Context, link *domain.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byCode[link.ShortCode]; taken {
		return fmt.Errorf("failed to create link: %w", domain.ErrCodeTaken)
	}
	if link.ID == "" {
		link.ID = uuid.NewString()
	}

	r.byID[link.ID] = link.Clone()
	r.byCode[link.ShortCode] = link.ID
	return nil
}

func (r *LinkRepository) GetByID(ctx context.Context, id string) (*domain.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return link.Clone(), nil
}

func (r *LinkRepository) GetByCode(ctx context.Context, code string) (*domain.Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCode[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, code)
	}
	return r.byID[id].Clone(), nil
}

func (r *LinkRepository) Exists(ctx context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byCode[code]
	return ok, nil
}

// Update writes metadata and keeps the stored analytics
func (r *LinkRepository) Update(ctx context.Context, link *domain.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[link.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, link.ID)
	}
	if owner, taken := r.byCode[link.ShortCode]; taken && owner != link.ID {
		return fmt.Errorf("failed to update link: %w", domain.ErrCodeTaken)
	}

	updated := link.Clone()
	updated.Analytics = current.Analytics
	updated.CreatedAt = current.CreatedAt

	delete(r.byCode, current.ShortCode)
	r.byCode[updated.ShortCode] = updated.ID
	r.byID[updated.ID] = updated
	return nil
}

func (r *LinkRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	delete(r.byCode, link.ShortCode)
	delete(r.byID, id)
	return nil
}

func (r *LinkRepository) List(ctx context.Context, q repository.ListQuery) ([]*domain.Link, int64, error) {
	r.mu.RLock()
	matches := make([]*domain.Link, 0)
	for _, link := range r.byID {
		if matchesQuery(link, q) {
			matches = append(matches, link.Clone())
		}
	}
	r.mu.RUnlock()

	sortLinks(matches, q.SortField, q.SortDesc)

	total := int64(len(matches))
	offset := max(q.Offset, 0)
	if offset >= len(matches) {
		return []*domain.Link{}, total, nil
	}
	end := len(matches)
	if q.Limit > 0 && q.Limit < end-offset {
		end = offset + q.Limit
	}
	return matches[offset:end], total, nil
}

// IncrementAnalytics applies the click while holding the write lock
func (r *LinkRepository) IncrementAnalytics(ctx context.Context, code string, click domain.Click) (string, error) {
	if click.At.IsZero() {
		click.At = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byCode[code]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, code)
	}
	link := r.byID[id]
	if err := link.CanRedirect(click.At); err != nil {
		return "", err
	}

	link.RecordClick(click)
	return link.OriginalURL, nil
}

func (r *LinkRepository) Ping(ctx context.Context) error {
	return nil
}

func matchesQuery(link *domain.Link, q repository.ListQuery) bool {
	if q.OwnerID != "" && link.OwnerID != q.OwnerID {
		return false
	}
	if q.PublicOnly && !link.IsPublic {
		return false
	}
	if q.Category != "" && !containsFold(link.Category, q.Category) {
		return false
	}
	if q.Tag != "" && !anyContainsFold(link.Tags, q.Tag) {
		return false
	}
	if q.Search == "" {
		return true
	}

	if containsFold(link.Title, q.Search) || containsFold(link.Category, q.Search) {
		return true
	}
	if q.PublicOnly {
		return false
	}
	return containsFold(link.ShortCode, q.Search) || anyContainsFold(link.Tags, q.Search)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func anyContainsFold(values []string, substr string) bool {
	for _, v := range values {
		if containsFold(v, substr) {
			return true
		}
	}
	return false
}

func sortLinks(links []*domain.Link, field string, desc bool) {
	less := func(a, b *domain.Link) bool {
		switch field {
		case repository.SortTitle:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		case repository.SortClicks:
			return a.Analytics.Clicks < b.Analytics.Clicks
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(links, func(i, j int) bool {
		if desc {
			return less(links[j], links[i])
		}
		return less(links[i], links[j])
	})
}
