package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shortlinks/internal/domain"
	"shortlinks/internal/geo"
	"shortlinks/internal/metrics"
	"shortlinks/internal/repository"
	"shortlinks/internal/shortcode"
	"shortlinks/pkg/logger"
)

// DeviceClassifier maps a User-Agent header to a device class
type DeviceClassifier interface {
	Classify(userAgent string) domain.Device
}

// Redirect outcomes used as metric labels
const (
	outcomeRedirected = "redirected"
	outcomeInvalid    = "invalid_format"
	outcomeNotFound   = "not_found"
	outcomeGone       = "gone"
	outcomeError      = "error"
)

// ClickRecorder resolves short codes for the redirect endpoint and records
// one click per successful resolution.
//
// The increment is delegated to the store as a single atomic operation, so
// concurrent redirects of the same link never lose a count and never create
// two aggregation entries for the same key.
type ClickRecorder struct {
	repo    repository.LinkRepository
	cache   Cache
	locator geo.Locator
	devices DeviceClassifier
	logger  *logger.Logger
	clock   func() time.Time
}

// NewClickRecorder wires the redirect path. cache and locator may be nil.
func NewClickRecorder(repo repository.LinkRepository, cache Cache, locator geo.Locator, devices DeviceClassifier, log *logger.Logger) *ClickRecorder {
	if cache == nil {
		cache = nopCache{}
	}
	if locator == nil {
		locator = geo.Nop{}
	}
	return &ClickRecorder{
		repo:    repo,
		cache:   cache,
		locator: locator,
		devices: devices,
		logger:  log,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// RecordAndResolve returns the destination of code and records the visit.
//
//   - malformed code: domain.ErrInvalidFormat, the store is not touched
//   - unknown code: domain.ErrNotFound, nothing written
//   - inactive or expired link: domain.ErrGone, nothing written
//   - store failure: wraps domain.ErrStorageUnavailable
func (r *ClickRecorder) RecordAndResolve(ctx context.Context, code string, visit domain.Visit) (string, error) {
	if !shortcode.IsValid(code) {
		metrics.RecordRedirect(outcomeInvalid)
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidFormat, code)
	}

	now := r.clock()

	// A cached link is only trusted to say "no": active links always go to
	// the store so the count is exact.
	cached, err := r.cache.GetLink(ctx, code)
	if err != nil {
		r.logger.Warn("cache lookup failed", "short_code", code, "error", err)
	}
	if cached != nil && cached.CanRedirect(now) != nil {
		metrics.RecordRedirect(outcomeGone)
		return "", fmt.Errorf("%w: %s", domain.ErrGone, code)
	}

	click := r.classify(visit, now)

	destination, err := r.repo.IncrementAnalytics(ctx, code, click)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrGone):
		metrics.RecordRedirect(outcomeGone)
		if cached == nil {
			r.rememberInactive(ctx, code, now)
		}
		return "", err
	case errors.Is(err, domain.ErrNotFound):
		metrics.RecordRedirect(outcomeNotFound)
		return "", err
	default:
		metrics.RecordRedirect(outcomeError)
		return "", fmt.Errorf("failed to record click: %w", err)
	}

	metrics.RecordRedirect(outcomeRedirected)
	metrics.RecordClick(string(click.Device))

	return destination, nil
}

// classify turns the raw request context into the click that gets counted
func (r *ClickRecorder) classify(visit domain.Visit, now time.Time) domain.Click {
	referrer := strings.TrimSpace(visit.Referrer)
	if referrer == "" {
		referrer = domain.DirectReferrer
	}

	return domain.Click{
		Referrer: referrer,
		Country:  r.locator.Country(visit.IP),
		Device:   r.devices.Classify(visit.UserAgent),
		At:       now,
	}
}

// rememberInactive caches a link that can no longer redirect so later
// visits are answered without a store write.
//
// An owner may reactivate the link between the read and the cache write,
// with the invalidation landing before our write. The store is read again
// after the write and the entry is dropped when the link changed since.
func (r *ClickRecorder) rememberInactive(ctx context.Context, code string, now time.Time) {
	link, err := r.repo.GetByCode(ctx, code)
	if err != nil || link.CanRedirect(now) == nil {
		return
	}
	if err := r.cache.SetLink(ctx, link); err != nil {
		r.logger.Warn("failed to cache inactive link", "short_code", code, "error", err)
		return
	}

	current, err := r.repo.GetByCode(ctx, code)
	if err == nil && current.UpdatedAt.Equal(link.UpdatedAt) && current.CanRedirect(now) != nil {
		return
	}
	if err := r.cache.DeleteLink(ctx, code); err != nil {
		r.logger.Warn("failed to drop stale cached link", "short_code", code, "error", err)
	}
}
