package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"shortlinks/internal/domain"
	"shortlinks/internal/service"
	"shortlinks/pkg/logger"
	"shortlinks/pkg/validator"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// LinkService interface defines the service methods needed by the handler
// Using an interface instead of concrete type allows for easy mocking in tests
type LinkService interface {
	CreateLink(ctx context.Context, ownerID string, in service.CreateLinkInput) (*domain.Link, error)
	GetLink(ctx context.Context, ownerID, id string) (*domain.Link, error)
	GetAnalytics(ctx context.Context, ownerID, id string) (domain.Analytics, error)
	UpdateLink(ctx context.Context, ownerID, id string, in service.UpdateLinkInput) (*domain.Link, error)
	DeleteLink(ctx context.Context, ownerID, id string) error
	ListLinks(ctx context.Context, ownerID string, in service.ListInput) (*service.LinkPage, error)
	ListPublicLinks(ctx context.Context, in service.ListInput) (*service.LinkPage, error)
}

// Redirector resolves a short code and records the click
type Redirector interface {
	RecordAndResolve(ctx context.Context, code string, visit domain.Visit) (string, error)
}

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
// This is DEPENDENCY INJECTION - we pass dependencies through the constructor
// instead of using global variables or creating them inside handlers
type Handler struct {
	links      LinkService
	redirector Redirector
	health     HealthChecker
	logger     *logger.Logger
	baseURL    string // Base URL for generating short URLs (e.g., "http://localhost:8080")
}

// NewHandler creates a new HTTP handler
func NewHandler(links LinkService, redirector Redirector, health HealthChecker, log *logger.Logger, baseURL string) *Handler {
	return &Handler{
		links:      links,
		redirector: redirector,
		health:     health,
		logger:     log,
		baseURL:    baseURL,
	}
}

// Request/Response DTOs (Data Transfer Objects)
// These are separate from domain models because:
// 1. API contracts should be stable even if domain models change
// 2. We might want to expose/hide certain fields
// 3. We can add API-specific validation

type CreateLinkRequest struct {
	OriginalURL string     `json:"originalUrl" validate:"required,url"`
	Title       string     `json:"title" validate:"required,max=200"`
	Tags        []string   `json:"tags" validate:"max=20,dive,max=50"`
	Category    string     `json:"category" validate:"max=100"`
	IsPublic    bool       `json:"isPublic"`
	ShortCode   string     `json:"shortCode,omitempty" validate:"omitempty,alphanum,min=4,max=10"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// UpdateLinkRequest only carries the fields the client sent.
// Analytics are not part of it, so they cannot be overwritten.
type UpdateLinkRequest struct {
	OriginalURL *string    `json:"originalUrl,omitempty" validate:"omitempty,url"`
	Title       *string    `json:"title,omitempty" validate:"omitempty,max=200"`
	Tags        []string   `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=50"`
	Category    *string    `json:"category,omitempty" validate:"omitempty,max=100"`
	IsPublic    *bool      `json:"isPublic,omitempty"`
	Status      *string    `json:"status,omitempty" validate:"omitempty,oneof=active inactive expired"`
	ShortCode   *string    `json:"shortCode,omitempty" validate:"omitempty,alphanum,min=4,max=10"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	ClearExpiry bool       `json:"clearExpiry,omitempty"`
}

type LinkResponse struct {
	ID          string            `json:"id"`
	ShortCode   string            `json:"shortCode"`
	ShortURL    string            `json:"shortUrl"`
	OriginalURL string            `json:"originalUrl"`
	Title       string            `json:"title"`
	Tags        []string          `json:"tags"`
	Category    string            `json:"category"`
	IsPublic    bool              `json:"isPublic"`
	Status      string            `json:"status"`
	ExpiresAt   *time.Time        `json:"expiresAt,omitempty"`
	Analytics   AnalyticsResponse `json:"analytics"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// PublicLinkResponse exposes only what the public directory shows
type PublicLinkResponse struct {
	Title       string    `json:"title"`
	OriginalURL string    `json:"originalUrl"`
	ShortCode   string    `json:"shortCode"`
	ShortURL    string    `json:"shortUrl"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AnalyticsResponse struct {
	Clicks      int64           `json:"clicks"`
	LastClicked *time.Time      `json:"lastClicked,omitempty"`
	Referrers   []ReferrerCount `json:"referrers"`
	Locations   []LocationCount `json:"locations"`
	Devices     []DeviceCount   `json:"devices"`
}

type ReferrerCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

type LocationCount struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

type DeviceCount struct {
	DeviceType string `json:"deviceType"`
	Count      int64  `json:"count"`
}

type ListResponse[T any] struct {
	Links       []T   `json:"links"`
	TotalPages  int   `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	TotalLinks  int64 `json:"totalLinks"`
}

// CreateLink handles POST /api/links
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ownerID := mustOwner(r)

	var req CreateLinkRequest
	if !h.decode(w, r, &req) {
		return
	}

	link, err := h.links.CreateLink(r.Context(), ownerID, service.CreateLinkInput{
		OriginalURL: req.OriginalURL,
		Title:       req.Title,
		Tags:        req.Tags,
		Category:    req.Category,
		IsPublic:    req.IsPublic,
		ShortCode:   req.ShortCode,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusCreated, h.toLinkResponse(link), "Link created successfully")
}

// ListLinks handles GET /api/links
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	in, ok := listInput(w, r)
	if !ok {
		return
	}

	page, err := h.links.ListLinks(r.Context(), mustOwner(r), in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	out := ListResponse[LinkResponse]{
		Links:       make([]LinkResponse, 0, len(page.Links)),
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
		TotalLinks:  page.TotalLinks,
	}
	for _, link := range page.Links {
		out.Links = append(out.Links, h.toLinkResponse(link))
	}
	respondSuccess(w, http.StatusOK, out, "")
}

// ListPublicLinks handles GET /api/links/public
func (h *Handler) ListPublicLinks(w http.ResponseWriter, r *http.Request) {
	in, ok := listInput(w, r)
	if !ok {
		return
	}
	in.Category = r.URL.Query().Get("category")
	in.Tag = r.URL.Query().Get("tag")

	page, err := h.links.ListPublicLinks(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	out := ListResponse[PublicLinkResponse]{
		Links:       make([]PublicLinkResponse, 0, len(page.Links)),
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
		TotalLinks:  page.TotalLinks,
	}
	for _, link := range page.Links {
		out.Links = append(out.Links, PublicLinkResponse{
			Title:       link.Title,
			OriginalURL: link.OriginalURL,
			ShortCode:   link.ShortCode,
			ShortURL:    h.shortURL(link.ShortCode),
			Category:    link.Category,
			Tags:        nonNil(link.Tags),
			Clicks:      link.Analytics.Clicks,
			CreatedAt:   link.CreatedAt,
		})
	}
	respondSuccess(w, http.StatusOK, out, "")
}

// GetLink handles GET /api/links/{id}
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.GetLink(r.Context(), mustOwner(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, h.toLinkResponse(link), "")
}

// GetAnalytics handles GET /api/links/{id}/analytics
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.links.GetAnalytics(r.Context(), mustOwner(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, toAnalyticsResponse(analytics), "")
}

// UpdateLink handles PUT /api/links/{id}
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	var req UpdateLinkRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := service.UpdateLinkInput{
		OriginalURL: req.OriginalURL,
		Title:       req.Title,
		Tags:        req.Tags,
		Category:    req.Category,
		IsPublic:    req.IsPublic,
		ShortCode:   req.ShortCode,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	}
	if req.Status != nil {
		status := domain.Status(*req.Status)
		in.Status = &status
	}

	link, err := h.links.UpdateLink(r.Context(), mustOwner(r), chi.URLParam(r, "id"), in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, h.toLinkResponse(link), "Link updated successfully")
}

// DeleteLink handles DELETE /api/links/{id}
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := h.links.DeleteLink(r.Context(), mustOwner(r), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, nil, "Link deleted successfully")
}

// Redirect handles GET /{code}
// The click is recorded before responding so a 302 always means it was counted.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	destination, err := h.redirector.RecordAndResolve(r.Context(), code, domain.Visit{
		Referrer:  r.Referer(),
		IP:        extractIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	// http.StatusFound (302) is a temporary redirect
	// We use 302 so every visit reaches us and is counted
	http.Redirect(w, r, destination, http.StatusFound)
}

// HealthLive handles GET /health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// HealthReady handles GET /health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		h.logger.WithContext(r.Context()).Warn("Readiness check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}

	if err := validator.Struct(dst); err != nil {
		var fields validator.Errors
		if errors.As(err, &fields) {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "Validation failed",
				Code:    "validation_failed",
				Details: fields,
			})
			return false
		}
		h.respondServiceError(w, r, err)
		return false
	}
	return true
}

// listInput parses search, sort, page and limit from the query string
func listInput(w http.ResponseWriter, r *http.Request) (service.ListInput, bool) {
	q := r.URL.Query()
	in := service.ListInput{
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &in.Page}, {"limit", &in.Limit}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", p.name))
			return in, false
		}
		*p.dst = n
	}

	return in, true
}

func (h *Handler) shortURL(code string) string {
	return fmt.Sprintf("%s/%s", h.baseURL, code)
}

func (h *Handler) toLinkResponse(link *domain.Link) LinkResponse {
	return LinkResponse{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		ShortURL:    h.shortURL(link.ShortCode),
		OriginalURL: link.OriginalURL,
		Title:       link.Title,
		Tags:        nonNil(link.Tags),
		Category:    link.Category,
		IsPublic:    link.IsPublic,
		Status:      string(link.Status),
		ExpiresAt:   link.ExpiresAt,
		Analytics:   toAnalyticsResponse(link.Analytics),
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}

func toAnalyticsResponse(a domain.Analytics) AnalyticsResponse {
	out := AnalyticsResponse{
		Clicks:      a.Clicks,
		LastClicked: a.LastClicked,
		Referrers:   make([]ReferrerCount, 0, len(a.Referrers)),
		Locations:   make([]LocationCount, 0, len(a.Locations)),
		Devices:     make([]DeviceCount, 0, len(a.Devices)),
	}
	for _, c := range a.Referrers {
		out.Referrers = append(out.Referrers, ReferrerCount{Source: c.Key, Count: c.Count})
	}
	for _, c := range a.Locations {
		out.Locations = append(out.Locations, LocationCount{Country: c.Key, Count: c.Count})
	}
	for _, c := range a.Devices {
		out.Devices = append(out.Devices, DeviceCount{DeviceType: c.Key, Count: c.Count})
	}
	return out
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
