package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"shortlinks/internal/domain"
	"shortlinks/internal/service"
	"shortlinks/pkg/logger"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==================== MOCKS ====================

// MockLinkService is a mock implementation of LinkService
type MockLinkService struct {
	mock.Mock
}

func (m *MockLinkService) CreateLink(ctx context.Context, ownerID string, in service.CreateLinkInput) (*domain.Link, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Link), args.Error(1)
}

func (m *MockLinkService) GetLink(ctx context.Context, ownerID, id string) (*domain.Link, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Link), args.Error(1)
}

func (m *MockLinkService) GetAnalytics(ctx context.Context, ownerID, id string) (domain.Analytics, error) {
	args := m.Called(ctx, ownerID, id)
	return args.Get(0).(domain.Analytics), args.Error(1)
}

func (m *MockLinkService) UpdateLink(ctx context.Context, ownerID, id string, in service.UpdateLinkInput) (*domain.Link, error) {
	args := m.Called(ctx, ownerID, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Link), args.Error(1)
}

func (m *MockLinkService) DeleteLink(ctx context.Context, ownerID, id string) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

func (m *MockLinkService) ListLinks(ctx context.Context, ownerID string, in service.ListInput) (*service.LinkPage, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LinkPage), args.Error(1)
}

func (m *MockLinkService) ListPublicLinks(ctx context.Context, in service.ListInput) (*service.LinkPage, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LinkPage), args.Error(1)
}

// MockRedirector is a mock implementation of Redirector
type MockRedirector struct {
	mock.Mock
}

func (m *MockRedirector) RecordAndResolve(ctx context.Context, code string, visit domain.Visit) (string, error) {
	args := m.Called(ctx, code, visit)
	return args.String(0), args.Error(1)
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockRateLimiter is a mock implementation of RateLimiter
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Int(1), args.Get(2).(time.Time), args.Error(3)
}

func (m *MockRateLimiter) MaxRequests() int {
	return 100
}

// ==================== HELPER FUNCTIONS ====================

const testSecret = "test-secret"

type testServer struct {
	router     http.Handler
	links      *MockLinkService
	redirector *MockRedirector
	health     *MockHealthChecker
	auth       *Authenticator
}

func setupTestServer(t *testing.T, limiter RateLimiter) *testServer {
	t.Helper()
	return setupTestServerWithOptions(t, RouterOptions{Limiter: limiter})
}

func setupTestServerWithOptions(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	links := new(MockLinkService)
	redirector := new(MockRedirector)
	health := new(MockHealthChecker)
	log := logger.New("error", logger.WithOutput(io.Discard))

	handler := NewHandler(links, redirector, health, log, "http://sho.rt")
	auth := NewAuthenticator(testSecret)
	opts.Logger = log

	return &testServer{
		router:     NewRouter(handler, auth, opts),
		links:      links,
		redirector: redirector,
		health:     health,
		auth:       auth,
	}
}

func (s *testServer) do(t *testing.T, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		token, err := s.auth.IssueToken(owner, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func sampleLink() *domain.Link {
	link := domain.NewLink("alice", "https://example.com", "AbC123", "Docs")
	link.ID = "6b1f1a2e-0000-4000-8000-000000000001"
	link.Analytics.Apply(domain.Click{Referrer: domain.DirectReferrer, Country: "US", Device: domain.DeviceMobile, At: time.Now()})
	return link
}

// ==================== REDIRECT TESTS ====================

func TestRedirect_Success(t *testing.T) {
	// Arrange
	srv := setupTestServer(t, nil)

	srv.redirector.On("RecordAndResolve", mock.Anything, "AbC123", domain.Visit{
		Referrer:  "https://news.example",
		IP:        "8.8.8.8",
		UserAgent: "iPhone",
	}).Return("https://example.com/target", nil)

	req := httptest.NewRequest(http.MethodGet, "/AbC123", nil)
	req.RemoteAddr = "8.8.8.8:5555"
	req.Header.Set("Referer", "https://news.example")
	req.Header.Set("User-Agent", "iPhone")
	w := httptest.NewRecorder()

	// Act
	srv.router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/target", w.Header().Get("Location"))
	srv.redirector.AssertExpectations(t)
}

func TestRedirect_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "invalid format", err: domain.ErrInvalidFormat, wantStatus: http.StatusBadRequest, wantCode: "invalid_short_code"},
		{name: "not found", err: domain.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "gone", err: domain.ErrGone, wantStatus: http.StatusGone, wantCode: "gone"},
		{
			name:       "storage",
			err:        errors.Join(domain.ErrStorageUnavailable, errors.New("dial tcp")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "storage_unavailable",
		},
		{name: "unexpected", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			srv := setupTestServer(t, nil)
			srv.redirector.On("RecordAndResolve", mock.Anything, "AbC123", mock.Anything).Return("", tt.err)

			// Act
			w := srv.do(t, http.MethodGet, "/AbC123", "", "")

			// Assert
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeBody(t, w)["code"])
		})
	}
}

// ==================== AUTH TESTS ====================

func TestOwnerRoutes_RequireToken(t *testing.T) {
	srv := setupTestServer(t, nil)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage", header: "Bearer not-a-jwt"},
		{name: "wrong secret", header: "Bearer " + mustToken(t, NewAuthenticator("other"), "alice")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			srv.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
	srv.links.AssertNotCalled(t, "ListLinks", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthenticator_ExpiredToken(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	token, err := auth.IssueToken("alice", -time.Minute)
	require.NoError(t, err)

	_, err = auth.Verify(token)

	assert.Error(t, err)
}

func mustToken(t *testing.T, auth *Authenticator, subject string) string {
	t.Helper()
	token, err := auth.IssueToken(subject, time.Hour)
	require.NoError(t, err)
	return token
}

// ==================== LINK CRUD TESTS ====================

func TestCreateLink_Success(t *testing.T) {
	// Arrange
	srv := setupTestServer(t, nil)
	link := sampleLink()

	srv.links.On("CreateLink", mock.Anything, "alice", service.CreateLinkInput{
		OriginalURL: "https://example.com",
		Title:       "Docs",
		Tags:        []string{"go"},
		IsPublic:    true,
	}).Return(link, nil)

	body := `{"originalUrl": "https://example.com", "title": "Docs", "tags": ["go"], "isPublic": true}`

	// Act
	w := srv.do(t, http.MethodPost, "/api/links", "alice", body)

	// Assert
	assert.Equal(t, http.StatusCreated, w.Code)

	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "AbC123", data["shortCode"])
	assert.Equal(t, "http://sho.rt/AbC123", data["shortUrl"])
	assert.Equal(t, "https://example.com", data["originalUrl"])
	srv.links.AssertExpectations(t)
}

func TestCreateLink_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "missing url", body: `{"title": "Docs"}`, wantField: "originalUrl"},
		{name: "missing title", body: `{"originalUrl": "https://example.com"}`, wantField: "title"},
		{name: "bad custom code", body: `{"originalUrl": "https://example.com", "title": "x", "shortCode": "a-b"}`, wantField: "shortCode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := setupTestServer(t, nil)

			w := srv.do(t, http.MethodPost, "/api/links", "alice", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			details := decodeBody(t, w)["details"].(map[string]any)
			assert.Contains(t, details, tt.wantField)
			srv.links.AssertNotCalled(t, "CreateLink", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateLink_InvalidJSON(t *testing.T) {
	srv := setupTestServer(t, nil)

	w := srv.do(t, http.MethodPost, "/api/links", "alice", `{"originalUrl":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateLink_CodeTaken(t *testing.T) {
	srv := setupTestServer(t, nil)
	srv.links.On("CreateLink", mock.Anything, "alice", mock.Anything).Return(nil, domain.ErrCodeTaken)

	w := srv.do(t, http.MethodPost, "/api/links", "alice",
		`{"originalUrl": "https://example.com", "title": "Docs", "shortCode": "taken1"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetLink_ForeignLinkIsNotFound(t *testing.T) {
	srv := setupTestServer(t, nil)
	srv.links.On("GetLink", mock.Anything, "bob", "link-1").Return(nil, domain.ErrForbidden)

	w := srv.do(t, http.MethodGet, "/api/links/link-1", "bob", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAnalytics_UsesStoredFieldNames(t *testing.T) {
	// Arrange
	srv := setupTestServer(t, nil)
	srv.links.On("GetAnalytics", mock.Anything, "alice", "link-1").Return(sampleLink().Analytics, nil)

	// Act
	w := srv.do(t, http.MethodGet, "/api/links/link-1/analytics", "alice", "")

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(1), data["clicks"])
	assert.Equal(t, []any{map[string]any{"source": "Direct", "count": float64(1)}}, data["referrers"])
	assert.Equal(t, []any{map[string]any{"country": "US", "count": float64(1)}}, data["locations"])
	assert.Equal(t, []any{map[string]any{"deviceType": "mobile", "count": float64(1)}}, data["devices"])
}

func TestUpdateLink_PassesOnlySentFields(t *testing.T) {
	// Arrange
	srv := setupTestServer(t, nil)
	inactive := domain.StatusInactive

	srv.links.On("UpdateLink", mock.Anything, "alice", "link-1", mock.MatchedBy(func(in service.UpdateLinkInput) bool {
		return in.Title != nil && *in.Title == "Renamed" &&
			in.Status != nil && *in.Status == inactive &&
			in.OriginalURL == nil && in.ShortCode == nil
	})).Return(sampleLink(), nil)

	// Act
	w := srv.do(t, http.MethodPut, "/api/links/link-1", "alice",
		`{"title": "Renamed", "status": "inactive", "analytics": {"clicks": 999}}`)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	srv.links.AssertExpectations(t)
}

func TestUpdateLink_RejectsUnknownStatus(t *testing.T) {
	srv := setupTestServer(t, nil)

	w := srv.do(t, http.MethodPut, "/api/links/link-1", "alice", `{"status": "archived"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteLink(t *testing.T) {
	srv := setupTestServer(t, nil)
	srv.links.On("DeleteLink", mock.Anything, "alice", "link-1").Return(nil)

	w := srv.do(t, http.MethodDelete, "/api/links/link-1", "alice", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Link deleted successfully", decodeBody(t, w)["message"])
}

// ==================== LISTING TESTS ====================

func TestListLinks_ParsesQuery(t *testing.T) {
	// Arrange
	srv := setupTestServer(t, nil)
	srv.links.On("ListLinks", mock.Anything, "alice", service.ListInput{
		Search: "docs",
		Sort:   "-clicks",
		Page:   2,
		Limit:  5,
	}).Return(&service.LinkPage{
		Links:       []*domain.Link{sampleLink()},
		TotalPages:  3,
		CurrentPage: 2,
		TotalLinks:  11,
	}, nil)

	// Act
	w := srv.do(t, http.MethodGet, "/api/links?search=docs&sort=-clicks&page=2&limit=5", "alice", "")

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(3), data["totalPages"])
	assert.Equal(t, float64(2), data["currentPage"])
	assert.Equal(t, float64(11), data["totalLinks"])
	assert.Len(t, data["links"], 1)
}

func TestListLinks_BadPage(t *testing.T) {
	srv := setupTestServer(t, nil)

	w := srv.do(t, http.MethodGet, "/api/links?page=zero", "alice", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPublicLinks_NoAuthAndLimitedFields(t *testing.T) {
	// Arrange
	srv := setupTestServer(t, nil)
	srv.links.On("ListPublicLinks", mock.Anything, service.ListInput{Category: "news", Tag: "go"}).
		Return(&service.LinkPage{Links: []*domain.Link{sampleLink()}, TotalPages: 1, CurrentPage: 1, TotalLinks: 1}, nil)

	// Act
	w := srv.do(t, http.MethodGet, "/api/links/public?category=news&tag=go", "", "")

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	links := decodeBody(t, w)["data"].(map[string]any)["links"].([]any)
	require.Len(t, links, 1)
	entry := links[0].(map[string]any)
	assert.Equal(t, float64(1), entry["clicks"])
	assert.NotContains(t, entry, "id")
	assert.NotContains(t, entry, "analytics")
}

func TestListPublicLinks_PageOutOfRange(t *testing.T) {
	// Arrange
	srv := setupTestServer(t, nil)
	srv.links.On("ListPublicLinks", mock.Anything, service.ListInput{Page: 1844674407370955162}).
		Return(nil, fmt.Errorf("%w: page 1844674407370955162 is out of range", domain.ErrValidation))

	// Act
	w := srv.do(t, http.MethodGet, "/api/links/public?page=1844674407370955162", "", "")

	// Assert
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ==================== HEALTH / MIDDLEWARE TESTS ====================

func TestHealthReady(t *testing.T) {
	srv := setupTestServer(t, nil)
	srv.health.On("Ping", mock.Anything).Return(nil).Once()
	srv.health.On("Ping", mock.Anything).Return(errors.New("db down")).Once()

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/ready", "", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, srv.do(t, http.MethodGet, "/health/ready", "", "").Code)
}

func TestRequestID(t *testing.T) {
	srv := setupTestServer(t, nil)

	w := srv.do(t, http.MethodGet, "/health/live", "", "")

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRateLimit_Blocks(t *testing.T) {
	// Arrange
	limiter := new(MockRateLimiter)
	srv := setupTestServer(t, limiter)
	limiter.On("Allow", mock.Anything, "203.0.113.9").Return(false, 0, time.Now().Add(time.Minute), nil)

	req := httptest.NewRequest(http.MethodGet, "/AbC123", nil)
	req.RemoteAddr = "203.0.113.9:40000"
	w := httptest.NewRecorder()

	// Act
	srv.router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	srv.redirector.AssertNotCalled(t, "RecordAndResolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := new(MockRateLimiter)
	srv := setupTestServer(t, limiter)
	limiter.On("Allow", mock.Anything, mock.Anything).Return(false, 0, time.Time{}, errors.New("redis down"))
	srv.redirector.On("RecordAndResolve", mock.Anything, "AbC123", mock.Anything).Return("https://example.com", nil)

	w := srv.do(t, http.MethodGet, "/AbC123", "", "")

	assert.Equal(t, http.StatusFound, w.Code)
}

func TestRecovery(t *testing.T) {
	log := logger.New("error", logger.WithOutput(io.Discard))
	handler := RecoveryMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRecovery_ReportsPanicToSentryHub(t *testing.T) {
	// Arrange
	var events []*sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		SampleRate: 1.0,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			events = append(events, event)
			return nil
		},
	})
	require.NoError(t, err)
	hub := sentry.NewHub(client, sentry.NewScope())

	log := logger.New("error", logger.WithOutput(io.Discard))
	handler := RecoveryMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/AbC123", nil)
	req = req.WithContext(sentry.SetHubOnContext(req.Context(), hub))
	w := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Len(t, events, 1)
	assert.Equal(t, "boom", events[0].Message)
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "remote v4", remoteAddr: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "remote v6", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "already resolved", remoteAddr: "198.51.100.7", want: "198.51.100.7"},
		{name: "headers alone are ignored", remoteAddr: "192.0.2.1:1234", headers: map[string]string{"X-Forwarded-For": "198.51.100.7", "X-Real-IP": "198.51.100.8"}, want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, extractIP(req))
		})
	}
}

func TestTrustedProxyMiddleware(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("fd00::/8")}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "forwarded by trusted proxy", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"}, want: "198.51.100.7"},
		{name: "real ip from trusted proxy", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Real-IP": "198.51.100.8"}, want: "198.51.100.8"},
		{name: "trusted v6 proxy", remoteAddr: "[fd00::1]:443", headers: map[string]string{"X-Real-IP": "2001:db8::9"}, want: "2001:db8::9"},
		{name: "untrusted peer cannot spoof", remoteAddr: "192.0.2.1:1234", headers: map[string]string{"X-Forwarded-For": "198.51.100.7"}, want: "192.0.2.1"},
		{name: "garbage header keeps peer", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Real-IP": "not-an-ip"}, want: "10.0.0.1"},
		{name: "no headers", remoteAddr: "10.0.0.1:1", want: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := TrustedProxyMiddleware(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = extractIP(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRateLimit_ForwardedHeaderNeedsTrustedProxy(t *testing.T) {
	// Arrange
	limiter := new(MockRateLimiter)
	srv := setupTestServerWithOptions(t, RouterOptions{
		Limiter:        limiter,
		TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
	})
	limiter.On("Allow", mock.Anything, "203.0.113.9").Return(true, 99, time.Now().Add(time.Minute), nil)
	limiter.On("Allow", mock.Anything, "192.0.2.50").Return(true, 99, time.Now().Add(time.Minute), nil)
	srv.redirector.On("RecordAndResolve", mock.Anything, "AbC123", mock.Anything).Return("https://example.com", nil)

	viaProxy := httptest.NewRequest(http.MethodGet, "/AbC123", nil)
	viaProxy.RemoteAddr = "10.1.2.3:5000"
	viaProxy.Header.Set("X-Forwarded-For", "203.0.113.9")

	direct := httptest.NewRequest(http.MethodGet, "/AbC123", nil)
	direct.RemoteAddr = "192.0.2.50:5000"
	direct.Header.Set("X-Forwarded-For", "203.0.113.77")

	// Act
	srv.router.ServeHTTP(httptest.NewRecorder(), viaProxy)
	srv.router.ServeHTTP(httptest.NewRecorder(), direct)

	// Assert
	limiter.AssertCalled(t, "Allow", mock.Anything, "203.0.113.9")
	limiter.AssertCalled(t, "Allow", mock.Anything, "192.0.2.50")
	limiter.AssertNotCalled(t, "Allow", mock.Anything, "203.0.113.77")
	srv.redirector.AssertCalled(t, "RecordAndResolve", mock.Anything, "AbC123", mock.MatchedBy(func(v domain.Visit) bool {
		return v.IP == "203.0.113.9"
	}))
}

func TestLoggingMiddleware_RecordsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New("info", logger.WithOutput(&buf))

	handler := RequestIDMiddleware(LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Link not found")
	})))

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("X-Request-ID", "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, float64(http.StatusNotFound), record["status"])
	assert.Equal(t, "/missing", record["path"])
	assert.Equal(t, "req-123", record["request_id"])
}
