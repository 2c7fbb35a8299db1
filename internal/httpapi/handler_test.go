package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appstack-labs/marketplace/internal/app"
	"github.com/appstack-labs/marketplace/internal/config"
	"github.com/appstack-labs/marketplace/internal/domain/listing"
)

func listingFixture(i int) listing.Listing {
	return listing.Listing{
		Title:     fmt.Sprintf("App %02d", i),
		Slug:      fmt.Sprintf("app-%02d", i),
		OwnerID:   "owner",
		Published: true,
	}
}

func newTestHandler(t *testing.T, reviewDelay time.Duration) (*Handler, *app.Application) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.Config{
		JWTSecret:           "test-secret",
		JWTTTL:              time.Hour,
		ReviewDelay:         reviewDelay,
		ReviewSweepInterval: time.Second,
		UploadURLTTL:        5 * time.Minute,
	}
	application := app.New(cfg, app.Stores{}, nil, log)
	return New(application, log), application
}

type testClient struct {
	t      *testing.T
	router http.Handler
	token  string
}

func (c *testClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func parse(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestPublishLifecycleEndToEnd(t *testing.T) {
	h, application := newTestHandler(t, time.Millisecond)
	router := h.Router()
	anon := &testClient{t: t, router: router}

	// A publisher signs up.
	rec := anon.do(http.MethodPost, "/api/auth/register", map[string]any{
		"name": "Dev", "email": "dev@example.com", "password": "secret-pass", "role": "publisher",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var session struct {
		Token string `json:"token"`
		User  struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
	}
	parse(t, rec, &session)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, "publisher", session.User.Role)

	dev := &testClient{t: t, router: router, token: session.Token}

	// Create a draft listing.
	rec = dev.do(http.MethodPost, "/api/dev/apps", map[string]any{
		"title": "Notes", "description": "A note taking app", "price": 0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	}
	parse(t, rec, &created)
	assert.Equal(t, "notes", created.Slug)

	// Publishing without a version is rejected.
	rec = dev.do(http.MethodPost, "/api/dev/apps/"+created.ID+"/publish", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Reserve an upload slot and record the uploaded version.
	rec = dev.do(http.MethodPost, "/api/dev/apps/"+created.ID+"/upload-url", map[string]any{
		"filename": "notes-1.0.0.zip", "contentType": "application/zip",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var slot struct {
		UploadURL string `json:"uploadUrl"`
		Key       string `json:"key"`
	}
	parse(t, rec, &slot)
	require.NotEmpty(t, slot.Key)

	rec = dev.do(http.MethodPost, "/api/dev/apps/"+created.ID+"/complete-upload", map[string]any{
		"key": slot.Key, "versionNumber": "1.0.0",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Duplicate version labels conflict.
	rec = dev.do(http.MethodPost, "/api/dev/apps/"+created.ID+"/complete-upload", map[string]any{
		"key": slot.Key, "versionNumber": "1.0.0",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Request publish; the listing enters the moderation queue.
	rec = dev.do(http.MethodPost, "/api/dev/apps/"+created.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Anonymous readers still get 404 while the listing is pending.
	rec = anon.do(http.MethodGet, "/api/apps/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Once the moderation window elapses the sweeper approves it.
	time.Sleep(5 * time.Millisecond)
	application.Sweeper.Sweep(context.Background())

	rec = anon.do(http.MethodGet, "/api/apps/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var fetched struct {
		Published bool `json:"isPublished"`
	}
	parse(t, rec, &fetched)
	assert.True(t, fetched.Published)

	// Downloads work now and bump the counter.
	rec = anon.do(http.MethodPost, "/api/apps/"+created.ID+"/download", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAuthAndRoleGates(t *testing.T) {
	h, _ := newTestHandler(t, time.Minute)
	router := h.Router()
	anon := &testClient{t: t, router: router}

	rec := anon.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A standard account cannot use the publisher surface.
	rec = anon.do(http.MethodPost, "/api/auth/register", map[string]any{
		"name": "User", "email": "user@example.com", "password": "secret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var session struct {
		Token string `json:"token"`
	}
	parse(t, rec, &session)

	user := &testClient{t: t, router: router, token: session.Token}
	rec = user.do(http.MethodPost, "/api/dev/apps", map[string]any{"title": "Nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = user.do(http.MethodGet, "/api/admin/stats", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Administrator cannot be self-assigned at signup.
	rec = anon.do(http.MethodPost, "/api/auth/register", map[string]any{
		"name": "Sneaky", "email": "sneaky@example.com", "password": "secret-pass", "role": "administrator",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorBodyShape(t *testing.T) {
	h, _ := newTestHandler(t, time.Minute)
	anon := &testClient{t: t, router: h.Router()}

	rec := anon.do(http.MethodPost, "/api/auth/login", map[string]any{
		"email": "nobody@example.com", "password": "whatever",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	parse(t, rec, &body)
	assert.Equal(t, "invalid credentials", body.Error)
	assert.Equal(t, "unauthorized", body.Code)
}

func TestSearchValidation(t *testing.T) {
	h, _ := newTestHandler(t, time.Minute)
	anon := &testClient{t: t, router: h.Router()}

	rec := anon.do(http.MethodGet, "/api/apps/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = anon.do(http.MethodGet, "/api/apps/search?q=notes", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBrowsePaginationShape(t *testing.T) {
	h, application := newTestHandler(t, time.Minute)
	anon := &testClient{t: t, router: h.Router()}
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := application.Stores.Listings.CreateListing(ctx, listingFixture(i))
		require.NoError(t, err)
	}

	rec := anon.do(http.MethodGet, "/api/apps?page=3&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Page       int               `json:"page"`
		TotalPages int               `json:"totalPages"`
		Total      int               `json:"total"`
		Apps       []json.RawMessage `json:"apps"`
	}
	parse(t, rec, &page)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 25, page.Total)
	assert.Len(t, page.Apps, 5)
}
