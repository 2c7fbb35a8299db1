// Package httpapi exposes the marketplace REST surface.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/appstack-labs/marketplace/internal/app"
	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/httputil"
	"github.com/appstack-labs/marketplace/internal/metrics"
	"github.com/appstack-labs/marketplace/internal/middleware"
)

// Handler serves the REST API.
type Handler struct {
	app  *app.Application
	auth *middleware.Authenticator
	log  *logrus.Logger
}

// New builds the API handler.
func New(application *app.Application, log *logrus.Logger) *Handler {
	return &Handler{
		app:  application,
		auth: middleware.NewAuthenticator(application.Tokens, application.Stores.Accounts, log),
		log:  log,
	}
}

// Router assembles the full route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)

	// Credentials.
	api.HandleFunc("/auth/register", h.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)
	api.Handle("/auth/me", h.auth.Require(http.HandlerFunc(h.handleMe))).Methods(http.MethodGet)

	// Profile.
	profile := api.PathPrefix("/profile").Subrouter()
	profile.Use(h.auth.Require)
	profile.HandleFunc("", h.handleMe).Methods(http.MethodGet)
	profile.HandleFunc("", h.handleUpdateProfile).Methods(http.MethodPut)
	profile.HandleFunc("/upload-url", h.handleAvatarUpload).Methods(http.MethodPost)
	profile.HandleFunc("/avatar", h.handleDeleteAvatar).Methods(http.MethodDelete)
	profile.HandleFunc("", h.handleDeleteAccount).Methods(http.MethodDelete)

	// Public catalog. Optional auth lets owners see their own drafts.
	api.HandleFunc("/apps", h.handleBrowse).Methods(http.MethodGet)
	api.HandleFunc("/apps/search", h.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/apps/top", h.handleTop).Methods(http.MethodGet)
	api.Handle("/apps/{id}", h.auth.Optional(http.HandlerFunc(h.handleGetListing))).Methods(http.MethodGet)
	api.HandleFunc("/apps/{id}/reviews", h.handleListReviews).Methods(http.MethodGet)
	api.Handle("/apps/{id}/reviews", h.auth.Require(http.HandlerFunc(h.handleSubmitReview))).Methods(http.MethodPost)
	api.Handle("/apps/{id}/download", h.auth.Optional(http.HandlerFunc(h.handleDownload))).Methods(http.MethodPost)
	api.HandleFunc("/categories", h.handleListCategories).Methods(http.MethodGet)

	// Publisher surface.
	dev := api.PathPrefix("/dev").Subrouter()
	dev.Use(h.auth.Require, middleware.RequireRole(account.RolePublisher, account.RoleAdministrator))
	dev.HandleFunc("/apps", h.handleCreateListing).Methods(http.MethodPost)
	dev.HandleFunc("/apps", h.handleListOwned).Methods(http.MethodGet)
	dev.HandleFunc("/apps/{id}", h.handleUpdateListing).Methods(http.MethodPut)
	dev.HandleFunc("/apps/{id}", h.handleDeleteListing).Methods(http.MethodDelete)
	dev.HandleFunc("/apps/{id}/upload-url", h.handleUploadSlot).Methods(http.MethodPost)
	dev.HandleFunc("/apps/{id}/complete-upload", h.handleCompleteVersion).Methods(http.MethodPost)
	dev.HandleFunc("/apps/{id}/publish", h.handleRequestPublish).Methods(http.MethodPost)
	dev.HandleFunc("/apps/{id}/unpublish", h.handleUnpublish).Methods(http.MethodPost)
	dev.HandleFunc("/apps/{id}/downloads", h.handleDownloadHistory).Methods(http.MethodGet)
	dev.HandleFunc("/stats", h.handlePublisherStats).Methods(http.MethodGet)

	// Admin surface.
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.auth.Require, middleware.RequireRole(account.RoleAdministrator))
	admin.HandleFunc("/stats", h.handleAdminStats).Methods(http.MethodGet)
	admin.HandleFunc("/apps", h.handleAdminBrowse).Methods(http.MethodGet)
	admin.HandleFunc("/apps/{id}/approve", h.handleApprove).Methods(http.MethodPost)
	admin.HandleFunc("/apps/{id}/reject", h.handleReject).Methods(http.MethodPost)
	admin.HandleFunc("/apps/{id}/downloads", h.handleDownloadHistory).Methods(http.MethodGet)
	admin.HandleFunc("/apps/{id}/reviews/{accountId}/visibility", h.handleReviewVisibility).Methods(http.MethodPut)
	admin.HandleFunc("/users", h.handleListAccounts).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}/role", h.handleSetRole).Methods(http.MethodPut)
	admin.HandleFunc("/users/{id}/ban", h.handleSetBanned).Methods(http.MethodPut)
	admin.HandleFunc("/analytics/downloads", h.handleDownloadTrends).Methods(http.MethodGet)
	admin.HandleFunc("/analytics/top-apps", h.handleTop).Methods(http.MethodGet)
	admin.HandleFunc("/categories", h.handleCreateCategory).Methods(http.MethodPost)
	admin.HandleFunc("/categories/{id}", h.handleUpdateCategory).Methods(http.MethodPut)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode parses a JSON body, rejecting unknown payload shapes early.
func decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.Validation("request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid JSON body")
	}
	return nil
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.Status(err) >= http.StatusInternalServerError {
		h.log.WithField("path", r.URL.Path).WithError(err).Error("request failed")
	}
	httputil.WriteError(w, err)
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func mustAccount(r *http.Request) account.Account {
	acct, _ := middleware.AccountFrom(r.Context())
	return acct
}
