package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/httputil"
	"github.com/appstack-labs/marketplace/internal/services/catalog"
)

func (h *Handler) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Catalog.StatsForAdmin(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleAdminBrowse(w http.ResponseWriter, r *http.Request) {
	f := listingFilter(r)
	f.Search = r.URL.Query().Get("q")
	page, err := h.app.Catalog.AdminBrowse(r.Context(), f)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	l, err := h.app.Listings.Approve(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	l, err := h.app.Listings.Reject(r.Context(), pathID(r), req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

type visibilityRequest struct {
	Hidden bool `json:"hidden"`
}

func (h *Handler) handleReviewVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	rev, err := h.app.Reviews.SetHidden(r.Context(), pathID(r), mux.Vars(r)["accountId"], req.Hidden)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rev)
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	role := account.Role(r.URL.Query().Get("role"))
	items, total, err := h.app.Accounts.List(r.Context(), role,
		queryInt(r, "page", 1), queryInt(r, "limit", 10))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"users": items, "total": total})
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	acct, err := h.app.Accounts.SetRole(r.Context(), mustAccount(r).ID, pathID(r), account.Role(req.Role))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct)
}

type banRequest struct {
	Banned bool `json:"banned"`
}

func (h *Handler) handleSetBanned(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	acct, err := h.app.Accounts.SetBanned(r.Context(), mustAccount(r).ID, pathID(r), req.Banned)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct)
}

func (h *Handler) handleDownloadTrends(w http.ResponseWriter, r *http.Request) {
	trends, err := h.app.Catalog.DownloadTrends(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trends)
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parent      string `json:"parent"`
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.app.Catalog.CreateCategory(r.Context(), catalog.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.Parent,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.app.Catalog.UpdateCategory(r.Context(), pathID(r), catalog.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.Parent,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}
