package httpapi

import (
	"net/http"

	"github.com/appstack-labs/marketplace/internal/httputil"
	"github.com/appstack-labs/marketplace/internal/services/listings"
)

type listingRequest struct {
	Title            string   `json:"title"`
	ShortDescription string   `json:"shortDescription"`
	Description      string   `json:"description"`
	Categories       []string `json:"categories"`
	Price            float64  `json:"price"`
	Currency         string   `json:"currency"`
}

func (req listingRequest) input() listings.Input {
	return listings.Input{
		Title:            req.Title,
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		CategoryIDs:      req.Categories,
		Price:            req.Price,
		Currency:         req.Currency,
	}
}

func (h *Handler) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	l, err := h.app.Listings.Create(r.Context(), mustAccount(r), req.input())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) handleListOwned(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.app.Listings.ListOwned(r.Context(), mustAccount(r),
		queryInt(r, "page", 1), queryInt(r, "limit", 10))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"apps": items, "total": total})
}

func (h *Handler) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	l, err := h.app.Listings.Update(r.Context(), mustAccount(r), pathID(r), req.input())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleDeleteListing(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Listings.Delete(r.Context(), mustAccount(r), pathID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type uploadSlotRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

func (h *Handler) handleUploadSlot(w http.ResponseWriter, r *http.Request) {
	var req uploadSlotRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	grant, err := h.app.Listings.RequestUploadSlot(r.Context(), mustAccount(r), pathID(r), req.Filename, req.ContentType)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, grant)
}

type versionRequest struct {
	Key   string `json:"key"`
	Label string `json:"versionNumber"`
}

func (h *Handler) handleCompleteVersion(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	l, err := h.app.Listings.CompleteVersion(r.Context(), mustAccount(r), pathID(r), req.Key, req.Label)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) handleRequestPublish(w http.ResponseWriter, r *http.Request) {
	l, err := h.app.Listings.RequestPublish(r.Context(), mustAccount(r), pathID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	l, err := h.app.Listings.Unpublish(r.Context(), mustAccount(r), pathID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleDownloadHistory(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Downloads.History(r.Context(), mustAccount(r), pathID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"downloads": items})
}

func (h *Handler) handlePublisherStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Catalog.StatsForPublisher(r.Context(), mustAccount(r).ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
