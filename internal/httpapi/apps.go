package httpapi

import (
	"net/http"
	"strconv"

	"github.com/appstack-labs/marketplace/internal/domain/listing"
	"github.com/appstack-labs/marketplace/internal/httputil"
	"github.com/appstack-labs/marketplace/internal/middleware"
	"github.com/appstack-labs/marketplace/internal/services/reviews"
)

func listingFilter(r *http.Request) listing.Filter {
	q := r.URL.Query()
	f := listing.Filter{
		CategoryID: q.Get("category"),
		FreeOnly:   q.Get("free") == "true",
		Status:     q.Get("status"),
		Sort:       q.Get("sort"),
		Page:       queryInt(r, "page", 1),
		PageSize:   queryInt(r, "limit", 10),
	}
	if raw := q.Get("minPrice"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			f.MinPrice = &v
		}
	}
	if raw := q.Get("maxPrice"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			f.MaxPrice = &v
		}
	}
	return f
}

func (h *Handler) handleBrowse(w http.ResponseWriter, r *http.Request) {
	page, err := h.app.Catalog.Browse(r.Context(), listingFilter(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"apps": items})
}

func (h *Handler) handleTop(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Catalog.TopListings(r.Context(), queryInt(r, "limit", 10))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"apps": items})
}

// handleGetListing serves a published listing to anyone; the owner and
// admins also see drafts.
func (h *Handler) handleGetListing(w http.ResponseWriter, r *http.Request) {
	idOrSlug := pathID(r)

	if acct, ok := middleware.AccountFrom(r.Context()); ok {
		l, err := h.app.Listings.Get(r.Context(), acct, idOrSlug)
		if err == nil {
			httputil.WriteJSON(w, http.StatusOK, l)
			return
		}
	}

	l, err := h.app.Catalog.GetPublished(r.Context(), idOrSlug)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Reviews.List(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"reviews": items})
}

type reviewRequest struct {
	Rating int    `json:"rating"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

func (h *Handler) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.app.Reviews.Submit(r.Context(), mustAccount(r), pathID(r), reviews.Input{
		Rating: req.Rating,
		Title:  req.Title,
		Body:   req.Body,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, result)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	acct, _ := middleware.AccountFrom(r.Context())
	result, err := h.app.Downloads.Record(r.Context(), acct, pathID(r), r.RemoteAddr, r.UserAgent())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Catalog.ListCategories(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"categories": items})
}
