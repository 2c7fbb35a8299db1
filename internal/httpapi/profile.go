package httpapi

import (
	"net/http"

	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/httputil"
	"github.com/appstack-labs/marketplace/internal/services/accounts"
)

type profileRequest struct {
	Name      *string                   `json:"name"`
	Email     *string                   `json:"email"`
	Phone     *string                   `json:"phone"`
	Bio       *string                   `json:"bio"`
	Location  *string                   `json:"location"`
	Website   *string                   `json:"website"`
	Publisher *account.PublisherProfile `json:"publisherProfile"`

	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	acct, err := h.app.Accounts.UpdateProfile(r.Context(), mustAccount(r).ID, accounts.ProfileUpdate{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Bio:             req.Bio,
		Location:        req.Location,
		Website:         req.Website,
		Publisher:       req.Publisher,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct)
}

type avatarRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

func (h *Handler) handleAvatarUpload(w http.ResponseWriter, r *http.Request) {
	var req avatarRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	grant, err := h.app.Accounts.RequestAvatarUpload(r.Context(), mustAccount(r).ID, req.Filename, req.ContentType)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, grant)
}

func (h *Handler) handleDeleteAvatar(w http.ResponseWriter, r *http.Request) {
	acct, err := h.app.Accounts.DeleteAvatar(r.Context(), mustAccount(r).ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acct)
}

func (h *Handler) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Accounts.Delete(r.Context(), mustAccount(r).ID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
