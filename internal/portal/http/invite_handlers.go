package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nexusbq/portal/internal/portal/domain"
	"github.com/nexusbq/portal/internal/portal/service"
	"github.com/nexusbq/portal/pkg/httpx"
	"github.com/nexusbq/portal/pkg/slogx"
)

var validate = validator.New()

// InviteView is the wire shape of an invite.
type InviteView struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Used      bool       `json:"used"`
	UsedBy    string     `json:"used_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func inviteView(inv domain.Invite) InviteView {
	v := InviteView{
		ID:        inv.ID,
		Code:      inv.Code,
		Used:      inv.Used,
		UsedBy:    inv.UsedBy,
		CreatedAt: inv.CreatedAt,
		ExpiresAt: inv.ExpiresAt,
	}
	if !inv.UsedAt.IsZero() {
		usedAt := inv.UsedAt
		v.UsedAt = &usedAt
	}
	return v
}

type InviteGenerateHandler struct {
	InviteService *service.InviteService
}

func (h *InviteGenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	accountID := httpx.AccountIDFromContext(ctx)
	if accountID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	invite, err := h.InviteService.Generate(ctx, accountID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuotaExhausted):
			httpx.WriteError(w, http.StatusForbidden, "quota_exhausted", "No invites available")
		case errors.Is(err, service.ErrAccountNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Account not found")
		case errors.Is(err, service.ErrTxConflict):
			httpx.WriteError(w, http.StatusConflict, "conflict", "Please retry")
		default:
			log.Error("failed to generate invite", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to generate invite")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, inviteView(invite))
}

type InviteListHandler struct {
	InviteService *service.InviteService
}

func (h *InviteListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID := httpx.AccountIDFromContext(ctx)
	invites, err := h.InviteService.ListByCreator(ctx, accountID)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list invites", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to list invites")
		return
	}

	views := make([]InviteView, 0, len(invites))
	for _, inv := range invites {
		views = append(views, inviteView(inv))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"invites": views})
}

type inviteValidateRequest struct {
	Code string `json:"code" validate:"required"`
}

type InviteValidateHandler struct {
	InviteService *service.InviteService
}

func (h *InviteValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req inviteValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	invite, err := h.InviteService.Validate(ctx, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInviteNotFound):
			httpx.WriteError(w, http.StatusNotFound, "invalid_invite", "Invite is invalid or already used")
		case errors.Is(err, service.ErrInviteExpired):
			httpx.WriteError(w, http.StatusGone, "invite_expired", "Invite has expired")
		default:
			slogx.FromContext(ctx).Error("failed to validate invite", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to validate invite")
		}
		return
	}

	// Advisory only: the invite is not reserved. Redeem re-checks inside
	// its transaction.
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"invite_id": invite.ID,
		"code":      invite.Code,
	})
}

type inviteRedeemRequest struct {
	InviteID    string `json:"invite_id" validate:"required"`
	AccountID   string `json:"account_id" validate:"required"`
	DisplayName string `json:"display_name" validate:"max=120"`
}

type InviteRedeemHandler struct {
	InviteService *service.InviteService
}

func (h *InviteRedeemHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req inviteRedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invite_id and account_id are required")
		return
	}

	account, err := h.InviteService.Redeem(ctx, req.InviteID, req.AccountID, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInviteNotFound):
			httpx.WriteError(w, http.StatusNotFound, "invalid_invite", "Invite not found")
		case errors.Is(err, service.ErrInviteAlreadyUsed):
			httpx.WriteError(w, http.StatusConflict, "invite_used", "Invite has already been used")
		case errors.Is(err, service.ErrInviteExpired):
			httpx.WriteError(w, http.StatusGone, "invite_expired", "Invite has expired")
		case errors.Is(err, service.ErrAccountExists):
			httpx.WriteError(w, http.StatusConflict, "account_exists", "Account already exists")
		case errors.Is(err, service.ErrTxConflict):
			httpx.WriteError(w, http.StatusConflict, "conflict", "Please retry")
		default:
			log.Error("failed to redeem invite", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to redeem invite")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, accountView(account))
}
