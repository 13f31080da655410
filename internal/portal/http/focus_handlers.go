package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/nexusbq/portal/internal/portal/domain"
	"github.com/nexusbq/portal/internal/portal/service"
	"github.com/nexusbq/portal/pkg/httpx"
	"github.com/nexusbq/portal/pkg/slogx"
)

type focusStartRequest struct {
	ContentTitle string `json:"content_title" validate:"max=200"`
	ContentType  string `json:"content_type" validate:"omitempty,oneof=document lesson"`
}

type FocusStartHandler struct {
	FocusService *service.FocusService
}

func (h *FocusStartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID := httpx.AccountIDFromContext(ctx)

	var req focusStartRequest
	if r.Body != nil {
		// The body is optional; an empty start is a free-study session.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
			return
		}
	}
	if err := validate.Struct(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "content_type must be document or lesson")
		return
	}

	err := h.FocusService.Start(ctx, accountID, req.ContentTitle, domain.ContentType(req.ContentType))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionActive):
			httpx.WriteError(w, http.StatusConflict, "session_active", "A focus session is already active")
		case errors.Is(err, service.ErrInvalidContentType):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Unknown content type")
		default:
			slogx.FromContext(ctx).Error("failed to start focus session", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to start focus session")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"state": "active"})
}

// FocusSessionView is the wire shape of a recorded session.
type FocusSessionView struct {
	ID           string    `json:"id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Duration     int64     `json:"duration"`
	ContentTitle string    `json:"content_title"`
	ContentType  string    `json:"content_type"`
}

func focusSessionView(s domain.FocusSession) FocusSessionView {
	return FocusSessionView{
		ID:           s.ID,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Duration:     s.Duration,
		ContentTitle: s.ContentTitle,
		ContentType:  string(s.ContentType),
	}
}

type FocusStopHandler struct {
	FocusService *service.FocusService
}

func (h *FocusStopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID := httpx.AccountIDFromContext(ctx)

	session, points, err := h.FocusService.Stop(ctx, accountID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveSession):
			httpx.WriteError(w, http.StatusConflict, "no_active_session", "No focus session is active")
		case errors.Is(err, service.ErrAccountNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Account not found")
		case errors.Is(err, service.ErrTxConflict):
			httpx.WriteError(w, http.StatusConflict, "conflict", "Please retry")
		default:
			slogx.FromContext(ctx).Error("failed to stop focus session", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to stop focus session")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"session":       focusSessionView(session),
		"earned_points": points,
	})
}
