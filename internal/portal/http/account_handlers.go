package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nexusbq/portal/internal/portal/domain"
	"github.com/nexusbq/portal/internal/portal/event"
	"github.com/nexusbq/portal/internal/portal/service"
	"github.com/nexusbq/portal/internal/portal/store"
	"github.com/nexusbq/portal/pkg/httpx"
	"github.com/nexusbq/portal/pkg/slogx"
)

// AccountView is the wire shape of the account projection.
type AccountView struct {
	ID               string                  `json:"id"`
	DisplayName      string                  `json:"display_name"`
	IsAdmin          bool                    `json:"is_admin"`
	InvitesAvailable int                     `json:"invites_available"`
	Premium          bool                    `json:"premium"`
	PremiumUntil     *time.Time              `json:"premium_until,omitempty"`
	TotalStudyTime   int64                   `json:"total_study_time"`
	Points           int64                   `json:"points"`
	FocusData        map[string]DayFocusView `json:"focus_data,omitempty"`
}

// DayFocusView is one day's aggregate on the wire.
type DayFocusView struct {
	TotalTime int64              `json:"total_time"`
	Sessions  []FocusSessionView `json:"sessions"`
}

func accountView(a domain.Account) AccountView {
	v := AccountView{
		ID:               a.ID,
		DisplayName:      a.DisplayName,
		IsAdmin:          a.IsAdmin,
		InvitesAvailable: a.InvitesAvailable,
		Premium:          a.Premium(time.Now()),
		TotalStudyTime:   a.TotalStudyTime,
		Points:           a.Points,
	}
	if !a.PremiumUntil.IsZero() {
		until := a.PremiumUntil
		v.PremiumUntil = &until
	}
	if len(a.FocusData) > 0 {
		v.FocusData = make(map[string]DayFocusView, len(a.FocusData))
		for day, df := range a.FocusData {
			dv := DayFocusView{TotalTime: df.TotalTime}
			for _, s := range df.Sessions {
				dv.Sessions = append(dv.Sessions, focusSessionView(s))
			}
			v.FocusData[day] = dv
		}
	}
	return v
}

// canAccess reports whether the caller may read the target account: the
// account itself, or an admin.
func canAccess(r *http.Request, st store.Store, targetID string) (bool, error) {
	callerID := httpx.AccountIDFromContext(r.Context())
	if callerID == "" {
		return false, nil
	}
	if callerID == targetID {
		return true, nil
	}

	caller, err := st.Accounts().GetAccountByID(r.Context(), callerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return caller.IsAdmin, nil
}

type AccountHandler struct {
	AccountService *service.AccountService
	Store          store.Store
}

func (h *AccountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	targetID := r.PathValue("id")
	ok, err := canAccess(r, h.Store, targetID)
	if err != nil {
		slogx.FromContext(ctx).Error("access check failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to load account")
		return
	}
	if !ok {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "Not your account")
		return
	}

	account, err := h.AccountService.Get(ctx, targetID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountNotFound):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Account not found")
		default:
			slogx.FromContext(ctx).Error("failed to load account", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to load account")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, accountView(account))
}

// AccountEventsHandler streams committed account updates as server-sent
// events. This is the push half of the projection: the engines publish after
// each commit and any number of observers follow along.
type AccountEventsHandler struct {
	Bus   *event.Bus
	Store store.Store
}

func (h *AccountEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	targetID := r.PathValue("id")
	ok, err := canAccess(r, h.Store, targetID)
	if err != nil {
		slogx.FromContext(ctx).Error("access check failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to open stream")
		return
	}
	if !ok {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "Not your account")
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Streaming unsupported")
		return
	}

	updates, cancel := h.Bus.Subscribe(targetID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case update, open := <-updates:
			if !open {
				return
			}
			payload, err := json.Marshal(accountView(update.Account))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: account\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
