package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/nexusbq/portal/internal/portal/domain"
	"github.com/nexusbq/portal/internal/portal/event"
	"github.com/nexusbq/portal/internal/portal/store"
	"github.com/nexusbq/portal/pkg/idx"
	"github.com/nexusbq/portal/pkg/slogx"
)

var (
	ErrSessionActive      = errors.New("a focus session is already active")
	ErrNoActiveSession    = errors.New("no active focus session")
	ErrInvalidContentType = errors.New("unknown content type")
)

// pointsFor computes the reward for one session:
//
//	points = floor((duration_seconds / 600) ^ 1.5 × 5)
//
// The curve is super-linear so one long uninterrupted session beats the same
// time split into fragments. Anything much under ten minutes floors to zero.
// The formula is a frozen contract; accrued points would be inconsistent
// across versions if it ever drifted.
func pointsFor(durationSeconds int64) int64 {
	if durationSeconds <= 0 {
		return 0
	}
	return int64(math.Floor(math.Pow(float64(durationSeconds)/600, 1.5) * 5))
}

type pendingSession struct {
	startTime    time.Time
	contentTitle string
	contentType  domain.ContentType
}

// FocusService tracks each account's Idle/Active session state and merges
// stopped sessions into the per-day ledger. Starting is purely in-memory: a
// session only becomes durable once it ends, so an Active session abandoned
// by a crash contributes nothing.
type FocusService struct {
	Store store.Store
	Bus   *event.Bus

	// Now is the clock, overridable in tests. Nil means time.Now.
	Now func() time.Time

	mu     sync.Mutex
	active map[string]pendingSession
}

func (s *FocusService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Start moves the account from Idle to Active. No store write happens here;
// it returns immediately.
func (s *FocusService) Start(ctx context.Context, accountID, contentTitle string, contentType domain.ContentType) error {
	if accountID == "" {
		return ErrInvalidRequest
	}
	if contentType == "" {
		contentType = domain.ContentLesson
	}
	if !contentType.Valid() {
		return ErrInvalidContentType
	}
	if contentTitle == "" {
		contentTitle = "Free study"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		s.active = make(map[string]pendingSession)
	}
	if _, ok := s.active[accountID]; ok {
		return ErrSessionActive
	}

	s.active[accountID] = pendingSession{
		startTime:    s.now(),
		contentTitle: contentTitle,
		contentType:  contentType,
	}

	slogx.FromContext(ctx).Debug("focus session started",
		slog.String("account_id", accountID),
		slog.String("content_title", contentTitle),
	)
	return nil
}

// Active reports whether the account currently has a running session.
func (s *FocusService) Active(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[accountID]
	return ok
}

// Stop ends the account's Active session and commits its accrual. The
// session's duration is frozen here; it is never recomputed from the stored
// timestamps.
func (s *FocusService) Stop(ctx context.Context, accountID string) (domain.FocusSession, int64, error) {
	log := slogx.FromContext(ctx)

	if accountID == "" {
		return domain.FocusSession{}, 0, ErrInvalidRequest
	}

	s.mu.Lock()
	pending, ok := s.active[accountID]
	delete(s.active, accountID)
	s.mu.Unlock()

	if !ok {
		log.Warn("stop without an active session", slog.String("account_id", accountID))
		return domain.FocusSession{}, 0, ErrNoActiveSession
	}

	now := s.now()
	duration := int64(now.Sub(pending.startTime) / time.Second)
	if duration <= 0 {
		// A clock gone backwards. Drop the session rather than record a
		// negative interval.
		log.Warn("discarding focus session with non-positive duration",
			slog.String("account_id", accountID),
			slog.Int64("duration", duration),
		)
		return domain.FocusSession{}, 0, ErrNoActiveSession
	}

	session := domain.FocusSession{
		ID:           idx.New().String(),
		StartTime:    pending.startTime,
		EndTime:      now,
		Duration:     duration,
		ContentTitle: pending.contentTitle,
		ContentType:  pending.contentType,
	}

	points, err := s.record(ctx, accountID, session)
	if err != nil {
		return domain.FocusSession{}, 0, err
	}

	log.Info("focus session recorded",
		slog.String("account_id", accountID),
		slog.String("session_id", session.ID),
		slog.Int64("duration", duration),
		slog.Int64("points", points),
	)

	publishAccount(ctx, s.Store, s.Bus, accountID, now)
	return session, points, nil
}

// record merges one finished session into the per-day ledger. Everything is
// commutative inside the transaction (append-only session rows, additive day
// totals, numeric increments on the account), so two racing stops both land
// in full: neither session nor either increment can be lost to a
// last-writer-wins overwrite.
func (s *FocusService) record(ctx context.Context, accountID string, session domain.FocusSession) (int64, error) {
	day := domain.DayKey(session.EndTime)
	points := pointsFor(session.Duration)

	err := withTxRetry(ctx, s.Store, func(tx store.Tx) error {
		if err := tx.Accounts().AddAccrual(ctx, accountID, session.Duration, points); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if err := tx.FocusDays().AppendSession(ctx, accountID, day, session); err != nil {
			return err
		}
		return tx.FocusDays().AddDayTime(ctx, accountID, day, session.Duration)
	})
	if err != nil {
		return 0, err
	}
	return points, nil
}
