package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/nexusbq/portal/internal/portal/store"
)

// ReconcilerService periodically audits the accrual invariant: every
// account's total_study_time must equal the sum of its per-day totals. Both
// are written in the same transaction, so drift means a bug or a hand-edited
// database; the reconciler reports it loudly but never repairs silently.
// Invites are deliberately left alone: redeemed and expired ones are the
// audit trail.
type ReconcilerService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewReconcilerService creates the background auditor. An interval of 0 or
// less defaults to 1 hour.
func NewReconcilerService(st store.Store, logger *slog.Logger, interval time.Duration) *ReconcilerService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &ReconcilerService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background worker. Non-blocking; call Stop to shut it
// down gracefully.
func (s *ReconcilerService) Start() {
	go s.run()
	s.Logger.Info("reconciler started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until an in-progress sweep finishes.
func (s *ReconcilerService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("reconciler stopped")
}

func (s *ReconcilerService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep once on startup too.
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep checks every account once and returns the number of accounts whose
// ledgers disagree with their projection.
func (s *ReconcilerService) Sweep(ctx context.Context) int {
	ids, err := s.Store.Accounts().ListAccountIDs(ctx)
	if err != nil {
		s.Logger.Error("reconciler: failed to list accounts", "error", err)
		return 0
	}

	var drifted int
	for _, id := range ids {
		account, err := s.Store.Accounts().GetAccountByID(ctx, id)
		if err != nil {
			s.Logger.Error("reconciler: failed to load account", "account_id", id, "error", err)
			continue
		}

		sum, err := s.Store.FocusDays().SumDayTotals(ctx, id)
		if err != nil {
			s.Logger.Error("reconciler: failed to sum day totals", "account_id", id, "error", err)
			continue
		}

		if account.TotalStudyTime != sum {
			drifted++
			s.Logger.Error("accrual invariant violated",
				"account_id", id,
				"total_study_time", account.TotalStudyTime,
				"day_total_sum", sum,
			)
		}
	}

	s.Logger.Info("reconciler sweep completed", "accounts", len(ids), "drifted", drifted)
	return drifted
}
