package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nexusbq/portal/internal/portal/domain"
	"github.com/nexusbq/portal/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestPointsFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		duration int64
		want     int64
	}{
		{0, 0},
		{1, 0},
		{300, 1},   // half a unit: floor(0.5^1.5 * 5)
		{599, 4},   // just under one unit
		{600, 5},   // one full unit
		{1200, 14}, // floor(2^1.5 * 5) = floor(14.142)
		{2400, 40}, // 4^1.5 * 5 exactly
		{3600, 73}, // floor(6^1.5 * 5) = floor(73.48)
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, pointsFor(tc.duration), "duration %d", tc.duration)
	}
}

func TestFocusStartStop(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	account := seedAccount(t, st, domain.Account{DisplayName: "studier"})

	clock := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := &FocusService{Store: st, Now: func() time.Time { return clock }}

	t.Run("stop without start", func(t *testing.T) {
		_, _, err := svc.Stop(ctx, account.ID)
		require.ErrorIs(t, err, ErrNoActiveSession)
	})

	t.Run("double start is rejected", func(t *testing.T) {
		require.NoError(t, svc.Start(ctx, account.ID, "Algebra I", domain.ContentLesson))
		require.True(t, svc.Active(account.ID))

		err := svc.Start(ctx, account.ID, "Algebra II", domain.ContentLesson)
		require.ErrorIs(t, err, ErrSessionActive)
	})

	t.Run("stop freezes duration and accrues", func(t *testing.T) {
		clock = clock.Add(20 * time.Minute)

		session, points, err := svc.Stop(ctx, account.ID)
		require.NoError(t, err)
		require.Equal(t, int64(1200), session.Duration)
		require.Equal(t, int64(14), points)
		require.Equal(t, "Algebra I", session.ContentTitle)
		require.Equal(t, domain.ContentLesson, session.ContentType)
		require.False(t, svc.Active(account.ID))

		got, err := st.Accounts().GetAccountByID(ctx, account.ID)
		require.NoError(t, err)
		require.Equal(t, int64(1200), got.TotalStudyTime)
		require.Equal(t, int64(14), got.Points)

		day, err := st.FocusDays().GetDay(ctx, account.ID, "2026-03-10")
		require.NoError(t, err)
		require.Equal(t, int64(1200), day.TotalTime)
		require.Len(t, day.Sessions, 1)
		require.Equal(t, session.ID, day.Sessions[0].ID)
	})

	t.Run("start defaults title and type", func(t *testing.T) {
		require.NoError(t, svc.Start(ctx, account.ID, "", ""))
		clock = clock.Add(10 * time.Minute)

		session, points, err := svc.Stop(ctx, account.ID)
		require.NoError(t, err)
		require.Equal(t, "Free study", session.ContentTitle)
		require.Equal(t, domain.ContentLesson, session.ContentType)
		require.Equal(t, int64(5), points)
	})

	t.Run("invalid content type", func(t *testing.T) {
		err := svc.Start(ctx, account.ID, "Doodling", domain.ContentType("doodle"))
		require.ErrorIs(t, err, ErrInvalidContentType)
		require.False(t, svc.Active(account.ID))
	})

	t.Run("clock gone backwards drops the session", func(t *testing.T) {
		require.NoError(t, svc.Start(ctx, account.ID, "Time travel", domain.ContentDocument))
		clock = clock.Add(-time.Minute)

		_, _, err := svc.Stop(ctx, account.ID)
		require.ErrorIs(t, err, ErrNoActiveSession)
		require.False(t, svc.Active(account.ID))
		clock = clock.Add(time.Minute)
	})

	t.Run("unknown account rolls everything back", func(t *testing.T) {
		ghost := idx.New().String()
		require.NoError(t, svc.Start(ctx, ghost, "Nothing", domain.ContentDocument))
		clock = clock.Add(15 * time.Minute)

		_, _, err := svc.Stop(ctx, ghost)
		require.ErrorIs(t, err, ErrAccountNotFound)

		_, err = st.FocusDays().GetDay(ctx, ghost, domain.DayKey(clock))
		require.Error(t, err)
	})
}

func TestFocusAccrualConservation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	account := seedAccount(t, st, domain.Account{DisplayName: "grinder"})

	clock := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc := &FocusService{Store: st, Now: func() time.Time { return clock }}

	durations := []time.Duration{10 * time.Minute, 25 * time.Minute, 40 * time.Minute}
	var wantTotal, wantPoints int64
	for _, d := range durations {
		require.NoError(t, svc.Start(ctx, account.ID, "Session", domain.ContentDocument))
		clock = clock.Add(d)

		session, points, err := svc.Stop(ctx, account.ID)
		require.NoError(t, err)
		wantTotal += session.Duration
		wantPoints += points
	}

	got, err := st.Accounts().GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, wantTotal, got.TotalStudyTime)
	require.Equal(t, wantPoints, got.Points)

	// The account total must equal the sum over day buckets.
	sum, err := st.FocusDays().SumDayTotals(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, wantTotal, sum)

	day, err := st.FocusDays().GetDay(ctx, account.ID, "2026-03-10")
	require.NoError(t, err)
	require.Len(t, day.Sessions, len(durations))
	require.Equal(t, wantTotal, day.TotalTime)
}

func TestFocusConcurrentRecords(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	account := seedAccount(t, st, domain.Account{DisplayName: "parallel"})
	svc := &FocusService{Store: st}

	end := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	day := domain.DayKey(end)

	const sessions = 12
	const each = int64(600) // 5 points each

	var wg sync.WaitGroup
	errs := make(chan error, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.record(ctx, account.ID, domain.FocusSession{
				ID:           idx.New().String(),
				StartTime:    end.Add(-time.Duration(each) * time.Second),
				EndTime:      end,
				Duration:     each,
				ContentTitle: "Sprint",
				ContentType:  domain.ContentLesson,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// Every session and every increment must survive the race.
	got, err := st.Accounts().GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, each*sessions, got.TotalStudyTime)
	require.Equal(t, int64(5*sessions), got.Points)

	dayFocus, err := st.FocusDays().GetDay(ctx, account.ID, day)
	require.NoError(t, err)
	require.Equal(t, each*sessions, dayFocus.TotalTime)
	require.Len(t, dayFocus.Sessions, sessions)
}

func TestFocusSessionsSpanDays(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	account := seedAccount(t, st, domain.Account{DisplayName: "nightowl"})

	// Ends a minute past UTC midnight; the whole session lands on the end day.
	clock := time.Date(2026, 3, 11, 23, 50, 0, 0, time.UTC)
	svc := &FocusService{Store: st, Now: func() time.Time { return clock }}

	require.NoError(t, svc.Start(ctx, account.ID, "Late reading", domain.ContentDocument))
	clock = clock.Add(11 * time.Minute)

	session, _, err := svc.Stop(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "2026-03-12", domain.DayKey(session.EndTime))

	day, err := st.FocusDays().GetDay(ctx, account.ID, "2026-03-12")
	require.NoError(t, err)
	require.Equal(t, session.Duration, day.TotalTime)

	_, err = st.FocusDays().GetDay(ctx, account.ID, "2026-03-11")
	require.Error(t, err)
}
