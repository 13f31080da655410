package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nexusbq/portal/internal/portal/domain"
	"github.com/nexusbq/portal/internal/portal/store"
)

type focusDaysRepo struct {
	db querier
}

func (r *focusDaysRepo) AppendSession(ctx context.Context, accountID, day string, s domain.FocusSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO focus_sessions
			(id, account_id, day, start_time, end_time, duration,
			 content_title, content_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, accountID, day, toMillis(s.StartTime), toMillis(s.EndTime),
		s.Duration, s.ContentTitle, string(s.ContentType), toMillis(s.EndTime),
	)
	return mapSQLiteErr(err)
}

func (r *focusDaysRepo) AddDayTime(ctx context.Context, accountID, day string, seconds int64) error {
	// Upsert keeps the day total a commutative increment, so racing stops
	// compose instead of overwriting each other.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO focus_days (account_id, day, total_time)
		VALUES (?, ?, ?)
		ON CONFLICT (account_id, day)
		DO UPDATE SET total_time = total_time + excluded.total_time`,
		accountID, day, seconds)
	return mapSQLiteErr(err)
}

func (r *focusDaysRepo) GetDay(ctx context.Context, accountID, day string) (domain.DayFocus, error) {
	var df domain.DayFocus
	err := r.db.QueryRowContext(ctx, `
		SELECT total_time FROM focus_days WHERE account_id = ? AND day = ?`,
		accountID, day).Scan(&df.TotalTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DayFocus{}, store.ErrNotFound
		}
		return domain.DayFocus{}, mapSQLiteErr(err)
	}

	sessions, err := r.listSessions(ctx, accountID, day)
	if err != nil {
		return domain.DayFocus{}, err
	}
	df.Sessions = sessions
	return df, nil
}

func (r *focusDaysRepo) GetFocusData(ctx context.Context, accountID string) (map[string]domain.DayFocus, error) {
	data := make(map[string]domain.DayFocus)

	rows, err := r.db.QueryContext(ctx, `
		SELECT day, total_time FROM focus_days WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			day   string
			total int64
		)
		if err := rows.Scan(&day, &total); err != nil {
			return nil, err
		}
		data[day] = domain.DayFocus{TotalTime: total}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// ULID session ids sort in commit order, which is the contract for the
	// sessions sequence.
	sessionRows, err := r.db.QueryContext(ctx, `
		SELECT day, id, start_time, end_time, duration, content_title, content_type
		FROM focus_sessions WHERE account_id = ?
		ORDER BY day ASC, id ASC`, accountID)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer sessionRows.Close()

	for sessionRows.Next() {
		var (
			day string
			s   domain.FocusSession
		)
		s, day, err = scanSessionWithDay(sessionRows)
		if err != nil {
			return nil, err
		}
		df := data[day]
		df.Sessions = append(df.Sessions, s)
		data[day] = df
	}
	return data, sessionRows.Err()
}

func (r *focusDaysRepo) SumDayTotals(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_time), 0) FROM focus_days WHERE account_id = ?`,
		accountID).Scan(&sum)
	return sum, mapSQLiteErr(err)
}

func (r *focusDaysRepo) listSessions(ctx context.Context, accountID, day string) ([]domain.FocusSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT day, id, start_time, end_time, duration, content_title, content_type
		FROM focus_sessions WHERE account_id = ? AND day = ?
		ORDER BY id ASC`, accountID, day)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	var sessions []domain.FocusSession
	for rows.Next() {
		s, _, err := scanSessionWithDay(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func scanSessionWithDay(row rowScanner) (domain.FocusSession, string, error) {
	var (
		day         string
		s           domain.FocusSession
		startTime   int64
		endTime     int64
		contentType string
	)
	err := row.Scan(&day, &s.ID, &startTime, &endTime, &s.Duration,
		&s.ContentTitle, &contentType)
	if err != nil {
		return domain.FocusSession{}, "", mapSQLiteErr(err)
	}
	s.StartTime = fromMillis(startTime)
	s.EndTime = fromMillis(endTime)
	s.ContentType = domain.ContentType(contentType)
	return s, day, nil
}
