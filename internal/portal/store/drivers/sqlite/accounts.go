package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nexusbq/portal/internal/portal/domain"
)

type accountsRepo struct {
	db querier
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, display_name, is_admin, invites_available, premium_until,
		       total_study_time, points, created_at, updated_at
		FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts
			(id, display_name, is_admin, invites_available, premium_until,
			 total_study_time, points, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.DisplayName, a.IsAdmin, a.InvitesAvailable,
		toNullMillis(a.PremiumUntil), a.TotalStudyTime, a.Points,
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt),
	)
	return mapSQLiteErr(err)
}

func (r *accountsRepo) SetInvitesAvailable(ctx context.Context, accountID string, n int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET invites_available = ?, updated_at = ? WHERE id = ?`,
		n, time.Now().UnixMilli(), accountID)
	if err != nil {
		return mapSQLiteErr(err)
	}
	return requireRow(res)
}

func (r *accountsRepo) AddAccrual(ctx context.Context, accountID string, seconds, points int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET total_study_time = total_study_time + ?,
		    points = points + ?,
		    updated_at = ?
		WHERE id = ?`,
		seconds, points, time.Now().UnixMilli(), accountID)
	if err != nil {
		return mapSQLiteErr(err)
	}
	return requireRow(res)
}

func (r *accountsRepo) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM accounts ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *accountsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return false, mapSQLiteErr(err)
	}
	return count == 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a            domain.Account
		premiumUntil sql.NullInt64
		createdAt    int64
		updatedAt    int64
	)
	err := row.Scan(&a.ID, &a.DisplayName, &a.IsAdmin, &a.InvitesAvailable,
		&premiumUntil, &a.TotalStudyTime, &a.Points, &createdAt, &updatedAt)
	if err != nil {
		return domain.Account{}, mapSQLiteErr(err)
	}
	a.PremiumUntil = fromNullMillis(premiumUntil)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}
