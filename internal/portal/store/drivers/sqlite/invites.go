package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nexusbq/portal/internal/portal/domain"
)

type invitesRepo struct {
	db querier
}

func (r *invitesRepo) CreateInvite(ctx context.Context, inv domain.Invite) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invites
			(id, code, created_by, used, used_by, created_at, used_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Code, inv.CreatedBy, inv.Used, toNullString(inv.UsedBy),
		toMillis(inv.CreatedAt), toNullMillis(inv.UsedAt), toMillis(inv.ExpiresAt),
	)
	return mapSQLiteErr(err)
}

func (r *invitesRepo) GetInviteByID(ctx context.Context, id string) (domain.Invite, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, code, created_by, used, used_by, created_at, used_at, expires_at
		FROM invites WHERE id = ?`, id)
	return scanInvite(row)
}

func (r *invitesRepo) GetUnusedInviteByCode(ctx context.Context, code string) (domain.Invite, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, code, created_by, used, used_by, created_at, used_at, expires_at
		FROM invites WHERE code = ? AND used = 0`, code)
	return scanInvite(row)
}

func (r *invitesRepo) MarkInviteUsed(ctx context.Context, inviteID, usedBy string, usedAt time.Time) error {
	// The used = 0 guard makes the transition one-way at the SQL level even
	// if a caller skips the transactional re-read.
	res, err := r.db.ExecContext(ctx, `
		UPDATE invites SET used = 1, used_by = ?, used_at = ?
		WHERE id = ? AND used = 0`,
		usedBy, usedAt.UnixMilli(), inviteID)
	if err != nil {
		return mapSQLiteErr(err)
	}
	return requireRow(res)
}

func (r *invitesRepo) ListInvitesByCreator(ctx context.Context, accountID string) ([]domain.Invite, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, code, created_by, used, used_by, created_at, used_at, expires_at
		FROM invites WHERE created_by = ?
		ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	var invites []domain.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

func scanInvite(row rowScanner) (domain.Invite, error) {
	var (
		inv       domain.Invite
		usedBy    sql.NullString
		createdAt int64
		usedAt    sql.NullInt64
		expiresAt int64
	)
	err := row.Scan(&inv.ID, &inv.Code, &inv.CreatedBy, &inv.Used, &usedBy,
		&createdAt, &usedAt, &expiresAt)
	if err != nil {
		return domain.Invite{}, mapSQLiteErr(err)
	}
	inv.UsedBy = fromNullString(usedBy)
	inv.CreatedAt = fromMillis(createdAt)
	inv.UsedAt = fromNullMillis(usedAt)
	inv.ExpiresAt = fromMillis(expiresAt)
	return inv, nil
}
