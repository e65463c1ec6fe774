package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/supply-share/internal/model"
)

// ParticipationRepo provides access to the supply_joins table.  Writes
// are only exposed as Tx variants: admission always happens while the
// parent post row is locked.
type ParticipationRepo struct {
	db *sql.DB
}

// NewParticipationRepo returns a new ParticipationRepo bound to the given database.
func NewParticipationRepo(db *sql.DB) *ParticipationRepo { return &ParticipationRepo{db: db} }

const participationColumns = `id, supply_id, user_id, note, unit_amount, status, joined_at`

func scanParticipation(s rowScanner) (*model.Participation, error) {
	var (
		p    model.Participation
		unit decimal.Decimal
	)
	if err := s.Scan(&p.ID, &p.PostID, &p.UserID, &p.Note, &unit, &p.Status, &p.JoinedAt); err != nil {
		return nil, err
	}
	p.UnitAmount = unit.IntPart()
	return &p, nil
}

// CountActiveTx counts PENDING and CONFIRMED participations for a post.
func (r *ParticipationRepo) CountActiveTx(ctx context.Context, tx *sql.Tx, postID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM supply_joins WHERE supply_id = ? AND status IN ('PENDING','CONFIRMED')`,
		postID).Scan(&n)
	return n, err
}

// FindActiveTx returns the user's non-canceled participation in the post or
// ErrParticipationNotFound.
func (r *ParticipationRepo) FindActiveTx(ctx context.Context, tx *sql.Tx, postID, userID uint64) (*model.Participation, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+participationColumns+` FROM supply_joins WHERE supply_id = ? AND user_id = ? AND status <> 'CANCELED' LIMIT 1`,
		postID, userID)
	p, err := scanParticipation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrParticipationNotFound
	}
	return p, err
}

// GetByIDTx loads a participation by id within the transaction.
func (r *ParticipationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Participation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+participationColumns+` FROM supply_joins WHERE id = ?`, id)
	p, err := scanParticipation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrParticipationNotFound
	}
	return p, err
}

// CreateTx inserts a participation and populates its ID and JoinedAt.  A
// unique key violation on (supply_id, user_id, active_flag) is reported as
// ErrDuplicateParticipation.
func (r *ParticipationRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Participation) error {
	if p.Status == "" {
		p.Status = model.ParticipationPending
	}
	const q = `INSERT INTO supply_joins (supply_id, user_id, note, unit_amount, status) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.PostID, p.UserID, p.Note, decimal.NewFromInt(p.UnitAmount), p.Status)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateParticipation
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return tx.QueryRowContext(ctx, `SELECT joined_at FROM supply_joins WHERE id = ?`, p.ID).Scan(&p.JoinedAt)
}

// UpdateNoteTx replaces the participant's memo.  The unit amount snapshot
// is deliberately not part of any update statement.
func (r *ParticipationRepo) UpdateNoteTx(ctx context.Context, tx *sql.Tx, id uint64, note string) error {
	_, err := tx.ExecContext(ctx, `UPDATE supply_joins SET note = ? WHERE id = ?`, note, id)
	return err
}

// UpdateStatusTx changes the participation status.
func (r *ParticipationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.ParticipationStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE supply_joins SET status = ? WHERE id = ?`, status, id)
	return err
}

// ListApplicants returns active participations of the post joined with the
// participant's name, newest first.
func (r *ParticipationRepo) ListApplicants(ctx context.Context, postID uint64) ([]model.Applicant, error) {
	const q = `SELECT j.id, j.user_id, u.name, j.unit_amount, j.status, j.joined_at
		FROM supply_joins j
		JOIN users u ON u.id = j.user_id
		WHERE j.supply_id = ? AND j.status IN ('PENDING','CONFIRMED')
		ORDER BY j.joined_at DESC, j.id DESC`
	rows, err := r.db.QueryContext(ctx, q, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Applicant{}
	for rows.Next() {
		var (
			a    model.Applicant
			unit decimal.Decimal
		)
		if err := rows.Scan(&a.ParticipationID, &a.UserID, &a.DisplayName, &unit, &a.Status, &a.JoinedAt); err != nil {
			return nil, err
		}
		a.UnitAmount = unit.IntPart()
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListMembers returns active members for each of the given posts keyed by
// post id.
func (r *ParticipationRepo) ListMembers(ctx context.Context, postIDs []uint64) (map[uint64][]model.Member, error) {
	out := make(map[uint64][]model.Member, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(postIDs)), ",")
	args := make([]any, 0, len(postIDs))
	for _, id := range postIDs {
		args = append(args, id)
	}
	q := `SELECT j.supply_id, j.id, j.user_id, u.name, u.phone_number, j.note
		FROM supply_joins j
		JOIN users u ON u.id = j.user_id
		WHERE j.supply_id IN (` + placeholders + `) AND j.status IN ('PENDING','CONFIRMED')
		ORDER BY j.joined_at ASC, j.id ASC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			postID uint64
			m      model.Member
		)
		if err := rows.Scan(&postID, &m.ParticipationID, &m.UserID, &m.Name, &m.PhoneNumber, &m.Note); err != nil {
			return nil, err
		}
		out[postID] = append(out[postID], m)
	}
	return out, rows.Err()
}

// CountByUser returns how many participations the user has ever created.
func (r *ParticipationRepo) CountByUser(ctx context.Context, userID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM supply_joins WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}
