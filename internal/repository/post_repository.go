package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/supply-share/internal/model"
)

// PostRepo manages persistence for supply posts.  Status changes happen
// only through the Tx variants so that they run under the row lock taken
// by LockTx.
type PostRepo struct {
	db *sql.DB
}

// NewPostRepo constructs a PostRepo with the given DB handle.
func NewPostRepo(db *sql.DB) *PostRepo { return &PostRepo{db: db} }

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning multiple repositories.
func (r *PostRepo) DB() *sql.DB { return r.db }

// postColumns is the column list shared by every post query.  Queries
// alias supply_posts as p.
const postColumns = `p.id, p.author_id, p.demand_post_id, p.payout_account_id, p.title, p.content,
	p.image_url, p.demand_snapshot_title, p.demand_snapshot_content, p.demand_snapshot_image_url,
	p.total_amount, p.max_participants, p.apply_deadline, p.execute_time, p.status, p.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPost reads one row selected with postColumns, optionally followed by
// extra destinations.
func scanPost(s rowScanner, extra ...any) (*model.Post, error) {
	var (
		p        model.Post
		demandID sql.NullInt64
		payoutID sql.NullInt64
		total    decimal.Decimal
	)
	dest := []any{
		&p.ID, &p.AuthorID, &demandID, &payoutID, &p.Title, &p.Content,
		&p.ImageURL, &p.Demand.Title, &p.Demand.Content, &p.Demand.ImageURL,
		&total, &p.Capacity, &p.ApplyDeadline, &p.ExecuteTime, &p.Status, &p.CreatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if demandID.Valid {
		v := uint64(demandID.Int64)
		p.DemandPostID = &v
	}
	if payoutID.Valid {
		v := uint64(payoutID.Int64)
		p.PayoutAccountID = &v
	}
	p.TotalAmount = total.IntPart()
	return &p, nil
}

func nullableID(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}

// Create inserts a new post with status OPEN and populates ID and
// CreatedAt from the stored row.  A missing author or payout account row
// is reported as ErrParentNotFound.
func (r *PostRepo) Create(ctx context.Context, p *model.Post) error {
	if p.Status == "" {
		p.Status = model.PostOpen
	}
	const q = `INSERT INTO supply_posts (author_id, demand_post_id, payout_account_id, title, content, image_url,
		demand_snapshot_title, demand_snapshot_content, demand_snapshot_image_url,
		total_amount, max_participants, apply_deadline, execute_time, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		p.AuthorID, nullableID(p.DemandPostID), nullableID(p.PayoutAccountID), p.Title, p.Content, p.ImageURL,
		p.Demand.Title, p.Demand.Content, p.Demand.ImageURL,
		decimal.NewFromInt(p.TotalAmount), p.Capacity, p.ApplyDeadline.UTC(), p.ExecuteTime.UTC(), p.Status,
	)
	if err != nil {
		if isMissingParent(err) {
			return ErrParentNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return r.db.QueryRowContext(ctx, `SELECT created_at FROM supply_posts WHERE id = ?`, p.ID).Scan(&p.CreatedAt)
}

// GetByID retrieves a post without locking.  It returns ErrPostNotFound
// if there is no matching row.
func (r *PostRepo) GetByID(ctx context.Context, id uint64) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM supply_posts p WHERE p.id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	return p, err
}

// LockTx loads a post and takes an exclusive row lock on it for the rest
// of the transaction.  Concurrent LockTx calls for the same post block
// until the holder commits or rolls back; other posts are unaffected.
func (r *PostRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Post, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+postColumns+` FROM supply_posts p WHERE p.id = ? FOR UPDATE`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	return p, err
}

// UpdateStatusTx writes a new status for the post.  The caller must hold
// the row lock and is responsible for checking the transition.
func (r *PostRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.PostStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE supply_posts SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 when the value is unchanged; confirm the row exists.
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM supply_posts WHERE id = ?`, id).Scan(&one); errors.Is(err, sql.ErrNoRows) {
			return ErrPostNotFound
		}
	}
	return nil
}

// List returns posts newest first, optionally filtered by status and a
// substring of title or content.
func (r *PostRepo) List(ctx context.Context, f model.PostFilter) ([]model.Post, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "p.status = ?")
		args = append(args, f.Status)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "(p.title LIKE ? OR p.content LIKE ?)")
		like := "%" + q + "%"
		args = append(args, like, like)
	}
	query := `SELECT ` + postColumns + ` FROM supply_posts p`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func orderClause(order model.ListOrder) string {
	switch order {
	case model.OrderOldest:
		return ` ORDER BY p.created_at ASC, p.id ASC`
	case model.OrderComments:
		return ` ORDER BY comment_count DESC, p.created_at DESC, p.id DESC`
	case model.OrderEndDate:
		return ` ORDER BY p.apply_deadline ASC, p.id ASC`
	}
	return ` ORDER BY p.created_at DESC, p.id DESC`
}

const (
	activeJoinCount = `(SELECT COUNT(*) FROM supply_joins j2 WHERE j2.supply_id = p.id AND j2.status IN ('PENDING','CONFIRMED'))`
	commentCount    = `(SELECT COUNT(*) FROM supply_comments c WHERE c.post_id = p.id)`
)

// ListByAuthor returns the author's posts with participation and comment
// counts.  Members are filled by the caller via ParticipationRepo.
func (r *PostRepo) ListByAuthor(ctx context.Context, authorID uint64, order model.ListOrder) ([]model.PostSummary, error) {
	q := `SELECT ` + postColumns + `, ` + activeJoinCount + ` AS join_count, ` + commentCount + ` AS comment_count
		FROM supply_posts p WHERE p.author_id = ?` + orderClause(order)
	rows, err := r.db.QueryContext(ctx, q, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PostSummary{}
	for rows.Next() {
		var joins, comments int
		p, err := scanPost(rows, &joins, &comments)
		if err != nil {
			return nil, err
		}
		out = append(out, model.PostSummary{Post: *p, JoinMemberCount: joins, CommentCount: comments})
	}
	return out, rows.Err()
}

// ListJoinedBy returns posts in which the user holds an active participation.
func (r *PostRepo) ListJoinedBy(ctx context.Context, userID uint64, order model.ListOrder) ([]model.Post, error) {
	if order == model.OrderEndDate {
		order = model.OrderNewest
	}
	q := `SELECT ` + postColumns + `, ` + commentCount + ` AS comment_count
		FROM supply_posts p
		JOIN supply_joins j ON j.supply_id = p.id
		WHERE j.user_id = ? AND j.status IN ('PENDING','CONFIRMED')` + orderClause(order)
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Post{}
	for rows.Next() {
		var comments int
		p, err := scanPost(rows, &comments)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CountByAuthor returns how many posts the user has written.
func (r *PostRepo) CountByAuthor(ctx context.Context, authorID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM supply_posts WHERE author_id = ?`, authorID).Scan(&n)
	return n, err
}

// Exists reports whether a post with the id exists.
func (r *PostRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM supply_posts WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
