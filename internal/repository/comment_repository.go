package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/supply-share/internal/model"
)

// CommentRepo reads and writes one comment table.  Supply posts and tasks
// share the same layout and differ only in table and parent column.
type CommentRepo struct {
	db        *sql.DB
	table     string
	parentCol string
}

// NewPostCommentRepo returns a repository over supply_comments.
func NewPostCommentRepo(db *sql.DB) *CommentRepo {
	return &CommentRepo{db: db, table: "supply_comments", parentCol: "post_id"}
}

// NewTaskCommentRepo returns a repository over task_comments.
func NewTaskCommentRepo(db *sql.DB) *CommentRepo {
	return &CommentRepo{db: db, table: "task_comments", parentCol: "task_id"}
}

// Create stores the comment.  A missing parent row surfaces as
// ErrParentNotFound through the foreign key.
func (r *CommentRepo) Create(ctx context.Context, c *model.Comment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO `+r.table+` (`+r.parentCol+`, user_id, content) VALUES (?, ?, ?)`,
		c.ParentID, c.UserID, c.Content)
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
	c.ID = uint64(id)
	return r.db.QueryRowContext(ctx, `SELECT created_at FROM `+r.table+` WHERE id = ?`, c.ID).Scan(&c.CreatedAt)
}

// ListByParent returns comments oldest first with the author's name.
func (r *CommentRepo) ListByParent(ctx context.Context, parentID uint64) ([]model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.`+r.parentCol+`, c.user_id, u.name, c.content, c.created_at
		 FROM `+r.table+` c JOIN users u ON u.id = c.user_id
		 WHERE c.`+r.parentCol+` = ? ORDER BY c.created_at ASC, c.id ASC`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.ParentID, &c.UserID, &c.AuthorName, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
