package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/supply-share/internal/model"
)

// TaskRepo manages help requests in the tasks table.
type TaskRepo struct {
	db *sql.DB
}

func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{db: db} }

const taskColumns = `id, requester_id, helper_id, title, content, reward, status, created_at`

func scanTask(s rowScanner) (*model.Task, error) {
	var (
		t      model.Task
		helper sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.RequesterID, &helper, &t.Title, &t.Content, &t.Reward, &t.Status, &t.CreatedAt); err != nil {
		return nil, err
	}
	if helper.Valid {
		v := uint64(helper.Int64)
		t.HelperID = &v
	}
	return &t, nil
}

// Create inserts a PENDING task.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	t.Status = model.TaskPending
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (requester_id, title, content, reward, status) VALUES (?, ?, ?, ?, ?)`,
		t.RequesterID, t.Title, t.Content, t.Reward, t.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return r.db.QueryRowContext(ctx, `SELECT created_at FROM tasks WHERE id = ?`, t.ID).Scan(&t.CreatedAt)
}

// GetByID returns the task or ErrTaskNotFound.
func (r *TaskRepo) GetByID(ctx context.Context, id uint64) (*model.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	return t, err
}

func (r *TaskRepo) list(ctx context.Context, q string, args ...any) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ListPending returns open tasks newest first.
func (r *TaskRepo) ListPending(ctx context.Context) ([]model.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at DESC, id DESC`, model.TaskPending)
}

// ListByUser returns tasks the user requested or accepted, newest first.
func (r *TaskRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Task, error) {
	return r.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE requester_id = ? OR helper_id = ? ORDER BY created_at DESC, id DESC`, userID, userID)
}

// Accept assigns helperID to a PENDING task under a row lock.  It returns
// ErrTaskNotFound, ErrSelfAccept or ErrTaskNotPending when the task cannot
// be taken.
func (r *TaskRepo) Accept(ctx context.Context, taskID, helperID uint64) (*model.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	t, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? FOR UPDATE`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.RequesterID == helperID {
		return nil, ErrSelfAccept
	}
	if t.Status != model.TaskPending {
		return nil, ErrTaskNotPending
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET helper_id = ?, status = ? WHERE id = ?`,
		helperID, model.TaskAccepted, taskID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	t.HelperID = &helperID
	t.Status = model.TaskAccepted
	return t, nil
}
