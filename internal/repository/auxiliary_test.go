package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/supply-share/internal/model"
)

func mockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestRotateRevokesAndStores(t *testing.T) {
	db, mock := mockDB(t)
	exp := time.Now().UTC().Add(time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=\? LIMIT 1 FOR UPDATE`).
		WithArgs("old").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).AddRow(4, exp, nil))
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP\(\) WHERE token_hash=\?`).WithArgs("old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).WithArgs(4, "new", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	uid, err := NewTokenRepo(db).Rotate(context.Background(), "old", "new", exp)
	if err != nil {
		t.Fatal(err)
	}
	if uid != 4 {
		t.Fatalf("uid = %d, want 4", uid)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRotateRejectsRevokedToken(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM refresh_tokens`).WithArgs("old").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).
			AddRow(4, time.Now().Add(time.Hour), time.Now()))
	mock.ExpectRollback()

	if _, err := NewTokenRepo(db).Rotate(context.Background(), "old", "new", time.Now()); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

var taskCols = []string{"id", "requester_id", "helper_id", "title", "content", "reward", "status", "created_at"}

func TestTaskAccept(t *testing.T) {
	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		helper  uint64
		wantErr error
	}{
		{"missing", sqlmock.NewRows(taskCols), 2, ErrTaskNotFound},
		{"self", sqlmock.NewRows(taskCols).AddRow(1, 2, nil, "t", "", 0, "PENDING", time.Now()), 2, ErrSelfAccept},
		{"taken", sqlmock.NewRows(taskCols).AddRow(1, 3, 5, "t", "", 0, "ACCEPTED", time.Now()), 2, ErrTaskNotPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := mockDB(t)
			mock.ExpectBegin()
			mock.ExpectQuery(`FROM tasks WHERE id = \? FOR UPDATE`).WithArgs(1).WillReturnRows(tt.rows)
			mock.ExpectRollback()
			if _, err := NewTaskRepo(db).Accept(context.Background(), 1, tt.helper); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}

	db, mock := mockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tasks WHERE id = \? FOR UPDATE`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(taskCols).AddRow(1, 3, nil, "t", "", 500, "PENDING", time.Now()))
	mock.ExpectExec(`UPDATE tasks SET helper_id = \?, status = \? WHERE id = \?`).WithArgs(2, "ACCEPTED", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	task, err := NewTaskRepo(db).Accept(context.Background(), 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != model.TaskAccepted || task.HelperID == nil || *task.HelperID != 2 {
		t.Fatalf("task = %+v", task)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCommentOnMissingParent(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectExec(`INSERT INTO supply_comments \(post_id, user_id, content\)`).WithArgs(9, 1, "hello").
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "foreign key"})

	err := NewPostCommentRepo(db).Create(context.Background(), &model.Comment{ParentID: 9, UserID: 1, Content: "hello"})
	if !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("err = %v, want ErrParentNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDuplicateEmail(t *testing.T) {
	db, mock := mockDB(t)
	mock.ExpectExec(`INSERT INTO users`).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := NewUserRepo(db).Create(context.Background(), &model.User{Email: "a@b.c", Name: "a"}, "password1", 4)
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("err = %v, want ErrEmailExists", err)
	}
}
