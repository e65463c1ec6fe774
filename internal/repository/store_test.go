package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/repository"
	"github.com/iliyamo/supply-share/internal/service"
)

var (
	now      = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	deadline = now.Add(24 * time.Hour)
)

var postCols = []string{
	"id", "author_id", "demand_post_id", "payout_account_id", "title", "content",
	"image_url", "demand_snapshot_title", "demand_snapshot_content", "demand_snapshot_image_url",
	"total_amount", "max_participants", "apply_deadline", "execute_time", "status", "created_at",
}

func postRow(capacity int, status string) *sqlmock.Rows {
	return sqlmock.NewRows(postCols).AddRow(
		1, 1, nil, nil, "rice", "", "", "", "", "",
		"100", capacity, deadline, deadline.Add(time.Hour), status, now,
	)
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newService(db *sql.DB, at time.Time) *service.SupplyService {
	return service.NewSupplyService(repository.NewSQLStore(db), service.WithClock(func() time.Time { return at }))
}

const lockQuery = `SELECT .* FROM supply_posts p WHERE p\.id = \? FOR UPDATE`

func TestJoinLocksPostFirstAndInserts(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(1).WillReturnRows(postRow(3, "OPEN"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM supply_joins`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery(`FROM supply_joins WHERE supply_id = \? AND user_id = \?`).WithArgs(1, 9).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO supply_joins`).
		WithArgs(1, 9, "hi", sqlmock.AnyArg(), "PENDING").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery(`SELECT joined_at FROM supply_joins WHERE id = \?`).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"joined_at"}).AddRow(now))
	mock.ExpectCommit()

	note := "hi"
	p, err := newService(db, now).Join(context.Background(), 9, 1, &note)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if p.ID != 7 || p.UnitAmount != 34 || !p.JoinedAt.Equal(now) {
		t.Fatalf("participation = %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestJoinLastSlotMarksFilled(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(1).WillReturnRows(postRow(2, "OPEN"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM supply_joins`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery(`FROM supply_joins WHERE supply_id = \? AND user_id = \?`).WithArgs(1, 9).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO supply_joins`).WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectQuery(`SELECT joined_at`).WillReturnRows(sqlmock.NewRows([]string{"joined_at"}).AddRow(now))
	mock.ExpectExec(`UPDATE supply_posts SET status = \? WHERE id = \?`).WithArgs("FILLED", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := newService(db, now).Join(context.Background(), 9, 1, nil); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestJoinAfterDeadlineCommitsExpired(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(1).WillReturnRows(postRow(3, "OPEN"))
	mock.ExpectExec(`UPDATE supply_posts SET status = \? WHERE id = \?`).WithArgs("EXPIRED", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := newService(db, deadline.Add(time.Second)).Join(context.Background(), 9, 1, nil)
	if !errors.Is(err, service.ErrDeadlinePassed) {
		t.Fatalf("err = %v, want ErrDeadlinePassed", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestJoinOnFullPostCommitsFilled(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(1).WillReturnRows(postRow(3, "OPEN"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM supply_joins`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectExec(`UPDATE supply_posts SET status = \? WHERE id = \?`).WithArgs("FILLED", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := newService(db, now).Join(context.Background(), 9, 1, nil)
	if !errors.Is(err, service.ErrCapacityReached) {
		t.Fatalf("err = %v, want ErrCapacityReached", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestJoinDuplicateKeyRollsBack(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(1).WillReturnRows(postRow(3, "OPEN"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM supply_joins`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(`FROM supply_joins WHERE supply_id = \? AND user_id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO supply_joins`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := newService(db, now).Join(context.Background(), 9, 1, nil)
	if !errors.Is(err, repository.ErrDuplicateParticipation) {
		t.Fatalf("err = %v, want ErrDuplicateParticipation", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestJoinUnknownPostRollsBack(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockQuery).WithArgs(5).WillReturnRows(sqlmock.NewRows(postCols))
	mock.ExpectRollback()

	_, err := newService(db, now).Join(context.Background(), 9, 5, nil)
	if !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListMembersGroupsByPost(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`WHERE j\.supply_id IN \(\?,\?\)`).WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"supply_id", "id", "user_id", "name", "phone_number", "note"}).
			AddRow(1, 10, 100, "alice", "010", "").
			AddRow(2, 11, 101, "bob", "011", "late").
			AddRow(1, 12, 102, "carol", "012", ""))

	got, err := repository.NewParticipationRepo(db).ListMembers(context.Background(), []uint64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got[1]) != 2 || len(got[2]) != 1 || got[2][0].Note != "late" {
		t.Fatalf("members = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostStatusIsValidatedOnScan(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM supply_posts p WHERE p\.id = \?`).WithArgs(1).WillReturnRows(postRow(3, "PAUSED"))

	if _, err := repository.NewPostRepo(db).GetByID(context.Background(), 1); err == nil {
		t.Fatal("expected scan error for unknown status")
	}
}

func TestCreatePostMissingParentIsValidationError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO supply_posts`).
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})

	demand := uint64(404)
	_, err := newService(db, now).CreatePost(context.Background(), 1, service.CreatePostInput{
		Title:        "rice",
		TotalAmount:  100,
		Capacity:     3,
		ApplyInput:   "2026-03-20",
		ExecuteInput: "2026-03-21 10:00",
		DemandPostID: &demand,
	})
	var verr *service.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if verr.Field != "author_id" || service.Code(err) != "VALIDATION" {
		t.Fatalf("field = %q code = %q", verr.Field, service.Code(err))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreatePostWithDemandReferenceInserts(t *testing.T) {
	db, mock := newMock(t)
	demand := uint64(404)
	mock.ExpectExec(`INSERT INTO supply_posts`).
		WithArgs(1, demand, nil, "rice", "", "", "old title", "", "",
			sqlmock.AnyArg(), 3, sqlmock.AnyArg(), sqlmock.AnyArg(), "OPEN").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery(`SELECT created_at FROM supply_posts WHERE id = \?`).WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	p, err := newService(db, now).CreatePost(context.Background(), 1, service.CreatePostInput{
		Title:        "rice",
		TotalAmount:  100,
		Capacity:     3,
		ApplyInput:   "2026-03-20",
		ExecuteInput: "2026-03-21 10:00",
		DemandPostID: &demand,
		Demand:       model.DemandSnapshot{Title: "old title"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID != 5 || p.DemandPostID == nil || *p.DemandPostID != demand {
		t.Fatalf("post = %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
