// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state. Handlers should translate this into an HTTP
// 409 response.
var ErrConflict = errors.New("conflict")

var (
	// ErrPostNotFound indicates that a supply post does not exist.
	ErrPostNotFound = errors.New("supply post not found")
	// ErrParticipationNotFound indicates that no matching join record exists.
	ErrParticipationNotFound = errors.New("participation not found")
	// ErrDuplicateParticipation is returned when the (post, user) uniqueness
	// constraint over non-canceled participations rejects an insert.
	ErrDuplicateParticipation = errors.New("participation already exists")
	// ErrTaskNotFound indicates that a help request does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskNotPending is returned when accepting a task that is no longer open.
	ErrTaskNotPending = errors.New("task is not pending")
	// ErrSelfAccept is returned when a requester tries to accept their own task.
	ErrSelfAccept = errors.New("cannot accept own task")
	// ErrAccountNotFound indicates a missing payout account.
	ErrAccountNotFound = errors.New("payout account not found")
	// ErrParentNotFound is returned when an insert references a row that does
	// not exist, such as a comment on a missing post.
	ErrParentNotFound = errors.New("referenced row not found")
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452
)

// isDuplicate reports whether err is a MySQL duplicate-key error.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// isMissingParent reports whether err is a foreign key violation on insert.
func isMissingParent(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlNoReferencedRow
}
