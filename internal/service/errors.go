package service

import "errors"

// Error kinds returned by SupplyService.  Handlers map them to transport
// codes with Code and errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrRecruitmentClosed = errors.New("recruitment is closed")
	ErrDeadlinePassed    = errors.New("application deadline has passed")
	ErrCapacityReached   = errors.New("capacity reached")
	ErrForbidden         = errors.New("forbidden")
	ErrAuthorJoin        = errors.New("author cannot join own post")
	ErrNotJoined         = errors.New("no active participation")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

// ValidationError reports an invalid input field.  Err, when set, is the
// model error behind it.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

func invalidErr(field string, err error) error {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

// Code returns the stable reason code for err, or "" when err is not one of
// the service kinds.
func Code(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrRecruitmentClosed):
		return "RECRUITMENT_CLOSED"
	case errors.Is(err, ErrDeadlinePassed):
		return "DEADLINE_PASSED"
	case errors.Is(err, ErrCapacityReached):
		return "CAPACITY_REACHED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrAuthorJoin):
		return "AUTHOR_JOIN"
	case errors.Is(err, ErrNotJoined):
		return "NOT_JOINED"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.As(err, &ve):
		return "VALIDATION"
	}
	return ""
}
