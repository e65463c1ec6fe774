package model

import (
	"database/sql/driver"
	"fmt"
)

// PostStatus is the recruitment state of a supply post.  The set of values
// is closed: anything outside the five constants below is rejected both when
// scanning from and writing to the supply_posts.status column.
type PostStatus string

const (
	PostOpen     PostStatus = "OPEN"     // accepting participants
	PostFilled   PostStatus = "FILLED"   // capacity reached
	PostExecuted PostStatus = "EXECUTED" // purchase carried out
	PostCanceled PostStatus = "CANCELED" // withdrawn by the author
	PostExpired  PostStatus = "EXPIRED"  // application deadline passed
)

// PostStatuses lists every PostStatus in declaration order.
var PostStatuses = []PostStatus{PostOpen, PostFilled, PostExecuted, PostCanceled, PostExpired}

// ParsePostStatus converts s into a PostStatus or returns an error when s is
// not one of the known values.
func ParsePostStatus(s string) (PostStatus, error) {
	st := PostStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid post status %q", s)
	}
	return st, nil
}

// Valid reports whether s is one of the declared statuses.
func (s PostStatus) Valid() bool {
	switch s {
	case PostOpen, PostFilled, PostExecuted, PostCanceled, PostExpired:
		return true
	}
	return false
}

// Joinable reports whether new participants may be admitted.
func (s PostStatus) Joinable() bool { return s == PostOpen }

// Terminal reports whether s can no longer accept participants.  Every
// status except OPEN is terminal in that sense.
func (s PostStatus) Terminal() bool { return s.Valid() && s != PostOpen }

// CanTransitionTo reports whether the state machine allows moving from s to
// next.  FILLED may still be executed or canceled by the author; EXPIRED,
// EXECUTED and CANCELED are final.
func (s PostStatus) CanTransitionTo(next PostStatus) bool {
	switch s {
	case PostOpen:
		switch next {
		case PostFilled, PostExpired, PostExecuted, PostCanceled:
			return true
		}
	case PostFilled:
		switch next {
		case PostExecuted, PostCanceled:
			return true
		}
	case PostExecuted, PostCanceled, PostExpired:
		return false
	}
	return false
}

func (s PostStatus) String() string { return string(s) }

// Value implements driver.Valuer.
func (s PostStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid post status %q", string(s))
	}
	return string(s), nil
}

// Scan implements sql.Scanner.
func (s *PostStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into PostStatus", src)
	}
	st, err := ParsePostStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParticipationStatus is the state of a single join record.
type ParticipationStatus string

const (
	ParticipationPending   ParticipationStatus = "PENDING"
	ParticipationConfirmed ParticipationStatus = "CONFIRMED"
	ParticipationCanceled  ParticipationStatus = "CANCELED"
)

// ActiveParticipationStatuses are the statuses that occupy a slot.
var ActiveParticipationStatuses = []ParticipationStatus{ParticipationPending, ParticipationConfirmed}

// Valid reports whether s is a declared participation status.
func (s ParticipationStatus) Valid() bool {
	switch s {
	case ParticipationPending, ParticipationConfirmed, ParticipationCanceled:
		return true
	}
	return false
}

// Active reports whether the participation counts toward capacity.
func (s ParticipationStatus) Active() bool {
	return s == ParticipationPending || s == ParticipationConfirmed
}

func (s ParticipationStatus) String() string { return string(s) }

// Value implements driver.Valuer.
func (s ParticipationStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid participation status %q", string(s))
	}
	return string(s), nil
}

// Scan implements sql.Scanner.
func (s *ParticipationStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into ParticipationStatus", src)
	}
	st := ParticipationStatus(raw)
	if !st.Valid() {
		return fmt.Errorf("invalid participation status %q", raw)
	}
	*s = st
	return nil
}
