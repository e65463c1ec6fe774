package model

import (
	"errors"
	"time"
	"unicode/utf8"
)

// MaxNoteLength bounds Participation.Note in runes (supply_joins.note).
const MaxNoteLength = 200

var ErrNoteTooLong = errors.New("note must be at most 200 characters")

// ValidateNote checks a participant memo against the column limit.
func ValidateNote(note string) error {
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

// Participation records a user's admitted slot in a post.  UnitAmount is
// the per-participant share computed when the user joined and is never
// recomputed afterwards.
//
// Fields:
//  ID         – primary key identifier.
//  PostID     – the supply post joined.
//  UserID     – the participant.
//  Note       – optional memo left by the participant.
//  UnitAmount – cost snapshot in whole currency units.
//  Status     – PENDING, CONFIRMED or CANCELED.
//  JoinedAt   – creation timestamp.
type Participation struct {
	ID         uint64              // supply_joins.id
	PostID     uint64              // supply_joins.supply_id
	UserID     uint64              // supply_joins.user_id
	Note       string              // supply_joins.note
	UnitAmount int64               // supply_joins.unit_amount
	Status     ParticipationStatus // supply_joins.status
	JoinedAt   time.Time           // supply_joins.joined_at
}

// Applicant is an active participation joined with the participant's
// display name, as listed to the post author.
type Applicant struct {
	ParticipationID uint64
	UserID          uint64
	DisplayName     string
	UnitAmount      int64
	Status          ParticipationStatus
	JoinedAt        time.Time
}
