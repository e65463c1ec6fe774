package service

import (
	"context"
	"errors"

	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/repository"
)

// statusChange records a post status write made inside a transaction so it
// can be announced after commit.
type statusChange struct {
	from, to model.PostStatus
	reason   string
}

// Join admits actorID into the post.  The whole check-and-admit sequence
// runs with the post row locked:
//
//  1. the post must be OPEN, else ErrRecruitmentClosed (ErrCapacityReached
//     when it is already FILLED);
//  2. at or after the deadline the post becomes EXPIRED and ErrDeadlinePassed is returned;
//  3. with capacity already occupied the post becomes FILLED and ErrCapacityReached is returned;
//  4. otherwise the existing active participation is returned (its note
//     updated when a different one is supplied) or a new one is created
//     with the current unit amount, and the post becomes FILLED if that
//     admission took the last slot.
//
// Status writes made in steps 2 and 3 are committed even though Join fails.
// A note longer than model.MaxNoteLength is rejected before the post is locked.
func (s *SupplyService) Join(ctx context.Context, actorID, postID uint64, note *string) (*model.Participation, error) {
	if note != nil {
		if err := model.ValidateNote(*note); err != nil {
			return nil, invalidErr("note", err)
		}
	}
	if !s.allowAuthorJoin {
		post, err := s.store.GetPost(ctx, postID)
		if err != nil {
			return nil, storeErr(err)
		}
		if post.IsAuthor(actorID) {
			return nil, ErrAuthorJoin
		}
	}

	var (
		result  *model.Participation
		created bool
		change  *statusChange
		joinErr error
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		post, err := tx.LockPost(ctx, postID)
		if err != nil {
			return err
		}
		if !post.Status.Joinable() {
			joinErr = ErrRecruitmentClosed
			if post.Status == model.PostFilled {
				joinErr = ErrCapacityReached
			}
			return nil
		}
		if !s.now().Before(post.ApplyDeadline) {
			if err := tx.UpdatePostStatus(ctx, postID, model.PostExpired); err != nil {
				return err
			}
			change = &statusChange{from: post.Status, to: model.PostExpired, reason: "deadline"}
			joinErr = ErrDeadlinePassed
			return nil
		}
		occupied, err := tx.CountActiveParticipations(ctx, postID)
		if err != nil {
			return err
		}
		if occupied >= post.Capacity {
			if err := tx.UpdatePostStatus(ctx, postID, model.PostFilled); err != nil {
				return err
			}
			change = &statusChange{from: post.Status, to: model.PostFilled, reason: "capacity"}
			joinErr = ErrCapacityReached
			return nil
		}

		unit, err := Split(post.TotalAmount, post.Capacity)
		if err != nil {
			return err
		}
		p, err := tx.FindActiveParticipation(ctx, postID, actorID)
		switch {
		case err == nil:
			if note != nil && *note != p.Note {
				if err := tx.UpdateParticipationNote(ctx, p.ID, *note); err != nil {
					return err
				}
				p.Note = *note
			}
		case errors.Is(err, repository.ErrParticipationNotFound):
			p = &model.Participation{
				PostID:     postID,
				UserID:     actorID,
				UnitAmount: unit,
				Status:     model.ParticipationPending,
			}
			if note != nil {
				p.Note = *note
			}
			if err := tx.CreateParticipation(ctx, p); err != nil {
				return err
			}
			created = true
			occupied++
		default:
			return err
		}

		if occupied >= post.Capacity {
			if err := tx.UpdatePostStatus(ctx, postID, model.PostFilled); err != nil {
				return err
			}
			change = &statusChange{from: post.Status, to: model.PostFilled, reason: "capacity"}
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	if change != nil {
		s.publishStatusChange(ctx, postID, *change)
	}
	if joinErr != nil {
		return nil, joinErr
	}
	s.publishJoined(ctx, result, created)
	return result, nil
}

// Leave cancels the actor's active participation while the post is still
// recruiting.  The row is kept with status CANCELED and the slot is freed.
func (s *SupplyService) Leave(ctx context.Context, actorID, postID uint64) error {
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		post, err := tx.LockPost(ctx, postID)
		if err != nil {
			return err
		}
		if !post.Status.Joinable() || !s.now().Before(post.ApplyDeadline) {
			return ErrRecruitmentClosed
		}
		p, err := tx.FindActiveParticipation(ctx, postID, actorID)
		if errors.Is(err, repository.ErrParticipationNotFound) {
			return ErrNotJoined
		}
		if err != nil {
			return err
		}
		return tx.UpdateParticipationStatus(ctx, p.ID, model.ParticipationCanceled)
	})
	return storeErr(err)
}

// Confirm lets the author mark a PENDING participation CONFIRMED.
func (s *SupplyService) Confirm(ctx context.Context, authorID, postID, participationID uint64) (*model.Participation, error) {
	var result *model.Participation
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		post, err := tx.LockPost(ctx, postID)
		if err != nil {
			return err
		}
		if !post.IsAuthor(authorID) {
			return ErrForbidden
		}
		if post.Status == model.PostCanceled || post.Status == model.PostExpired {
			return ErrRecruitmentClosed
		}
		p, err := tx.GetParticipation(ctx, participationID)
		if err != nil {
			return err
		}
		if p.PostID != postID {
			return ErrNotFound
		}
		if p.Status != model.ParticipationPending {
			return ErrInvalidTransition
		}
		if err := tx.UpdateParticipationStatus(ctx, p.ID, model.ParticipationConfirmed); err != nil {
			return err
		}
		p.Status = model.ParticipationConfirmed
		result = p
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return result, nil
}

// Quote is the cost preview for a post.
type Quote struct {
	UnitAmountPreview int64
	PayoutAccount     *model.PayoutAccount
}

// Quote returns the unit amount a participant joining now would be charged,
// together with the author's payout account when the post names one.
func (s *SupplyService) Quote(ctx context.Context, postID uint64) (*Quote, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, storeErr(err)
	}
	q := &Quote{UnitAmountPreview: UnitPreview(post)}
	if post.PayoutAccountID != nil {
		acct, err := s.store.GetPayoutAccount(ctx, *post.PayoutAccountID)
		switch {
		case err == nil:
			q.PayoutAccount = acct
		case errors.Is(err, repository.ErrAccountNotFound):
		default:
			return nil, err
		}
	}
	return q, nil
}

// Applicants lists active participations, newest first.  Only the author
// may see them.
func (s *SupplyService) Applicants(ctx context.Context, requesterID, postID uint64) ([]model.Applicant, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !post.IsAuthor(requesterID) {
		return nil, ErrForbidden
	}
	out, err := s.store.ListApplicants(ctx, postID)
	if err != nil {
		return nil, err
	}
	return out, nil
}
