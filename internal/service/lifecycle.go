package service

import (
	"context"

	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/repository"
)

// Execute marks an OPEN or FILLED post as carried out.
func (s *SupplyService) Execute(ctx context.Context, actorID, postID uint64) (*model.Post, error) {
	return s.transition(ctx, actorID, postID, model.PostExecuted, "executed")
}

// CancelPost withdraws an OPEN or FILLED post.  Participations are left
// untouched as history.
func (s *SupplyService) CancelPost(ctx context.Context, actorID, postID uint64) (*model.Post, error) {
	return s.transition(ctx, actorID, postID, model.PostCanceled, "canceled")
}

func (s *SupplyService) transition(ctx context.Context, actorID, postID uint64, to model.PostStatus, reason string) (*model.Post, error) {
	var (
		post *model.Post
		from model.PostStatus
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		p, err := tx.LockPost(ctx, postID)
		if err != nil {
			return err
		}
		if !p.IsAuthor(actorID) {
			return ErrForbidden
		}
		if !p.Status.CanTransitionTo(to) {
			return ErrInvalidTransition
		}
		if err := tx.UpdatePostStatus(ctx, postID, to); err != nil {
			return err
		}
		from = p.Status
		p.Status = to
		post = p
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	s.publishStatusChange(ctx, postID, statusChange{from: from, to: to, reason: reason})
	return post, nil
}
