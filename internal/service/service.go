// Package service holds the supply participation workflow: cost splitting,
// the locked join sequence and the post lifecycle operations.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/repository"
)

// Store is the persistence the service needs.  repository.SQLStore and
// memory.Store both satisfy it.
type Store interface {
	InTx(ctx context.Context, fn func(tx repository.Tx) error) error
	CreatePost(ctx context.Context, p *model.Post) error
	GetPost(ctx context.Context, id uint64) (*model.Post, error)
	ListPosts(ctx context.Context, f model.PostFilter) ([]model.Post, error)
	ListPostsByAuthor(ctx context.Context, authorID uint64, order model.ListOrder) ([]model.PostSummary, error)
	ListPostsJoinedBy(ctx context.Context, userID uint64, order model.ListOrder) ([]model.Post, error)
	ListApplicants(ctx context.Context, postID uint64) ([]model.Applicant, error)
	GetPayoutAccount(ctx context.Context, id uint64) (*model.PayoutAccount, error)
}

// SupplyService implements the operations on supply posts.
type SupplyService struct {
	store           Store
	events          EventPublisher
	now             func() time.Time
	loc             *time.Location
	allowAuthorJoin bool
}

// Option configures a SupplyService.
type Option func(*SupplyService)

// WithClock replaces the wall clock used for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(s *SupplyService) { s.now = now }
}

// WithPublisher sets where committed changes are announced.
func WithPublisher(p EventPublisher) Option {
	return func(s *SupplyService) {
		if p != nil {
			s.events = p
		}
	}
}

// WithAuthorJoin controls whether a post's author may join it.
func WithAuthorJoin(allowed bool) Option {
	return func(s *SupplyService) { s.allowAuthorJoin = allowed }
}

// WithLocation sets the zone free-text dates without an offset are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *SupplyService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewSupplyService(store Store, opts ...Option) *SupplyService {
	s := &SupplyService{
		store:           store,
		events:          NopPublisher{},
		now:             func() time.Time { return time.Now().UTC() },
		loc:             time.UTC,
		allowAuthorJoin: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *SupplyService) Now() time.Time { return s.now() }

// storeErr translates repository sentinels into service kinds.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrPostNotFound),
		errors.Is(err, repository.ErrParticipationNotFound),
		errors.Is(err, repository.ErrAccountNotFound):
		return ErrNotFound
	}
	return err
}
