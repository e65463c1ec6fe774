package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/repository"
	"github.com/iliyamo/supply-share/internal/utils"
)

// CreatePostInput carries the author's form.  ApplyInput and ExecuteInput
// are free-text dates; the deadline takes the end of the period typed and
// the execute time its start.
type CreatePostInput struct {
	Title           string
	Content         string
	ImageURL        string
	TotalAmount     int64
	Capacity        int
	ApplyInput      string
	ExecuteInput    string
	DemandPostID    *uint64
	Demand          model.DemandSnapshot
	PayoutAccountID *uint64
}

// CreatePost validates the input and stores a new OPEN post.
func (s *SupplyService) CreatePost(ctx context.Context, authorID uint64, in CreatePostInput) (*model.Post, error) {
	deadline, err := utils.ParseUserDatetime(in.ApplyInput, utils.EndOfPeriod, s.loc)
	if err != nil {
		return nil, invalid("apply_input", err.Error())
	}
	execute, err := utils.ParseUserDatetime(in.ExecuteInput, utils.StartOfPeriod, s.loc)
	if err != nil {
		return nil, invalid("execute_input", err.Error())
	}
	if !deadline.After(s.now()) {
		return nil, invalid("apply_input", "application deadline must be in the future")
	}

	p := &model.Post{
		AuthorID:        authorID,
		DemandPostID:    in.DemandPostID,
		PayoutAccountID: in.PayoutAccountID,
		Title:           strings.TrimSpace(in.Title),
		Content:         strings.TrimSpace(in.Content),
		ImageURL:        strings.TrimSpace(in.ImageURL),
		Demand:          in.Demand,
		TotalAmount:     in.TotalAmount,
		Capacity:        in.Capacity,
		ApplyDeadline:   deadline.UTC(),
		ExecuteTime:     execute.UTC(),
		Status:          model.PostOpen,
	}
	if err := p.Validate(); err != nil {
		return nil, invalidErr(validationField(err), err)
	}

	if in.PayoutAccountID != nil {
		acct, err := s.store.GetPayoutAccount(ctx, *in.PayoutAccountID)
		if errors.Is(err, repository.ErrAccountNotFound) || (err == nil && acct.UserID != authorID) {
			return nil, invalid("payout_account_id", "unknown payout account")
		}
		if err != nil {
			return nil, err
		}
	}

	if err := s.store.CreatePost(ctx, p); err != nil {
		if errors.Is(err, repository.ErrParentNotFound) {
			if in.PayoutAccountID != nil {
				return nil, invalid("payout_account_id", "unknown payout account")
			}
			return nil, invalid("author_id", "unknown author")
		}
		return nil, err
	}
	return p, nil
}

func validationField(err error) string {
	switch {
	case errors.Is(err, model.ErrTitleRequired), errors.Is(err, model.ErrTitleTooLong):
		return "title"
	case errors.Is(err, model.ErrNegativeAmount), errors.Is(err, model.ErrAmountTooLarge):
		return "total_amount"
	case errors.Is(err, model.ErrCapacityTooSmall), errors.Is(err, model.ErrCapacityTooLarge):
		return "max_participants"
	case errors.Is(err, model.ErrImageURLTooLong):
		return "image_url"
	case errors.Is(err, model.ErrDemandTitleLong):
		return "demand_snapshot_title"
	case errors.Is(err, model.ErrDeadlineMissing):
		return "apply_input"
	case errors.Is(err, model.ErrExecuteNotAfter):
		return "execute_input"
	}
	return "post"
}

// GetPost returns a post or ErrNotFound.
func (s *SupplyService) GetPost(ctx context.Context, id uint64) (*model.Post, error) {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

// ListPosts returns posts newest first.
func (s *SupplyService) ListPosts(ctx context.Context, f model.PostFilter) ([]model.Post, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("status", "unknown status")
	}
	return s.store.ListPosts(ctx, f)
}

// MyPost is an author's post card.
type MyPost struct {
	model.PostSummary
	DaysLeft int
}

// MyPosts returns the author's posts with member counts and the active
// members' contact details.
func (s *SupplyService) MyPosts(ctx context.Context, userID uint64, order model.ListOrder) ([]MyPost, error) {
	rows, err := s.store.ListPostsByAuthor(ctx, userID, order)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]MyPost, 0, len(rows))
	for _, r := range rows {
		out = append(out, MyPost{PostSummary: r, DaysLeft: DaysLeft(r.ApplyDeadline, now, s.loc)})
	}
	return out, nil
}

// MyJoins returns posts the user currently participates in.  Ordering by
// end date is not offered for this list and falls back to newest.
func (s *SupplyService) MyJoins(ctx context.Context, userID uint64, order model.ListOrder) ([]model.Post, error) {
	if order == model.OrderEndDate {
		order = model.OrderNewest
	}
	return s.store.ListPostsJoinedBy(ctx, userID, order)
}

// DaysLeft counts calendar days in loc from now's date to the deadline's
// date.  It is negative once the deadline day has passed.
func DaysLeft(deadline, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	d := deadline.In(loc)
	n := now.In(loc)
	dd := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	nd := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(dd.Sub(nd).Hours() / 24))
}
