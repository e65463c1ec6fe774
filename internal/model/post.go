package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Post is a group-buy offer whose total amount is split among up to
// Capacity participants.  It corresponds to a row in the `supply_posts`
// table.
//
// Fields:
//  ID              – primary key identifier.
//  AuthorID        – user who created the post.
//  DemandPostID    – optional id of the help request this post answers.
//  PayoutAccountID – optional payout account shown on the quote.
//  Title/Content   – what is being shared.
//  ImageURL        – optional image reference (upload handled elsewhere).
//  Demand          – snapshot of the demand post shown under the card.
//  TotalAmount     – total cost in whole currency units; zero is a free share.
//  Capacity        – maximum number of participants, at least 1.
//  ApplyDeadline   – joins are refused at or after this instant.
//  ExecuteTime     – when the purchase happens; strictly after ApplyDeadline.
//  Status          – recruitment state.
//  CreatedAt       – creation timestamp.
type Post struct {
	ID              uint64         // supply_posts.id
	AuthorID        uint64         // supply_posts.author_id
	DemandPostID    *uint64        // supply_posts.demand_post_id (nullable)
	PayoutAccountID *uint64        // supply_posts.payout_account_id (nullable)
	Title           string         // supply_posts.title
	Content         string         // supply_posts.content
	ImageURL        string         // supply_posts.image_url
	Demand          DemandSnapshot // supply_posts.demand_snapshot_*
	TotalAmount     int64          // supply_posts.total_amount
	Capacity        int            // supply_posts.max_participants
	ApplyDeadline   time.Time      // supply_posts.apply_deadline
	ExecuteTime     time.Time      // supply_posts.execute_time
	Status          PostStatus     // supply_posts.status
	CreatedAt       time.Time      // supply_posts.created_at
}

// DemandSnapshot copies the visible part of the demand post at creation time.
type DemandSnapshot struct {
	Title    string
	Content  string
	ImageURL string
}

// Column limits of supply_posts.
const (
	MaxTitleLength    = 120             // title, demand_snapshot_title (runes)
	MaxImageURLLength = 500             // image_url, demand_snapshot_image_url (runes)
	MaxTotalAmount    = 999_999_999_999 // DECIMAL(12,0)
	MaxCapacity       = 4_294_967_295   // INT UNSIGNED
)

var (
	ErrTitleRequired    = errors.New("title is required")
	ErrTitleTooLong     = errors.New("title must be at most 120 characters")
	ErrNegativeAmount   = errors.New("total amount cannot be negative")
	ErrAmountTooLarge   = errors.New("total amount must be at most 999999999999")
	ErrCapacityTooSmall = errors.New("capacity must be at least 1")
	ErrCapacityTooLarge = errors.New("capacity is too large")
	ErrImageURLTooLong  = errors.New("image url must be at most 500 characters")
	ErrDemandTitleLong  = errors.New("demand snapshot title must be at most 120 characters")
	ErrExecuteNotAfter  = errors.New("execute time must be after the application deadline")
	ErrDeadlineMissing  = errors.New("application deadline is required")
)

// Validate checks the invariants every stored post must satisfy.
func (p *Post) Validate() error {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if p.TotalAmount < 0 {
		return ErrNegativeAmount
	}
	if p.TotalAmount > MaxTotalAmount {
		return ErrAmountTooLarge
	}
	if p.Capacity < 1 {
		return ErrCapacityTooSmall
	}
	if int64(p.Capacity) > MaxCapacity {
		return ErrCapacityTooLarge
	}
	if utf8.RuneCountInString(p.ImageURL) > MaxImageURLLength || utf8.RuneCountInString(p.Demand.ImageURL) > MaxImageURLLength {
		return ErrImageURLTooLong
	}
	if utf8.RuneCountInString(p.Demand.Title) > MaxTitleLength {
		return ErrDemandTitleLong
	}
	if p.ApplyDeadline.IsZero() {
		return ErrDeadlineMissing
	}
	if !p.ExecuteTime.After(p.ApplyDeadline) {
		return ErrExecuteNotAfter
	}
	return nil
}

// IsAuthor reports whether userID wrote the post.
func (p *Post) IsAuthor(userID uint64) bool { return p.AuthorID == userID }

// PostFilter narrows post listings.  Zero values mean "no filter".
type PostFilter struct {
	Status PostStatus
	Query  string
	Limit  int
	Offset int
}

// ListOrder selects the ordering of "my posts" style listings.
type ListOrder string

const (
	OrderNewest   ListOrder = "newest"
	OrderOldest   ListOrder = "oldest"
	OrderComments ListOrder = "comment"
	OrderEndDate  ListOrder = "enddate"
)

// ParseListOrder maps a query parameter to a ListOrder, defaulting to newest.
func ParseListOrder(s string) ListOrder {
	switch ListOrder(strings.ToLower(strings.TrimSpace(s))) {
	case OrderOldest:
		return OrderOldest
	case OrderComments:
		return OrderComments
	case OrderEndDate:
		return OrderEndDate
	}
	return OrderNewest
}

// PostSummary is a post with the aggregate counts used by author listings.
type PostSummary struct {
	Post
	JoinMemberCount int
	CommentCount    int
	Members         []Member
}

// Member is an active participant as shown to the post author.
type Member struct {
	ParticipationID uint64
	UserID          uint64
	Name            string
	PhoneNumber     string
	Note            string
}
