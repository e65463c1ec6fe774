package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/supply-share/internal/model"
)

// Tx is the set of operations available inside one unit of work on the
// supply tables.  LockPost must be the first call: it takes the exclusive
// post row lock that serializes every other write in the transaction.
type Tx interface {
	LockPost(ctx context.Context, postID uint64) (*model.Post, error)
	UpdatePostStatus(ctx context.Context, postID uint64, status model.PostStatus) error
	CountActiveParticipations(ctx context.Context, postID uint64) (int, error)
	FindActiveParticipation(ctx context.Context, postID, userID uint64) (*model.Participation, error)
	GetParticipation(ctx context.Context, id uint64) (*model.Participation, error)
	CreateParticipation(ctx context.Context, p *model.Participation) error
	UpdateParticipationNote(ctx context.Context, id uint64, note string) error
	UpdateParticipationStatus(ctx context.Context, id uint64, status model.ParticipationStatus) error
}

// SQLStore bundles the supply repositories behind a single handle and runs
// transactional work against MySQL.
type SQLStore struct {
	db       *sql.DB
	Posts    *PostRepo
	Joins    *ParticipationRepo
	Accounts *AccountRepo
}

// NewSQLStore wires the supply repositories to db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:       db,
		Posts:    NewPostRepo(db),
		Joins:    NewParticipationRepo(db),
		Accounts: NewAccountRepo(db),
	}
}

// InTx runs fn inside a database transaction.  The transaction commits when
// fn returns nil and rolls back otherwise, releasing any row locks taken.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()
	if err := fn(&sqlTxAdapter{tx: sqlTx, posts: s.Posts, joins: s.Joins}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func (s *SQLStore) CreatePost(ctx context.Context, p *model.Post) error {
	return s.Posts.Create(ctx, p)
}

func (s *SQLStore) GetPost(ctx context.Context, id uint64) (*model.Post, error) {
	return s.Posts.GetByID(ctx, id)
}

func (s *SQLStore) ListPosts(ctx context.Context, f model.PostFilter) ([]model.Post, error) {
	return s.Posts.List(ctx, f)
}

// ListPostsByAuthor returns the author's posts with their active members attached.
func (s *SQLStore) ListPostsByAuthor(ctx context.Context, authorID uint64, order model.ListOrder) ([]model.PostSummary, error) {
	posts, err := s.Posts.ListByAuthor(ctx, authorID, order)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	members, err := s.Joins.ListMembers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Members = members[posts[i].ID]
	}
	return posts, nil
}

func (s *SQLStore) ListPostsJoinedBy(ctx context.Context, userID uint64, order model.ListOrder) ([]model.Post, error) {
	return s.Posts.ListJoinedBy(ctx, userID, order)
}

func (s *SQLStore) ListApplicants(ctx context.Context, postID uint64) ([]model.Applicant, error) {
	return s.Joins.ListApplicants(ctx, postID)
}

func (s *SQLStore) GetPayoutAccount(ctx context.Context, id uint64) (*model.PayoutAccount, error) {
	return s.Accounts.GetByID(ctx, id)
}

// sqlTxAdapter binds the repositories' Tx methods to one *sql.Tx.
type sqlTxAdapter struct {
	tx    *sql.Tx
	posts *PostRepo
	joins *ParticipationRepo
}

func (a *sqlTxAdapter) LockPost(ctx context.Context, postID uint64) (*model.Post, error) {
	return a.posts.LockTx(ctx, a.tx, postID)
}

func (a *sqlTxAdapter) UpdatePostStatus(ctx context.Context, postID uint64, status model.PostStatus) error {
	return a.posts.UpdateStatusTx(ctx, a.tx, postID, status)
}

func (a *sqlTxAdapter) CountActiveParticipations(ctx context.Context, postID uint64) (int, error) {
	return a.joins.CountActiveTx(ctx, a.tx, postID)
}

func (a *sqlTxAdapter) FindActiveParticipation(ctx context.Context, postID, userID uint64) (*model.Participation, error) {
	return a.joins.FindActiveTx(ctx, a.tx, postID, userID)
}

func (a *sqlTxAdapter) GetParticipation(ctx context.Context, id uint64) (*model.Participation, error) {
	return a.joins.GetByIDTx(ctx, a.tx, id)
}

func (a *sqlTxAdapter) CreateParticipation(ctx context.Context, p *model.Participation) error {
	return a.joins.CreateTx(ctx, a.tx, p)
}

func (a *sqlTxAdapter) UpdateParticipationNote(ctx context.Context, id uint64, note string) error {
	return a.joins.UpdateNoteTx(ctx, a.tx, id, note)
}

func (a *sqlTxAdapter) UpdateParticipationStatus(ctx context.Context, id uint64, status model.ParticipationStatus) error {
	return a.joins.UpdateStatusTx(ctx, a.tx, id, status)
}
