// Package memory is an in-process implementation of the supply store.  It
// mirrors the MySQL locking model: LockPost takes a per-post mutex held
// until the transaction ends, and writes become visible only on commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/repository"
)

// Store holds posts, participations and the user and account rows they
// reference.  The zero value is not usable; call New.
type Store struct {
	mu        sync.Mutex
	postLocks map[uint64]*sync.Mutex
	posts     map[uint64]model.Post
	joins     map[uint64]model.Participation
	users     map[uint64]model.User
	accounts  map[uint64]model.PayoutAccount
	comments  map[uint64]int
	nextPost  uint64
	nextJoin  uint64
	nextAcct  uint64

	// Now stamps created rows.  Defaults to time.Now in UTC.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		postLocks: make(map[uint64]*sync.Mutex),
		posts:     make(map[uint64]model.Post),
		joins:     make(map[uint64]model.Participation),
		users:     make(map[uint64]model.User),
		accounts:  make(map[uint64]model.PayoutAccount),
		comments:  make(map[uint64]int),
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddUser registers a user so listings can show names and phone numbers.
func (s *Store) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddComment bumps the comment count used by comment ordering.
func (s *Store) AddComment(postID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[postID]++
}

// CreatePayoutAccount stores a payout account and assigns its id.
func (s *Store) CreatePayoutAccount(ctx context.Context, a *model.PayoutAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAcct++
	a.ID = s.nextAcct
	a.CreatedAt = s.Now()
	s.accounts[a.ID] = *a
	return nil
}

func (s *Store) GetPayoutAccount(ctx context.Context, id uint64) (*model.PayoutAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return &a, nil
}

func (s *Store) CreatePost(ctx context.Context, p *model.Post) error {
	if p.Status == "" {
		p.Status = model.PostOpen
	}
	if !p.Status.Valid() {
		return fmt.Errorf("invalid post status %q", p.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPost++
	p.ID = s.nextPost
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.Now()
	}
	s.posts[p.ID] = *p
	s.postLocks[p.ID] = &sync.Mutex{}
	return nil
}

func (s *Store) GetPost(ctx context.Context, id uint64) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	return &p, nil
}

// Participations returns every participation of the post, canceled ones
// included, in id order.
func (s *Store) Participations(postID uint64) []model.Participation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Participation
	for _, j := range s.joins {
		if j.PostID == postID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func newestFirst(a, b model.Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (s *Store) ListPosts(ctx context.Context, f model.PostFilter) ([]model.Post, error) {
	s.mu.Lock()
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := []model.Post{}
	for _, p := range s.posts {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Content), q) {
			continue
		}
		out = append(out, p)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return newestFirst(out[i], out[j]) })
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := max(f.Offset, 0)
	if offset >= len(out) {
		return []model.Post{}, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

// sortPosts applies a ListOrder.  comments holds the comment count per
// post id.
func sortPosts(posts []model.Post, order model.ListOrder, comments map[uint64]int) {
	sort.Slice(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		switch order {
		case model.OrderOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		case model.OrderComments:
			if comments[a.ID] != comments[b.ID] {
				return comments[a.ID] > comments[b.ID]
			}
		case model.OrderEndDate:
			if !a.ApplyDeadline.Equal(b.ApplyDeadline) {
				return a.ApplyDeadline.Before(b.ApplyDeadline)
			}
			return a.ID < b.ID
		}
		return newestFirst(a, b)
	})
}

func (s *Store) ListPostsByAuthor(ctx context.Context, authorID uint64, order model.ListOrder) ([]model.PostSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var posts []model.Post
	for _, p := range s.posts {
		if p.AuthorID == authorID {
			posts = append(posts, p)
		}
	}
	sortPosts(posts, order, s.comments)

	out := make([]model.PostSummary, 0, len(posts))
	for _, p := range posts {
		members := s.membersLocked(p.ID)
		out = append(out, model.PostSummary{
			Post:            p,
			JoinMemberCount: len(members),
			CommentCount:    s.comments[p.ID],
			Members:         members,
		})
	}
	return out, nil
}

func (s *Store) membersLocked(postID uint64) []model.Member {
	var active []model.Participation
	for _, j := range s.joins {
		if j.PostID == postID && j.Status.Active() {
			active = append(active, j)
		}
	}
	sort.Slice(active, func(a, b int) bool {
		if !active[a].JoinedAt.Equal(active[b].JoinedAt) {
			return active[a].JoinedAt.Before(active[b].JoinedAt)
		}
		return active[a].ID < active[b].ID
	})
	var out []model.Member
	for _, j := range active {
		u := s.users[j.UserID]
		out = append(out, model.Member{
			ParticipationID: j.ID,
			UserID:          j.UserID,
			Name:            u.Name,
			PhoneNumber:     u.PhoneNumber,
			Note:            j.Note,
		})
	}
	return out
}

func (s *Store) ListPostsJoinedBy(ctx context.Context, userID uint64, order model.ListOrder) ([]model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Post{}
	for _, j := range s.joins {
		if j.UserID == userID && j.Status.Active() {
			if p, ok := s.posts[j.PostID]; ok {
				out = append(out, p)
			}
		}
	}
	sortPosts(out, order, s.comments)
	return out, nil
}

func (s *Store) ListApplicants(ctx context.Context, postID uint64) ([]model.Applicant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Applicant{}
	for _, j := range s.joins {
		if j.PostID != postID || !j.Status.Active() {
			continue
		}
		out = append(out, model.Applicant{
			ParticipationID: j.ID,
			UserID:          j.UserID,
			DisplayName:     s.users[j.UserID].Name,
			UnitAmount:      j.UnitAmount,
			Status:          j.Status,
			JoinedAt:        j.JoinedAt,
		})
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].JoinedAt.Equal(out[b].JoinedAt) {
			return out[a].JoinedAt.After(out[b].JoinedAt)
		}
		return out[a].ParticipationID > out[b].ParticipationID
	})
	return out, nil
}

// InTx runs fn as one unit of work.  Writes are staged and applied only when
// fn returns nil; post locks taken by fn are released afterwards either way.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	t := &tx{
		s:      s,
		locked: make(map[uint64]*sync.Mutex),
		posts:  make(map[uint64]model.Post),
		joins:  make(map[uint64]model.Participation),
	}
	defer t.release()
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

var errNotLocked = errors.New("memory: post not locked in this transaction")

type tx struct {
	s      *Store
	locked map[uint64]*sync.Mutex
	posts  map[uint64]model.Post
	joins  map[uint64]model.Participation
}

func (t *tx) release() {
	for _, m := range t.locked {
		m.Unlock()
	}
	t.locked = nil
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, p := range t.posts {
		t.s.posts[id] = p
	}
	for id, j := range t.joins {
		t.s.joins[id] = j
	}
}

func (t *tx) LockPost(ctx context.Context, postID uint64) (*model.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := t.locked[postID]; !ok {
		t.s.mu.Lock()
		m, ok := t.s.postLocks[postID]
		t.s.mu.Unlock()
		if !ok {
			return nil, repository.ErrPostNotFound
		}
		m.Lock()
		t.locked[postID] = m
	}
	return t.post(postID)
}

func (t *tx) post(postID uint64) (*model.Post, error) {
	if p, ok := t.posts[postID]; ok {
		return &p, nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p, ok := t.s.posts[postID]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	return &p, nil
}

func (t *tx) UpdatePostStatus(ctx context.Context, postID uint64, status model.PostStatus) error {
	if _, ok := t.locked[postID]; !ok {
		return errNotLocked
	}
	if !status.Valid() {
		return fmt.Errorf("invalid post status %q", status)
	}
	p, err := t.post(postID)
	if err != nil {
		return err
	}
	p.Status = status
	t.posts[postID] = *p
	return nil
}

// participations merges committed rows of the post with staged ones.
func (t *tx) participations(postID uint64) []model.Participation {
	t.s.mu.Lock()
	var out []model.Participation
	for id, j := range t.s.joins {
		if _, staged := t.joins[id]; !staged && j.PostID == postID {
			out = append(out, j)
		}
	}
	t.s.mu.Unlock()
	for _, j := range t.joins {
		if j.PostID == postID {
			out = append(out, j)
		}
	}
	return out
}

func (t *tx) CountActiveParticipations(ctx context.Context, postID uint64) (int, error) {
	n := 0
	for _, j := range t.participations(postID) {
		if j.Status.Active() {
			n++
		}
	}
	return n, nil
}

func (t *tx) FindActiveParticipation(ctx context.Context, postID, userID uint64) (*model.Participation, error) {
	for _, j := range t.participations(postID) {
		if j.UserID == userID && j.Status != model.ParticipationCanceled {
			return &j, nil
		}
	}
	return nil, repository.ErrParticipationNotFound
}

func (t *tx) GetParticipation(ctx context.Context, id uint64) (*model.Participation, error) {
	if j, ok := t.joins[id]; ok {
		return &j, nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	j, ok := t.s.joins[id]
	if !ok {
		return nil, repository.ErrParticipationNotFound
	}
	return &j, nil
}

func (t *tx) CreateParticipation(ctx context.Context, p *model.Participation) error {
	if _, ok := t.locked[p.PostID]; !ok {
		return errNotLocked
	}
	if _, err := t.FindActiveParticipation(ctx, p.PostID, p.UserID); err == nil {
		return repository.ErrDuplicateParticipation
	}
	if p.Status == "" {
		p.Status = model.ParticipationPending
	}
	t.s.mu.Lock()
	t.s.nextJoin++
	p.ID = t.s.nextJoin
	t.s.mu.Unlock()
	p.JoinedAt = t.s.Now()
	t.joins[p.ID] = *p
	return nil
}

func (t *tx) updateJoin(id uint64, fn func(j *model.Participation)) error {
	j, err := t.GetParticipation(context.Background(), id)
	if err != nil {
		return err
	}
	if _, ok := t.locked[j.PostID]; !ok {
		return errNotLocked
	}
	fn(j)
	t.joins[id] = *j
	return nil
}

func (t *tx) UpdateParticipationNote(ctx context.Context, id uint64, note string) error {
	return t.updateJoin(id, func(j *model.Participation) { j.Note = note })
}

func (t *tx) UpdateParticipationStatus(ctx context.Context, id uint64, status model.ParticipationStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid participation status %q", status)
	}
	return t.updateJoin(id, func(j *model.Participation) { j.Status = status })
}
