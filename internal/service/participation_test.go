package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/queue"
	"github.com/iliyamo/supply-share/internal/repository"
	"github.com/iliyamo/supply-share/internal/repository/memory"
	"github.com/iliyamo/supply-share/internal/service"
)

const authorID = 1

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type published struct {
	key   string
	event any
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(_ context.Context, key string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{key, event})
	return nil
}

func (r *recorder) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.key)
	}
	return out
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fixture struct {
	store *memory.Store
	svc   *service.SupplyService
	clock *clock
	rec   *recorder
}

func newFixture(t *testing.T, opts ...service.Option) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), clock: &clock{now: baseTime}, rec: &recorder{}}
	f.store.Now = f.clock.Now
	opts = append([]service.Option{service.WithClock(f.clock.Now), service.WithPublisher(f.rec)}, opts...)
	f.svc = service.NewSupplyService(f.store, opts...)
	return f
}

func (f *fixture) post(t *testing.T, total int64, capacity int, status model.PostStatus) *model.Post {
	t.Helper()
	p := &model.Post{
		AuthorID:      authorID,
		Title:         "rice 10kg",
		TotalAmount:   total,
		Capacity:      capacity,
		ApplyDeadline: baseTime.Add(48 * time.Hour),
		ExecuteTime:   baseTime.Add(72 * time.Hour),
		Status:        status,
	}
	if err := f.store.CreatePost(context.Background(), p); err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

func (f *fixture) status(t *testing.T, postID uint64) model.PostStatus {
	t.Helper()
	p, err := f.store.GetPost(context.Background(), postID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	return p.Status
}

func activeCount(ps []model.Participation) int {
	n := 0
	for _, p := range ps {
		if p.Status.Active() {
			n++
		}
	}
	return n
}

func strp(s string) *string { return &s }

func TestJoinSplitsCostAndFillsPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, 100, 3, model.PostOpen)

	for uid := uint64(10); uid < 13; uid++ {
		got, err := f.svc.Join(ctx, uid, p.ID, nil)
		if err != nil {
			t.Fatalf("join user %d: %v", uid, err)
		}
		if got.UnitAmount != 34 {
			t.Fatalf("unit amount = %d, want 34", got.UnitAmount)
		}
		if got.Status != model.ParticipationPending {
			t.Fatalf("status = %s, want PENDING", got.Status)
		}
	}
	if st := f.status(t, p.ID); st != model.PostFilled {
		t.Fatalf("post status = %s, want FILLED", st)
	}

	_, err := f.svc.Join(ctx, 13, p.ID, nil)
	if !errors.Is(err, service.ErrCapacityReached) {
		t.Fatalf("join on filled post err = %v, want ErrCapacityReached", err)
	}
	if st := f.status(t, p.ID); st != model.PostFilled {
		t.Fatalf("post status after rejected join = %s, want FILLED", st)
	}
	if n := activeCount(f.store.Participations(p.ID)); n != 3 {
		t.Fatalf("active participations = %d, want 3", n)
	}
}

func TestJoinIsIdempotentAndUpdatesNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, 50, 4, model.PostOpen)

	first, err := f.svc.Join(ctx, 20, p.ID, strp("front door"))
	if err != nil {
		t.Fatal(err)
	}
	again, err := f.svc.Join(ctx, 20, p.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID || again.Note != "front door" {
		t.Fatalf("second join = %+v, want same participation with note kept", again)
	}
	updated, err := f.svc.Join(ctx, 20, p.ID, strp("back door"))
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != first.ID || updated.Note != "back door" {
		t.Fatalf("third join = %+v, want note updated in place", updated)
	}
	if updated.UnitAmount != first.UnitAmount {
		t.Fatalf("unit amount changed from %d to %d", first.UnitAmount, updated.UnitAmount)
	}
	if rows := f.store.Participations(p.ID); len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
}

func TestConcurrentJoinsNeverOverfill(t *testing.T) {
	f := newFixture(t)
	const capacity, contenders = 5, 40
	p := f.post(t, 1000, capacity, model.PostOpen)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected int
	)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(uid uint64) {
			defer wg.Done()
			<-start
			_, err := f.svc.Join(context.Background(), uid, p.ID, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, service.ErrCapacityReached):
				rejected++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(uint64(100 + i))
	}
	close(start)
	wg.Wait()

	if admitted != capacity || rejected != contenders-capacity {
		t.Fatalf("admitted=%d rejected=%d, want %d and %d", admitted, rejected, capacity, contenders-capacity)
	}
	if n := activeCount(f.store.Participations(p.ID)); n != capacity {
		t.Fatalf("active participations = %d, want %d", n, capacity)
	}
	if st := f.status(t, p.ID); st != model.PostFilled {
		t.Fatalf("post status = %s, want FILLED", st)
	}
}

func TestConcurrentJoinsBySameUserCreateOneRow(t *testing.T) {
	f := newFixture(t)
	p := f.post(t, 100, 10, model.PostOpen)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Join(context.Background(), 42, p.ID, nil); err != nil {
				t.Errorf("join: %v", err)
			}
		}()
	}
	wg.Wait()
	if rows := f.store.Participations(p.ID); len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
}

func TestJoinAfterDeadlineExpiresPost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, 100, 3, model.PostOpen)

	f.clock.Set(p.ApplyDeadline)
	_, err := f.svc.Join(ctx, 10, p.ID, nil)
	if !errors.Is(err, service.ErrDeadlinePassed) {
		t.Fatalf("err = %v, want ErrDeadlinePassed", err)
	}
	if st := f.status(t, p.ID); st != model.PostExpired {
		t.Fatalf("post status = %s, want EXPIRED", st)
	}
	if rows := f.store.Participations(p.ID); len(rows) != 0 {
		t.Fatalf("rows = %d, want none", len(rows))
	}

	_, err = f.svc.Join(ctx, 11, p.ID, nil)
	if !errors.Is(err, service.ErrRecruitmentClosed) {
		t.Fatalf("second join err = %v, want ErrRecruitmentClosed", err)
	}
	keys := f.rec.keys()
	if len(keys) != 1 || keys[0] != queue.RoutingStatusChanged {
		t.Fatalf("published = %v, want one status change", keys)
	}
}

func TestJoinOnOccupiedOpenPostMarksFilled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, 10, 1, model.PostOpen)

	// add a participant without going through Join so the post stays OPEN
	err := f.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockPost(ctx, p.ID); err != nil {
			return err
		}
		return tx.CreateParticipation(ctx, &model.Participation{PostID: p.ID, UserID: 7, UnitAmount: 10})
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.Join(ctx, 8, p.ID, nil)
	if !errors.Is(err, service.ErrCapacityReached) {
		t.Fatalf("err = %v, want ErrCapacityReached", err)
	}
	if st := f.status(t, p.ID); st != model.PostFilled {
		t.Fatalf("post status = %s, want FILLED", st)
	}
}

func TestJoinRejectsClosedStatuses(t *testing.T) {
	for _, st := range []model.PostStatus{model.PostFilled, model.PostExecuted, model.PostCanceled, model.PostExpired} {
		t.Run(st.String(), func(t *testing.T) {
			f := newFixture(t)
			p := f.post(t, 100, 3, st)
			want := service.ErrRecruitmentClosed
			if st == model.PostFilled {
				want = service.ErrCapacityReached
			}
			_, err := f.svc.Join(context.Background(), 10, p.ID, nil)
			if !errors.Is(err, want) {
				t.Fatalf("err = %v, want %v", err, want)
			}
			if got := f.status(t, p.ID); got != st {
				t.Fatalf("status changed to %s", got)
			}
			if rows := f.store.Participations(p.ID); len(rows) != 0 {
				t.Fatalf("rows = %d, want none", len(rows))
			}
		})
	}
}

func TestJoinRejectsLongNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, 90, 3, model.PostOpen)

	long := strings.Repeat("n", model.MaxNoteLength+1)
	_, err := f.svc.Join(ctx, 20, p.ID, &long)
	var ve *service.ValidationError
	if !errors.As(err, &ve) || ve.Field != "note" || !errors.Is(err, model.ErrNoteTooLong) {
		t.Fatalf("err = %v, want note ValidationError", err)
	}
	if rows := f.store.Participations(p.ID); len(rows) != 0 {
		t.Fatalf("rows = %d, want none", len(rows))
	}

	// the limit applies to the note update of an idempotent re-join too
	if _, err := f.svc.Join(ctx, 20, p.ID, strp("ok")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Join(ctx, 20, p.ID, &long); service.Code(err) != "VALIDATION" {
		t.Fatalf("re-join err = %v, want VALIDATION", err)
	}
	rows := f.store.Participations(p.ID)
	if len(rows) != 1 || rows[0].Note != "ok" {
		t.Fatalf("rows = %+v, want the original note kept", rows)
	}
}

func TestJoinUnknownPost(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Join(context.Background(), 10, 999, nil); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAuthorJoinSetting(t *testing.T) {
	f := newFixture(t)
	p := f.post(t, 100, 3, model.PostOpen)
	if _, err := f.svc.Join(context.Background(), authorID, p.ID, nil); err != nil {
		t.Fatalf("author join with default setting: %v", err)
	}

	f = newFixture(t, service.WithAuthorJoin(false))
	p = f.post(t, 100, 3, model.PostOpen)
	if _, err := f.svc.Join(context.Background(), authorID, p.ID, nil); !errors.Is(err, service.ErrAuthorJoin) {
		t.Fatalf("err = %v, want ErrAuthorJoin", err)
	}
	if _, err := f.svc.Join(context.Background(), authorID+1, p.ID, nil); err != nil {
		t.Fatalf("other user join: %v", err)
	}
}

func TestJoinPublishesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, 30, 1, model.PostOpen)

	if _, err := f.svc.Join(ctx, 10, p.ID, nil); err != nil {
		t.Fatal(err)
	}
	f.rec.mu.Lock()
	defer f.rec.mu.Unlock()
	if len(f.rec.events) != 2 {
		t.Fatalf("events = %d, want 2", len(f.rec.events))
	}
	change, ok := f.rec.events[0].event.(queue.SupplyStatusChangedEvent)
	if !ok || change.From != "OPEN" || change.To != "FILLED" || change.Reason != "capacity" {
		t.Fatalf("first event = %#v, want OPEN -> FILLED", f.rec.events[0].event)
	}
	joined, ok := f.rec.events[1].event.(queue.SupplyJoinedEvent)
	if !ok || !joined.Created || joined.UnitAmount != 30 || joined.EventID == "" {
		t.Fatalf("second event = %#v, want created join", f.rec.events[1].event)
	}
}

func TestLeaveFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, 100, 2, model.PostOpen)

	first, err := f.svc.Join(ctx, 10, p.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Leave(ctx, 10, p.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := f.svc.Leave(ctx, 10, p.ID); !errors.Is(err, service.ErrNotJoined) {
		t.Fatalf("second leave err = %v, want ErrNotJoined", err)
	}

	again, err := f.svc.Join(ctx, 10, p.ID, nil)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if again.ID == first.ID {
		t.Fatal("rejoin reused the canceled participation")
	}
	rows := f.store.Participations(p.ID)
	if len(rows) != 2 || rows[0].Status != model.ParticipationCanceled {
		t.Fatalf("rows = %+v, want canceled history plus new row", rows)
	}
}

func TestLeaveAfterRecruitmentClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, 100, 1, model.PostOpen)
	if _, err := f.svc.Join(ctx, 10, p.ID, nil); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Leave(ctx, 10, p.ID); !errors.Is(err, service.ErrRecruitmentClosed) {
		t.Fatalf("err = %v, want ErrRecruitmentClosed", err)
	}
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, 100, 3, model.PostOpen)
	joined, err := f.svc.Join(ctx, 10, p.ID, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Confirm(ctx, 10, p.ID, joined.ID); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("non-author confirm err = %v, want ErrForbidden", err)
	}
	got, err := f.svc.Confirm(ctx, authorID, p.ID, joined.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != model.ParticipationConfirmed || got.UnitAmount != joined.UnitAmount {
		t.Fatalf("confirmed = %+v", got)
	}
	if _, err := f.svc.Confirm(ctx, authorID, p.ID, joined.ID); !errors.Is(err, service.ErrInvalidTransition) {
		t.Fatalf("second confirm err = %v, want ErrInvalidTransition", err)
	}

	other := f.post(t, 100, 3, model.PostOpen)
	if _, err := f.svc.Confirm(ctx, authorID, other.ID, joined.ID); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("confirm under wrong post err = %v, want ErrNotFound", err)
	}
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.post(t, 100, 3, model.PostOpen)

	if _, err := f.svc.Execute(ctx, 99, p.ID); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("non-author execute err = %v, want ErrForbidden", err)
	}
	got, err := f.svc.Execute(ctx, authorID, p.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.Status != model.PostExecuted {
		t.Fatalf("status = %s, want EXECUTED", got.Status)
	}
	if _, err := f.svc.CancelPost(ctx, authorID, p.ID); !errors.Is(err, service.ErrInvalidTransition) {
		t.Fatalf("cancel executed post err = %v, want ErrInvalidTransition", err)
	}

	filled := f.post(t, 100, 3, model.PostFilled)
	if _, err := f.svc.CancelPost(ctx, authorID, filled.ID); err != nil {
		t.Fatalf("cancel filled post: %v", err)
	}
	if st := f.status(t, filled.ID); st != model.PostCanceled {
		t.Fatalf("status = %s, want CANCELED", st)
	}
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := &model.PayoutAccount{UserID: authorID, BankName: "Hana", AccountNumber: "123-456", HolderName: "Kim"}
	if err := f.store.CreatePayoutAccount(ctx, acct); err != nil {
		t.Fatal(err)
	}
	p := f.post(t, 100, 3, model.PostOpen)
	withAcct := &model.Post{
		AuthorID: authorID, Title: "oil", TotalAmount: 10, Capacity: 4,
		ApplyDeadline: p.ApplyDeadline, ExecuteTime: p.ExecuteTime, PayoutAccountID: &acct.ID,
	}
	if err := f.store.CreatePost(ctx, withAcct); err != nil {
		t.Fatal(err)
	}

	q, err := f.svc.Quote(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if q.UnitAmountPreview != 34 || q.PayoutAccount != nil {
		t.Fatalf("quote = %+v", q)
	}
	q, err = f.svc.Quote(ctx, withAcct.ID)
	if err != nil {
		t.Fatal(err)
	}
	if q.UnitAmountPreview != 3 || q.PayoutAccount == nil || q.PayoutAccount.BankName != "Hana" {
		t.Fatalf("quote = %+v", q)
	}
	if _, err := f.svc.Quote(ctx, 999); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApplicants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.AddUser(model.User{ID: 10, Name: "alice"})
	f.store.AddUser(model.User{ID: 11, Name: "bob"})
	p := f.post(t, 100, 3, model.PostOpen)

	if _, err := f.svc.Join(ctx, 10, p.ID, nil); err != nil {
		t.Fatal(err)
	}
	f.clock.Set(baseTime.Add(time.Minute))
	if _, err := f.svc.Join(ctx, 11, p.ID, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Applicants(ctx, 10, p.ID); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	got, err := f.svc.Applicants(ctx, authorID, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].DisplayName != "bob" || got[1].DisplayName != "alice" {
		t.Fatalf("applicants = %+v, want bob then alice", got)
	}
	if _, err := f.svc.Applicants(ctx, authorID, 999); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCode(t *testing.T) {
	tests := map[error]string{
		service.ErrDeadlinePassed:    "DEADLINE_PASSED",
		service.ErrCapacityReached:   "CAPACITY_REACHED",
		service.ErrRecruitmentClosed: "RECRUITMENT_CLOSED",
		errors.New("boom"):           "",
	}
	for err, want := range tests {
		if got := service.Code(err); got != want {
			t.Fatalf("Code(%v) = %q, want %q", err, got, want)
		}
	}
}
