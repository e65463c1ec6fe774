package handler_test

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/repository"
	"github.com/iliyamo/supply-share/internal/repository/memory"
)

// fakeComments accepts comments only for parent ids registered in parents.
type fakeComments struct {
	mu      sync.Mutex
	parents map[uint64]bool
	rows    []model.Comment
}

func newFakeComments() *fakeComments {
	return &fakeComments{parents: map[uint64]bool{1: true}}
}

func (f *fakeComments) Create(_ context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.parents[c.ParentID] {
		return repository.ErrParentNotFound
	}
	c.ID = uint64(len(f.rows) + 1)
	c.CreatedAt = time.Now()
	f.rows = append(f.rows, *c)
	return nil
}

func (f *fakeComments) ListByParent(_ context.Context, parentID uint64) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Comment{}
	for _, c := range f.rows {
		if c.ParentID == parentID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeTasks struct {
	mu    sync.Mutex
	tasks map[uint64]*model.Task
}

func newFakeTasks() *fakeTasks { return &fakeTasks{tasks: map[uint64]*model.Task{}} }

func (f *fakeTasks) Create(_ context.Context, t *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = uint64(len(f.tasks) + 1)
	t.Status = model.TaskPending
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeTasks) GetByID(_ context.Context, id uint64) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) ListPending(context.Context) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Task{}
	for _, t := range f.tasks {
		if t.Status == model.TaskPending {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTasks) ListByUser(_ context.Context, userID uint64) ([]model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Task{}
	for _, t := range f.tasks {
		if t.RequesterID == userID || (t.HelperID != nil && *t.HelperID == userID) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTasks) Accept(_ context.Context, taskID, helperID uint64) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	switch {
	case !ok:
		return nil, repository.ErrTaskNotFound
	case t.RequesterID == helperID:
		return nil, repository.ErrSelfAccept
	case t.Status != model.TaskPending:
		return nil, repository.ErrTaskNotPending
	}
	t.HelperID = &helperID
	t.Status = model.TaskAccepted
	cp := *t
	return &cp, nil
}

// fakeAccounts lists accounts through the memory store.
type fakeAccounts struct{ s *memory.Store }

func (f fakeAccounts) Create(ctx context.Context, a *model.PayoutAccount) error {
	return f.s.CreatePayoutAccount(ctx, a)
}

func (f fakeAccounts) ListByUser(ctx context.Context, userID uint64) ([]model.PayoutAccount, error) {
	out := []model.PayoutAccount{}
	for id := uint64(1); ; id++ {
		a, err := f.s.GetPayoutAccount(ctx, id)
		if err != nil {
			return out, nil
		}
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
}
