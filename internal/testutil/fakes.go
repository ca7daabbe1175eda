// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"taskmate/internal/backend/memory"
	"taskmate/internal/service"
)

// FakeStore wraps a memory.Store with call counters and error injection.
type FakeStore struct {
	*memory.Store

	mu sync.Mutex

	// Error injection for testing
	SubscribeErr error
	CreateErr    error
	UpdateErr    error
	DeleteErr    error

	calls map[string]int
}

// NewFakeStore creates an empty FakeStore with IDs "t1", "t2", ...
func NewFakeStore() *FakeStore {
	f := &FakeStore{Store: memory.NewStore(), calls: make(map[string]int)}
	n := 0
	f.SetIDFunc(func() string {
		n++
		return "t" + strconv.Itoa(n)
	})
	return f
}

// Calls returns how many times op ("subscribe", "create", "update",
// "delete") was called.
func (f *FakeStore) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeStore) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

// Subscribe implements service.TaskStore.
func (f *FakeStore) Subscribe(ctx context.Context, ownerID string, fn service.SnapshotFunc) (service.Subscription, error) {
	f.record("subscribe")
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}
	return f.Store.Subscribe(ctx, ownerID, fn)
}

// Create implements service.TaskStore.
func (f *FakeStore) Create(ctx context.Context, ownerID string, fields service.TaskFields) (string, error) {
	f.record("create")
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	return f.Store.Create(ctx, ownerID, fields)
}

// Update implements service.TaskStore.
func (f *FakeStore) Update(ctx context.Context, ownerID, taskID string, patch service.TaskPatch) error {
	f.record("update")
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	return f.Store.Update(ctx, ownerID, taskID, patch)
}

// Delete implements service.TaskStore.
func (f *FakeStore) Delete(ctx context.Context, ownerID, taskID string) error {
	f.record("delete")
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	return f.Store.Delete(ctx, ownerID, taskID)
}

// Fake is a memory backend whose parts are reachable by tests.
type Fake struct {
	Sessions *memory.Sessions
	Store    *FakeStore
}

// NewFake creates a Fake with cheap password hashing.
func NewFake() *Fake {
	sessions := memory.NewSessions()
	sessions.SetCost(bcrypt.MinCost)
	return &Fake{Sessions: sessions, Store: NewFakeStore()}
}

// Backend returns the fake as a service.Backend.
func (f *Fake) Backend() *service.Backend {
	return &service.Backend{Name: "fake", Sessions: f.Sessions, Tasks: f.Store}
}

// SignUp creates an account and leaves it signed in, returning its identity.
func (f *Fake) SignUp(email, password string) service.Identity {
	id, err := f.Sessions.CreateAccount(context.Background(), email, password)
	if err != nil {
		panic(err)
	}
	return id
}
