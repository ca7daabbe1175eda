// Package memory implements the service capabilities in process memory.
// Snapshots are pushed synchronously from the goroutine that made the change.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"taskmate/internal/service"
)

// Store is an in-memory service.TaskStore.
type Store struct {
	mu     sync.Mutex
	tasks  map[string][]service.Task // ownerID -> tasks
	subs   map[string]map[*subscription]struct{}
	nextID func() string
}

// NewStore creates an empty store with UUIDv7 task IDs.
func NewStore() *Store {
	return &Store{
		tasks:  make(map[string][]service.Task),
		subs:   make(map[string]map[*subscription]struct{}),
		nextID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// SetIDFunc replaces the ID generator (for deterministic tests).
func (s *Store) SetIDFunc(fn func() string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = fn
}

// Seed adds a task with an explicit ID without notifying subscribers.
func (s *Store) Seed(ownerID string, t service.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[ownerID] = append(s.tasks[ownerID], t)
	sortTasks(s.tasks[ownerID])
}

// Tasks returns a copy of the owner's collection.
func (s *Store) Tasks(ownerID string) []service.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTasks(s.tasks[ownerID])
}

// Subscribers returns the number of live subscriptions for an owner.
func (s *Store) Subscribers(ownerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[ownerID])
}

// Subscribe implements service.TaskStore. The current collection is
// pushed before Subscribe returns.
func (s *Store) Subscribe(ctx context.Context, ownerID string, fn service.SnapshotFunc) (service.Subscription, error) {
	sub := &subscription{
		store: s,
		owner: ownerID,
		fn:    fn,
		done:  make(chan struct{}),
	}

	s.mu.Lock()
	if s.subs[ownerID] == nil {
		s.subs[ownerID] = make(map[*subscription]struct{})
	}
	s.subs[ownerID][sub] = struct{}{}
	s.mu.Unlock()

	sub.deliver()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Unsubscribe()
			case <-sub.done:
			}
		}()
	}
	return sub, nil
}

// Create implements service.TaskStore.
func (s *Store) Create(ctx context.Context, ownerID string, fields service.TaskFields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	id := s.nextID()
	s.tasks[ownerID] = append(s.tasks[ownerID], service.Task{
		ID:        id,
		Title:     fields.Title,
		Priority:  fields.Priority,
		Completed: fields.Completed,
		CreatedAt: fields.CreatedAt,
	})
	sortTasks(s.tasks[ownerID])
	s.mu.Unlock()

	s.publish(ownerID)
	return id, nil
}

// Update implements service.TaskStore.
func (s *Store) Update(ctx context.Context, ownerID, taskID string, patch service.TaskPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	tasks := s.tasks[ownerID]
	idx := -1
	for i, t := range tasks {
		if t.ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return service.ErrTaskNotFound
	}
	if patch.Title != nil {
		tasks[idx].Title = *patch.Title
	}
	if patch.Priority != nil {
		tasks[idx].Priority = *patch.Priority
	}
	if patch.Completed != nil {
		tasks[idx].Completed = *patch.Completed
	}
	s.mu.Unlock()

	s.publish(ownerID)
	return nil
}

// Delete implements service.TaskStore.
func (s *Store) Delete(ctx context.Context, ownerID, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	tasks := s.tasks[ownerID]
	for i, t := range tasks {
		if t.ID == taskID {
			s.tasks[ownerID] = append(tasks[:i:i], tasks[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	// Pushed even when nothing was removed, as a realtime store would.
	s.publish(ownerID)
	return nil
}

// Drop ends every subscription of an owner with err, as if the feed broke.
func (s *Store) Drop(ownerID string, err error) {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs[ownerID]))
	for sub := range s.subs[ownerID] {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.stop(&service.SubscriptionError{OwnerID: ownerID, Err: err})
	}
}

func (s *Store) publish(ownerID string) {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs[ownerID]))
	for sub := range s.subs[ownerID] {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.deliver()
	}
}

func (s *Store) remove(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[sub.owner], sub)
	if len(s.subs[sub.owner]) == 0 {
		delete(s.subs, sub.owner)
	}
}

type subscription struct {
	store *Store
	owner string
	fn    service.SnapshotFunc

	// deliverMu serializes pushes; each push reads the collection while
	// holding it, so a subscriber never sees an older state after a newer one.
	deliverMu sync.Mutex
	mu        sync.Mutex
	stopped   bool
	err       error
	done      chan struct{}
}

func (s *subscription) deliver() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}
	s.fn(s.store.Tasks(s.owner))
}

func (s *subscription) stop(err error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.err = err
	close(s.done)
	s.mu.Unlock()
	s.store.remove(s)
}

func (s *subscription) Unsubscribe()          { s.stop(nil) }
func (s *subscription) Done() <-chan struct{} { return s.done }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func sortTasks(tasks []service.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

func copyTasks(tasks []service.Task) []service.Task {
	out := make([]service.Task, len(tasks))
	copy(out, tasks)
	return out
}
