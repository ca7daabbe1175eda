package firebase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"taskmate/internal/service"
)

// taskDoc is a task document under users/{uid}/tasks.
type taskDoc struct {
	Title     string    `firestore:"title"`
	Priority  string    `firestore:"priority"`
	Completed bool      `firestore:"completed"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func (d taskDoc) task(id string) service.Task {
	p := service.Priority(d.Priority)
	if !p.Valid() {
		p = service.PriorityLow
	}
	return service.Task{
		ID:        id,
		Title:     d.Title,
		Priority:  p,
		Completed: d.Completed,
		CreatedAt: d.CreatedAt,
	}
}

func docFromFields(f service.TaskFields) taskDoc {
	return taskDoc{
		Title:     f.Title,
		Priority:  string(f.Priority),
		Completed: f.Completed,
		CreatedAt: f.CreatedAt,
	}
}

// patchUpdates converts a patch into Firestore field updates.
func patchUpdates(p service.TaskPatch) []firestore.Update {
	var ups []firestore.Update
	if p.Title != nil {
		ups = append(ups, firestore.Update{Path: "title", Value: *p.Title})
	}
	if p.Priority != nil {
		ups = append(ups, firestore.Update{Path: "priority", Value: string(*p.Priority)})
	}
	if p.Completed != nil {
		ups = append(ups, firestore.Update{Path: "completed", Value: *p.Completed})
	}
	return ups
}

// Store implements service.TaskStore over Cloud Firestore.
type Store struct {
	client *firestore.Client
	logger *slog.Logger
}

// NewStore wraps a Firestore client.
func NewStore(client *firestore.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{client: client, logger: logger}
}

func (s *Store) tasks(ownerID string) *firestore.CollectionRef {
	return s.client.Collection("users").Doc(ownerID).Collection("tasks")
}

// Subscribe implements service.TaskStore with a query snapshot listener.
func (s *Store) Subscribe(ctx context.Context, ownerID string, fn service.SnapshotFunc) (service.Subscription, error) {
	if ownerID == "" {
		return nil, &service.SubscriptionError{OwnerID: ownerID, Err: service.ErrNotAuthenticated}
	}
	ctx, cancel := context.WithCancel(ctx)
	q := s.tasks(ownerID).
		OrderBy("createdAt", firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc)

	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	go sub.run(ctx, ownerID, q.Snapshots(ctx), fn, s.logger)
	return sub, nil
}

// Create implements service.TaskStore.
func (s *Store) Create(ctx context.Context, ownerID string, fields service.TaskFields) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	ref, _, err := s.tasks(ownerID).Add(ctx, docFromFields(fields))
	if err != nil {
		return "", wrapError(err)
	}
	return ref.ID, nil
}

// Update implements service.TaskStore.
func (s *Store) Update(ctx context.Context, ownerID, taskID string, patch service.TaskPatch) error {
	ups := patchUpdates(patch)
	if len(ups) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if _, err := s.tasks(ownerID).Doc(taskID).Update(ctx, ups); err != nil {
		return wrapError(err)
	}
	return nil
}

// Delete implements service.TaskStore. Firestore deletes of missing
// documents succeed.
func (s *Store) Delete(ctx context.Context, ownerID, taskID string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if _, err := s.tasks(ownerID).Doc(taskID).Delete(ctx); err != nil {
		return wrapError(err)
	}
	return nil
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// run owns the iterator: Stop must not race Next, so Unsubscribe only
// cancels ctx and run stops the iterator on its way out.
func (s *subscription) run(ctx context.Context, ownerID string, it *firestore.QuerySnapshotIterator, fn service.SnapshotFunc, logger *slog.Logger) {
	defer close(s.done)
	defer it.Stop()

	for {
		qs, err := it.Next()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, iterator.Done) && status.Code(err) != codes.Canceled {
				s.setErr(&service.SubscriptionError{OwnerID: ownerID, Err: wrapError(err)})
			}
			return
		}

		docs, err := qs.Documents.GetAll()
		if err != nil {
			s.setErr(&service.SubscriptionError{OwnerID: ownerID, Err: wrapError(err)})
			return
		}
		tasks := make([]service.Task, 0, len(docs))
		for _, d := range docs {
			var td taskDoc
			if err := d.DataTo(&td); err != nil {
				logger.Warn("skipping malformed task", "id", d.Ref.ID, "err", err)
				continue
			}
			tasks = append(tasks, td.task(d.Ref.ID))
		}
		if ctx.Err() != nil {
			return
		}
		fn(tasks)
	}
}

func (s *subscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *subscription) Unsubscribe()          { s.cancel() }
func (s *subscription) Done() <-chan struct{} { return s.done }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
