package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"taskmate/internal/service"
)

// NotifyChannel is the LISTEN channel; each notification carries the
// owner ID of the changed row.
const NotifyChannel = "task_changes"

// PgStore is a PostgreSQL-backed service.TaskStore. Live pushes come from
// LISTEN/NOTIFY on a trigger over the tasks table.
type PgStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool, logger *slog.Logger) *PgStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PgStore{pool: pool, logger: logger}
}

// EnsureTable creates the tasks table and its change trigger if they
// don't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			title      TEXT NOT NULL,
			priority   TEXT NOT NULL DEFAULT 'Low',
			completed  BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id, created_at, id)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE OR REPLACE FUNCTION notify_task_change() RETURNS trigger AS $$
		BEGIN
			IF TG_OP = 'DELETE' THEN
				PERFORM pg_notify('`+NotifyChannel+`', OLD.owner_id);
				RETURN OLD;
			END IF;
			PERFORM pg_notify('`+NotifyChannel+`', NEW.owner_id);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `DROP TRIGGER IF EXISTS tasks_notify ON tasks`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE TRIGGER tasks_notify AFTER INSERT OR UPDATE OR DELETE ON tasks
		FOR EACH ROW EXECUTE FUNCTION notify_task_change()`)
	return err
}

// Subscribe implements service.TaskStore. A pool connection is held for
// the life of the subscription.
func (s *PgStore) Subscribe(ctx context.Context, ownerID string, fn service.SnapshotFunc) (service.Subscription, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, &service.SubscriptionError{OwnerID: ownerID, Err: fmt.Errorf("acquire connection: %w", err)}
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		return nil, &service.SubscriptionError{OwnerID: ownerID, Err: fmt.Errorf("listen: %w", err)}
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer func() {
			// The connection goes back to the pool; stop listening first.
			uctx, ucancel := context.WithTimeout(context.Background(), time.Second)
			if _, err := conn.Exec(uctx, "UNLISTEN *"); err != nil {
				s.logger.Debug("unlisten", "err", err)
			}
			ucancel()
			conn.Release()
		}()

		push := func() error {
			tasks, err := s.list(ctx, ownerID)
			if err != nil {
				return err
			}
			if ctx.Err() == nil {
				fn(tasks)
			}
			return nil
		}

		if err := push(); err != nil {
			sub.fail(ctx, ownerID, err)
			return
		}
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				sub.fail(ctx, ownerID, err)
				return
			}
			if n.Payload != ownerID {
				continue
			}
			if err := push(); err != nil {
				sub.fail(ctx, ownerID, err)
				return
			}
		}
	}()
	return sub, nil
}

func (s *PgStore) list(ctx context.Context, ownerID string) ([]service.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, priority, completed, created_at
		FROM tasks WHERE owner_id = $1 ORDER BY created_at ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []service.Task{}
	for rows.Next() {
		var t service.Task
		var priority string
		if err := rows.Scan(&t.ID, &t.Title, &priority, &t.Completed, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Priority = service.Priority(priority)
		if !t.Priority.Valid() {
			t.Priority = service.PriorityLow
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}

// Create implements service.TaskStore.
func (s *PgStore) Create(ctx context.Context, ownerID string, fields service.TaskFields) (string, error) {
	id := newID()
	createdAt := fields.CreatedAt.Truncate(time.Microsecond)
	if createdAt.IsZero() {
		createdAt = time.Now().Truncate(time.Microsecond)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (id, owner_id, title, priority, completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, ownerID, fields.Title, string(fields.Priority), fields.Completed, createdAt)
	if err != nil {
		return "", fmt.Errorf("insert: %w", err)
	}
	return id, nil
}

// Update implements service.TaskStore.
func (s *PgStore) Update(ctx context.Context, ownerID, taskID string, patch service.TaskPatch) error {
	if patch.Empty() {
		return nil
	}

	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Priority != nil {
		add("priority", string(*patch.Priority))
	}
	if patch.Completed != nil {
		add("completed", *patch.Completed)
	}
	args = append(args, ownerID, taskID)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE owner_id = $%d AND id = $%d",
		strings.Join(sets, ", "), len(args)-1, len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrTaskNotFound
	}
	return nil
}

// Delete implements service.TaskStore.
func (s *PgStore) Delete(ctx context.Context, ownerID, taskID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE owner_id = $1 AND id = $2`, ownerID, taskID)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// fail records err unless the subscription was cancelled.
func (s *subscription) fail(ctx context.Context, ownerID string, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return
	}
	s.mu.Lock()
	s.err = &service.SubscriptionError{OwnerID: ownerID, Err: err}
	s.mu.Unlock()
}

func (s *subscription) Unsubscribe()          { s.cancel() }
func (s *subscription) Done() <-chan struct{} { return s.done }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
