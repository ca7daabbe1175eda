package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"taskmate/internal/service"
)

// IdentitySource supplies the identity the view-model follows.
// *auth.Manager implements it.
type IdentitySource interface {
	Current() (service.Identity, bool)
	Watch(fn func(id service.Identity, ok bool)) (cancel func())
}

// View is the state handed to listeners after every push or filter change.
type View struct {
	Owner    string
	Filter   Filter
	Priority service.Priority
	Tasks    []service.Task // latest full snapshot
	Visible  []service.Task // Tasks passed through Filter
	Ready    bool           // a snapshot has arrived for Owner
	Err      error          // non-nil once the feed for Owner dropped
}

// binding is the state of one identity's subscription. A new binding is
// installed on every identity change; pushes carry the binding they were
// registered for and are dropped if it is no longer current.
type binding struct {
	owner    string
	sub      service.Subscription
	snapshot []service.Task
	received bool
	ready    chan struct{}
	failed   chan struct{}
	retired  chan struct{} // closed once another binding replaced it
	err      error

	// pending holds the completion value most recently submitted per task.
	// An entry lives until a snapshot confirms it or the first snapshot
	// after all of its writes returned.
	pending map[string]*pendingToggle
}

type pendingToggle struct {
	value    bool
	inflight int
}

func newBinding(owner string) *binding {
	return &binding{
		owner:   owner,
		ready:   make(chan struct{}),
		failed:  make(chan struct{}),
		retired: make(chan struct{}),
		pending: make(map[string]*pendingToggle),
	}
}

func (b *binding) fail(err error) {
	if b.err != nil {
		return
	}
	b.err = err
	close(b.failed)
}

// ViewModel keeps a live, filtered mirror of one user's tasks.
// All state is replaced wholesale by each snapshot; nothing is patched locally.
type ViewModel struct {
	store  service.TaskStore
	logger *slog.Logger
	now    func() time.Time

	// notifyMu orders listener calls so each sees state at least as new as
	// the previous one. Listeners must not call SetFilter or SelectPriority.
	notifyMu sync.Mutex

	mu        sync.Mutex
	b         *binding
	filter    Filter
	priority  service.Priority
	listeners map[int]func(View)
	nextID    int
	closed    bool
}

// Option configures a ViewModel.
type Option func(*ViewModel)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(vm *ViewModel) {
		if l != nil {
			vm.logger = l
		}
	}
}

// WithClock sets the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(vm *ViewModel) { vm.now = now }
}

// NewViewModel creates an unbound view-model over store.
func NewViewModel(store service.TaskStore, opts ...Option) *ViewModel {
	vm := &ViewModel{
		store:     store,
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
		b:         newBinding(""),
		filter:    FilterAll,
		priority:  service.PriorityLow,
		listeners: make(map[int]func(View)),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Follow binds the source's current identity and rebinds on every change.
// The returned func stops following; it does not unbind.
func (vm *ViewModel) Follow(ctx context.Context, src IdentitySource) (stop func()) {
	cancel := src.Watch(func(id service.Identity, ok bool) {
		if err := vm.Bind(ctx, id, ok); err != nil {
			vm.logger.Warn("bind identity", "uid", id.UID, "err", err)
		}
	})
	id, ok := src.Current()
	if err := vm.Bind(ctx, id, ok); err != nil {
		vm.logger.Warn("bind identity", "uid", id.UID, "err", err)
	}
	return cancel
}

// Bind switches the view-model to id, or to no identity when ok is false.
// The previous subscription is stopped and the mirror cleared in the same
// step that installs the new binding; a failed subscribe is returned as a
// *service.SubscriptionError and also reported by Err.
func (vm *ViewModel) Bind(ctx context.Context, id service.Identity, ok bool) error {
	owner := ""
	if ok {
		owner = id.UID
	}

	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return errors.New("view-model closed")
	}
	if vm.b.owner == owner && vm.b.err == nil {
		vm.mu.Unlock()
		return nil
	}
	old := vm.b
	b := newBinding(owner)
	vm.b = b
	close(old.retired)
	vm.mu.Unlock()

	if old.sub != nil {
		old.sub.Unsubscribe()
		vm.logger.Debug("unsubscribe", "owner", old.owner)
	}
	vm.notify()

	if owner == "" {
		return nil
	}

	vm.logger.Debug("subscribe", "owner", owner)
	sub, err := vm.store.Subscribe(ctx, owner, func(tasks []service.Task) {
		vm.apply(b, tasks)
	})
	if err != nil {
		var serr *service.SubscriptionError
		if !errors.As(err, &serr) {
			serr = &service.SubscriptionError{OwnerID: owner, Err: err}
		}
		vm.mu.Lock()
		b.fail(serr)
		vm.mu.Unlock()
		vm.notify()
		return serr
	}

	vm.mu.Lock()
	if vm.b != b {
		vm.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	b.sub = sub
	vm.mu.Unlock()

	go vm.watchFeed(b, sub)
	return nil
}

func (vm *ViewModel) watchFeed(b *binding, sub service.Subscription) {
	<-sub.Done()
	err := sub.Err()
	if err == nil {
		return
	}
	vm.mu.Lock()
	current := vm.b == b
	if current {
		b.fail(err)
	}
	vm.mu.Unlock()
	if current {
		vm.logger.Warn("task feed dropped", "owner", b.owner, "err", err)
		vm.notify()
	}
}

func (vm *ViewModel) apply(b *binding, tasks []service.Task) {
	vm.mu.Lock()
	if vm.b != b || vm.closed {
		vm.mu.Unlock()
		return
	}
	b.snapshot = cloneTasks(tasks)
	for id, p := range b.pending {
		t, found := findTask(b.snapshot, id)
		if !found || p.inflight == 0 || t.Completed == p.value {
			delete(b.pending, id)
		}
	}
	if !b.received {
		b.received = true
		close(b.ready)
	}
	vm.mu.Unlock()

	vm.logger.Debug("snapshot", "owner", b.owner, "count", len(tasks))
	vm.notify()
}

// AddTask submits a new incomplete task. A title that is empty after
// trimming is a no-op: no store call, empty ID, nil error. The mirror is
// not touched; the task appears with the next snapshot.
func (vm *ViewModel) AddTask(ctx context.Context, title string, priority service.Priority) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", nil
	}
	if !priority.Valid() {
		return "", fmt.Errorf("%w: %q", service.ErrInvalidPriority, priority)
	}
	owner, err := vm.boundOwner()
	if err != nil {
		return "", err
	}

	id, err := vm.store.Create(ctx, owner, service.TaskFields{
		Title:     title,
		Priority:  priority,
		Completed: false,
		CreatedAt: vm.now(),
	})
	if err != nil {
		return "", writeError(service.OpCreate, "", err)
	}
	return id, nil
}

// ToggleCompletion submits an update flipping Completed for taskID.
// The flipped value is the last one submitted for the task while that
// write is unconfirmed, else the mirrored value.
func (vm *ViewModel) ToggleCompletion(ctx context.Context, taskID string) error {
	vm.mu.Lock()
	b := vm.b
	if b.owner == "" {
		vm.mu.Unlock()
		return service.ErrNotAuthenticated
	}
	p, pending := b.pending[taskID]
	var current bool
	if pending {
		current = p.value
	} else {
		t, found := findTask(b.snapshot, taskID)
		if !found {
			vm.mu.Unlock()
			return fmt.Errorf("%w: %s", service.ErrTaskNotFound, taskID)
		}
		current = t.Completed
		p = &pendingToggle{}
		b.pending[taskID] = p
	}
	next := !current
	p.value = next
	p.inflight++
	owner := b.owner
	vm.mu.Unlock()

	err := vm.store.Update(ctx, owner, taskID, service.TaskPatch{Completed: &next})

	vm.mu.Lock()
	p.inflight--
	if err != nil && b.pending[taskID] == p && p.value == next {
		delete(b.pending, taskID)
	}
	vm.mu.Unlock()
	if err != nil {
		return writeError(service.OpUpdate, taskID, err)
	}
	return nil
}

// DeleteTask submits a delete. The task disappears with the next snapshot
// that omits it.
func (vm *ViewModel) DeleteTask(ctx context.Context, taskID string) error {
	owner, err := vm.boundOwner()
	if err != nil {
		return err
	}
	if err := vm.store.Delete(ctx, owner, taskID); err != nil {
		return writeError(service.OpDelete, taskID, err)
	}
	return nil
}

// SetFilter changes the visible subset. Stored data is never touched.
func (vm *ViewModel) SetFilter(f Filter) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %s", service.ErrInvalidFilter, f)
	}
	vm.mu.Lock()
	vm.filter = f
	vm.mu.Unlock()
	vm.notify()
	return nil
}

// SelectPriority sets the priority offered for new tasks.
func (vm *ViewModel) SelectPriority(p service.Priority) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %q", service.ErrInvalidPriority, p)
	}
	vm.mu.Lock()
	vm.priority = p
	vm.mu.Unlock()
	return nil
}

// SelectedPriority returns the priority offered for new tasks.
func (vm *ViewModel) SelectedPriority() service.Priority {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.priority
}

// Filter returns the current criterion.
func (vm *ViewModel) Filter() Filter {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.filter
}

// Owner returns the bound UID, or "" when unauthenticated.
func (vm *ViewModel) Owner() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.b.owner
}

// Snapshot returns a copy of the latest full snapshot.
func (vm *ViewModel) Snapshot() []service.Task {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return cloneTasks(vm.b.snapshot)
}

// Visible returns the latest snapshot passed through the current filter.
func (vm *ViewModel) Visible() []service.Task {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return FilteredView(vm.b.snapshot, vm.filter)
}

// View returns the current state.
func (vm *ViewModel) View() View {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.viewLocked()
}

// Err returns the *service.SubscriptionError of the current binding, if
// its feed failed. The mirror is left as it was; there is no reconnect.
func (vm *ViewModel) Err() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.b.err
}

// WaitForSnapshot blocks until the current binding received its first
// snapshot, its feed failed, or ctx is done. If the identity changes while
// waiting, it waits on the new binding, or returns ErrNotAuthenticated
// once signed out.
func (vm *ViewModel) WaitForSnapshot(ctx context.Context) error {
	for {
		vm.mu.Lock()
		b := vm.b
		vm.mu.Unlock()
		if b.owner == "" {
			return service.ErrNotAuthenticated
		}

		failed := false
		select {
		case <-b.ready:
		case <-b.failed:
			failed = true
		case <-b.retired:
		case <-ctx.Done():
			return ctx.Err()
		}

		vm.mu.Lock()
		current := vm.b == b
		err := b.err
		vm.mu.Unlock()
		if !current {
			continue
		}
		if failed {
			return err
		}
		return nil
	}
}

// Watch registers fn to be called with the new View after every snapshot,
// binding or filter change. fn runs outside the view-model lock.
func (vm *ViewModel) Watch(fn func(View)) (cancel func()) {
	vm.mu.Lock()
	id := vm.nextID
	vm.nextID++
	vm.listeners[id] = fn
	vm.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			vm.mu.Lock()
			delete(vm.listeners, id)
			vm.mu.Unlock()
		})
	}
}

// Close stops the subscription and drops all listeners.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return
	}
	vm.closed = true
	old := vm.b
	vm.b = newBinding("")
	close(old.retired)
	vm.listeners = make(map[int]func(View))
	vm.mu.Unlock()

	if old.sub != nil {
		old.sub.Unsubscribe()
		vm.logger.Debug("unsubscribe", "owner", old.owner)
	}
}

func (vm *ViewModel) notify() {
	vm.notifyMu.Lock()
	defer vm.notifyMu.Unlock()

	vm.mu.Lock()
	view := vm.viewLocked()
	fns := make([]func(View), 0, len(vm.listeners))
	for _, fn := range vm.listeners {
		fns = append(fns, fn)
	}
	vm.mu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}

func (vm *ViewModel) viewLocked() View {
	b := vm.b
	return View{
		Owner:    b.owner,
		Filter:   vm.filter,
		Priority: vm.priority,
		Tasks:    cloneTasks(b.snapshot),
		Visible:  FilteredView(b.snapshot, vm.filter),
		Ready:    b.received,
		Err:      b.err,
	}
}

func (vm *ViewModel) boundOwner() (string, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.b.owner == "" {
		return "", service.ErrNotAuthenticated
	}
	return vm.b.owner, nil
}

func writeError(op service.WriteOp, taskID string, err error) error {
	var werr *service.StoreWriteError
	if errors.As(err, &werr) {
		return err
	}
	return &service.StoreWriteError{Op: op, TaskID: taskID, Err: err}
}

func findTask(tasks []service.Task, id string) (service.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return service.Task{}, false
}

func cloneTasks(tasks []service.Task) []service.Task {
	if tasks == nil {
		return nil
	}
	out := make([]service.Task, len(tasks))
	copy(out, tasks)
	return out
}
