// Package editor holds the server side of the block editor's lifecycle: an
// instance is acquired when the editor page opens, becomes ready once the
// browser reports the editor initialised, and is released on leave or when
// it sits idle for too long.
package editor

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/blocks"
	dErrors "inkwell/pkg/domain-errors"
)

type State int

const (
	Loading State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "loading"
}

var (
	ErrNotFound = errors.New("editor instance not found")
	ErrNotReady = errors.New("editor instance not ready")
)

// Instance is a snapshot of one open editor.
type Instance struct {
	ID        string
	OwnerID   int
	ContentID int
	State     State
	Document  blocks.Document
	CreatedAt time.Time
	TouchedAt time.Time
}

// Observer receives instance counts and save outcomes.
type Observer interface {
	SetEditorInstances(n int)
	IncrementEditorSave(outcome string)
	AddEditorSwept(n int)
}

type noopObserver struct{}

func (noopObserver) SetEditorInstances(int)     {}
func (noopObserver) IncrementEditorSave(string) {}
func (noopObserver) AddEditorSwept(int)         {}

// Manager owns every open editor instance. Instances are only reachable by
// the user who acquired them.
type Manager struct {
	mu        sync.Mutex
	instances map[string]*Instance
	now       func() time.Time
	observer  Observer
	logger    *slog.Logger
}

type Option func(*Manager)

func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		instances: make(map[string]*Instance),
		now:       time.Now,
		observer:  noopObserver{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire opens a new instance in the Loading state. contentID is zero for a
// new post.
func (m *Manager) Acquire(ownerID, contentID int, initial blocks.Document) Instance {
	now := m.now()
	inst := &Instance{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		ContentID: contentID,
		State:     Loading,
		Document:  blocks.Normalize(initial),
		CreatedAt: now,
		TouchedAt: now,
	}

	m.mu.Lock()
	m.instances[inst.ID] = inst
	n := len(m.instances)
	m.mu.Unlock()

	m.observer.SetEditorInstances(n)
	return *inst
}

// lookup returns the instance and refreshes its idle timer. Callers hold mu.
func (m *Manager) lookup(id string, ownerID int) (*Instance, error) {
	inst, ok := m.instances[id]
	if !ok || inst.OwnerID != ownerID {
		return nil, &dErrors.Error{
			Code:    dErrors.CodeNotFound,
			Message: "This editor session has expired. Please reopen the editor.",
			Err:     ErrNotFound,
		}
	}
	inst.TouchedAt = m.now()
	return inst, nil
}

func (m *Manager) Get(id string, ownerID int) (Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, err := m.lookup(id, ownerID)
	if err != nil {
		return Instance{}, err
	}
	return *inst, nil
}

// MarkReady records that the browser finished initialising the editor.
// Repeated calls are harmless.
func (m *Manager) MarkReady(id string, ownerID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, err := m.lookup(id, ownerID)
	if err != nil {
		return err
	}
	inst.State = Ready
	return nil
}

// Save accepts the editor's output and returns its serialized form. It is
// refused while the instance is still loading.
func (m *Manager) Save(id string, ownerID int, doc blocks.Document) (string, error) {
	m.mu.Lock()
	inst, err := m.lookup(id, ownerID)
	if err != nil {
		m.mu.Unlock()
		m.observer.IncrementEditorSave("not_found")
		return "", err
	}
	if inst.State != Ready {
		m.mu.Unlock()
		m.observer.IncrementEditorSave("not_ready")
		return "", &dErrors.Error{
			Code:    dErrors.CodeValidation,
			Message: "The editor is still loading. Please wait a moment and try again.",
			Err:     ErrNotReady,
		}
	}
	doc = blocks.Normalize(doc)
	data, err := blocks.Serialize(doc)
	if err != nil {
		m.mu.Unlock()
		m.observer.IncrementEditorSave("invalid")
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "The post content could not be saved.")
	}
	inst.Document = doc
	m.mu.Unlock()

	m.observer.IncrementEditorSave("ok")
	return data, nil
}

// Release destroys the instance. Unknown ids are ignored.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	delete(m.instances, id)
	n := len(m.instances)
	m.mu.Unlock()
	m.observer.SetEditorInstances(n)
}

// SweepIdle releases every instance last touched before cutoff and returns
// how many were removed.
func (m *Manager) SweepIdle(cutoff time.Time) int {
	m.mu.Lock()
	removed := 0
	for id, inst := range m.instances {
		if inst.TouchedAt.Before(cutoff) {
			delete(m.instances, id)
			removed++
		}
	}
	n := len(m.instances)
	m.mu.Unlock()

	if removed > 0 {
		m.observer.AddEditorSwept(removed)
	}
	m.observer.SetEditorInstances(n)
	return removed
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

// Now exposes the manager's clock to the janitor.
func (m *Manager) Now() time.Time {
	return m.now()
}
