package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type controllerKey struct {
	studentID int
	examID    uuid.UUID
}

// Manager is the registry of live controllers, one per (student, exam) pair.
// Reconnecting clients attach to the existing controller instead of creating
// a second session.
type Manager struct {
	source       QuestionSource
	store        SubmissionStore
	log          zerolog.Logger
	tickInterval time.Duration

	mu          sync.Mutex
	controllers map[controllerKey]*Controller
}

// NewManager creates an empty controller registry.
func NewManager(source QuestionSource, store SubmissionStore, tickInterval time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		source:       source,
		store:        store,
		log:          log,
		tickInterval: tickInterval,
		controllers:  make(map[controllerKey]*Controller),
	}
}

// GetOrStart returns the live controller for the pair, creating and starting
// one if absent. Start is idempotent per controller, so concurrent callers
// share a single load. A controller whose setup failed terminally is removed
// from the registry so the error is not cached forever.
func (m *Manager) GetOrStart(ctx context.Context, studentID int, examID uuid.UUID, endsAt time.Time) (*Controller, error) {
	key := controllerKey{studentID: studentID, examID: examID}

	m.mu.Lock()
	ctrl, ok := m.controllers[key]
	if !ok {
		ctrl = NewController(studentID, examID, endsAt, m.tickInterval, m.source, m.store, m.log, nil)
		ctrl.onComplete = func() { m.Release(studentID, examID) }
		m.controllers[key] = ctrl
	}
	m.mu.Unlock()

	if err := ctrl.Start(ctx); err != nil {
		m.mu.Lock()
		if m.controllers[key] == ctrl {
			delete(m.controllers, key)
		}
		m.mu.Unlock()
		return nil, err
	}
	return ctrl, nil
}

// Get returns the live controller for the pair, if any.
func (m *Manager) Get(studentID int, examID uuid.UUID) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctrl, ok := m.controllers[controllerKey{studentID: studentID, examID: examID}]
	return ctrl, ok
}

// Release drops a controller from the registry. Controllers release
// themselves once their submission commits, so the registry only ever holds
// sessions that can still change.
func (m *Manager) Release(studentID int, examID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.controllers, controllerKey{studentID: studentID, examID: examID})
}

// Len returns the number of live controllers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.controllers)
}
