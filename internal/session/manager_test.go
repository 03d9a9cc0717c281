package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akademix/examroom-backend/internal/model"
	"github.com/akademix/examroom-backend/internal/session"
)

func TestManagerReusesLiveController(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store := &fakeStore{clock: clock}
	source := &fakeSource{questions: []model.Question{question(1, "A")}}
	m := session.NewManager(source, store, time.Second, zerolog.Nop())

	examID := uuid.New()
	endsAt := time.Now().Add(30 * time.Minute)

	first, err := m.GetOrStart(ctx, 7, examID, endsAt)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	second, err := m.GetOrStart(ctx, 7, examID, endsAt)
	if err != nil {
		t.Fatalf("reattach failed: %v", err)
	}
	if first != second {
		t.Fatal("reconnect must attach to the existing controller")
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 live controller, got %d", m.Len())
	}
}

func TestManagerIsolatesStudents(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store := &fakeStore{clock: clock}
	source := &fakeSource{questions: []model.Question{question(1, "A")}}
	m := session.NewManager(source, store, time.Second, zerolog.Nop())

	examID := uuid.New()
	endsAt := time.Now().Add(30 * time.Minute)

	a, err := m.GetOrStart(ctx, 1, examID, endsAt)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	b, err := m.GetOrStart(ctx, 2, examID, endsAt)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if a == b {
		t.Fatal("different students must get different controllers")
	}
}

func TestManagerDropsFailedController(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store := &fakeStore{clock: clock}
	source := &fakeSource{questions: nil}
	m := session.NewManager(source, store, time.Second, zerolog.Nop())

	examID := uuid.New()
	if _, err := m.GetOrStart(ctx, 7, examID, time.Now().Add(time.Hour)); !errors.Is(err, session.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("failed controller must be dropped, got %d", m.Len())
	}

	// A later attempt retries the load instead of replaying the cached error.
	source.questions = []model.Question{question(1, "A")}
	if _, err := m.GetOrStart(ctx, 7, examID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestManagerEvictsCompletedController(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store := &fakeStore{clock: clock}
	source := &fakeSource{questions: []model.Question{question(1, "A")}}
	m := session.NewManager(source, store, time.Second, zerolog.Nop())

	examID := uuid.New()
	ctrl, err := m.GetOrStart(ctx, 7, examID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := ctrl.Submit(ctx, session.TriggerManual); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("completed controller must leave the registry, got %d", m.Len())
	}
}

func TestManagerRelease(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store := &fakeStore{clock: clock}
	source := &fakeSource{questions: []model.Question{question(1, "A")}}
	m := session.NewManager(source, store, time.Second, zerolog.Nop())

	examID := uuid.New()
	if _, err := m.GetOrStart(ctx, 7, examID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	m.Release(7, examID)
	if _, ok := m.Get(7, examID); ok {
		t.Fatal("released controller must be gone")
	}
}
