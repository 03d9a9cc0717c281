package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akademix/examroom-backend/internal/model"
	"github.com/akademix/examroom-backend/internal/session"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeSource struct {
	questions []model.Question
	err       error
}

func (s *fakeSource) QuestionsForExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	return s.questions, s.err
}

type fakeStore struct {
	mu            sync.Mutex
	clock         *fakeClock
	upserts       []model.AnswerRecord
	upsertErr     error
	loadErr       error
	finalizeCalls int
	finalizeScore int
	finalizeMins  int
	finalizeErrs  []error // consumed one per call, nil after exhaustion
	existing      *model.Submission
}

func (s *fakeStore) Create(ctx context.Context, studentID int, examID uuid.UUID, totalQuestions int) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existing != nil {
		return s.existing, nil
	}
	return &model.Submission{
		ID:             uuid.New(),
		StudentID:      studentID,
		ExamID:         examID,
		TotalQuestions: totalQuestions,
		StartedAt:      s.clock.Now(),
	}, nil
}

func (s *fakeStore) UpsertAnswer(ctx context.Context, submissionID uuid.UUID, rec model.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, rec)
	return nil
}

// LoadAnswers plays back the latest persisted record per question, the way
// the durable mirror would after a process restart.
func (s *fakeStore) LoadAnswers(ctx context.Context, submissionID uuid.UUID) ([]model.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	latest := make(map[uuid.UUID]model.AnswerRecord)
	for _, rec := range s.upserts {
		latest[rec.QuestionID] = rec
	}
	records := make([]model.AnswerRecord, 0, len(latest))
	for _, rec := range latest {
		records = append(records, rec)
	}
	return records, nil
}

func (s *fakeStore) Finalize(ctx context.Context, submissionID uuid.UUID, score, timeTakenMinutes int, submittedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizeCalls++
	if len(s.finalizeErrs) > 0 {
		err := s.finalizeErrs[0]
		s.finalizeErrs = s.finalizeErrs[1:]
		if err != nil {
			return err
		}
	}
	s.finalizeScore = score
	s.finalizeMins = timeTakenMinutes
	return nil
}

func (s *fakeStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

func question(order int, correct string) model.Question {
	return model.Question{ID: uuid.New(), OrderNum: order, CorrectOption: correct}
}

func newTestController(t *testing.T, questions []model.Question, store *fakeStore, clock *fakeClock) *session.Controller {
	t.Helper()
	if clock == nil {
		clock = newFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	}
	if store.clock == nil {
		store.clock = clock
	}
	return session.NewController(
		7,
		uuid.New(),
		clock.Now().Add(30*time.Minute),
		time.Second,
		&fakeSource{questions: questions},
		store,
		zerolog.Nop(),
		clock.Now,
	)
}

func TestStartActivatesSession(t *testing.T) {
	ctx := context.Background()
	qs := []model.Question{question(1, "A"), question(2, "B")}
	ctrl := newTestController(t, qs, &fakeStore{}, nil)

	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got := ctrl.State(); got != session.StateActive {
		t.Fatalf("expected active, got %s", got)
	}
	if ctrl.QuestionCount() != 2 {
		t.Fatalf("expected 2 questions, got %d", ctrl.QuestionCount())
	}
}

func TestStartRejectsEndedExam(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store := &fakeStore{clock: clock}
	ctrl := session.NewController(7, uuid.New(), clock.Now().Add(-time.Minute), time.Second,
		&fakeSource{questions: []model.Question{question(1, "A")}}, store, zerolog.Nop(), clock.Now)

	if err := ctrl.Start(context.Background()); !errors.Is(err, session.ErrExamEnded) {
		t.Fatalf("expected ErrExamEnded, got %v", err)
	}
	if got := ctrl.State(); got != session.StateCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
	if store.finalizeCalls != 0 {
		t.Fatalf("ended exam must not finalize, got %d calls", store.finalizeCalls)
	}
}

func TestStartRejectsEmptyExam(t *testing.T) {
	ctrl := newTestController(t, nil, &fakeStore{}, nil)
	if err := ctrl.Start(context.Background()); !errors.Is(err, session.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
	if got := ctrl.State(); got != session.StateCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
}

func TestStartRejectsFinalizedSubmission(t *testing.T) {
	done := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{existing: &model.Submission{ID: uuid.New(), SubmittedAt: &done}}
	ctrl := newTestController(t, []model.Question{question(1, "A")}, store, nil)

	if err := ctrl.Start(context.Background()); !errors.Is(err, session.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestActionsRejectedBeforeStart(t *testing.T) {
	ctx := context.Background()
	ctrl := newTestController(t, []model.Question{question(1, "A")}, &fakeStore{}, nil)

	if err := ctrl.SelectAnswer(ctx, uuid.New(), "A"); !errors.Is(err, session.ErrSessionNotReady) {
		t.Fatalf("expected ErrSessionNotReady, got %v", err)
	}
	if err := ctrl.Submit(ctx, session.TriggerManual); !errors.Is(err, session.ErrSessionNotReady) {
		t.Fatalf("expected ErrSessionNotReady, got %v", err)
	}
}

func TestScoringIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	qs := []model.Question{question(1, "A"), question(2, "b"), question(3, "C")}
	store := &fakeStore{}
	ctrl := newTestController(t, qs, store, nil)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := ctrl.SelectAnswer(ctx, qs[0].ID, "a"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if err := ctrl.SelectAnswer(ctx, qs[1].ID, "B"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if err := ctrl.SelectAnswer(ctx, qs[2].ID, "D"); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	if err := ctrl.Submit(ctx, session.TriggerManual); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if store.finalizeScore != 2 {
		t.Fatalf("expected score 2, got %d", store.finalizeScore)
	}
}

func TestMarkedForReviewDoesNotScore(t *testing.T) {
	ctx := context.Background()
	qs := []model.Question{question(1, "A")}
	store := &fakeStore{}
	ctrl := newTestController(t, qs, store, nil)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := ctrl.SelectAnswer(ctx, qs[0].ID, "A"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if err := ctrl.MarkForReview(ctx, qs[0].ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	rec, ok := ctrl.Answers()[qs[0].ID]
	if !ok || rec.Selected != "A" || rec.Status != model.AnswerStatusMarkedForReview {
		t.Fatalf("mark for review must preserve selection, got %+v", rec)
	}

	if err := ctrl.Submit(ctx, session.TriggerManual); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if store.finalizeScore != 0 {
		t.Fatalf("marked-for-review answer must not score, got %d", store.finalizeScore)
	}
}

func TestSelectAnswerRejectsUnknownQuestion(t *testing.T) {
	ctx := context.Background()
	ctrl := newTestController(t, []model.Question{question(1, "A")}, &fakeStore{}, nil)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := ctrl.SelectAnswer(ctx, uuid.New(), "A"); !errors.Is(err, session.ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
}

func TestFinalizeSweepsUnvisitedQuestions(t *testing.T) {
	ctx := context.Background()
	qs := []model.Question{question(1, "A"), question(2, "B"), question(3, "C"), question(4, "D")}
	store := &fakeStore{}
	ctrl := newTestController(t, qs, store, nil)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := ctrl.SelectAnswer(ctx, qs[0].ID, "A"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if err := ctrl.Submit(ctx, session.TriggerManual); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	answers := ctrl.Answers()
	if len(answers) != len(qs) {
		t.Fatalf("expected a record per question, got %d of %d", len(answers), len(qs))
	}
	swept := 0
	for _, rec := range answers {
		if rec.Status == model.AnswerStatusNotAnswered {
			swept++
			if rec.Selected != model.SelectionNone {
				t.Fatalf("swept record must carry the %q sentinel, got %q", model.SelectionNone, rec.Selected)
			}
		}
	}
	if swept != 3 {
		t.Fatalf("expected 3 swept records, got %d", swept)
	}
	if store.finalizeScore != 1 {
		t.Fatalf("expected score 1, got %d", store.finalizeScore)
	}
}

func TestConcurrentSubmitFinalizesOnce(t *testing.T) {
	ctx := context.Background()
	qs := []model.Question{question(1, "A")}
	store := &fakeStore{}
	ctrl := newTestController(t, qs, store, nil)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	triggers := []session.Trigger{
		session.TriggerManual, session.TriggerExpiry, session.TriggerViolation,
		session.TriggerManual, session.TriggerExpiry, session.TriggerViolation,
	}
	var wg sync.WaitGroup
	for _, tr := range triggers {
		wg.Add(1)
		go func(tr session.Trigger) {
			defer wg.Done()
			_ = ctrl.Submit(ctx, tr)
		}(tr)
	}
	wg.Wait()

	if store.finalizeCalls != 1 {
		t.Fatalf("expected exactly one finalize, got %d", store.finalizeCalls)
	}
	if got := ctrl.State(); got != session.StateCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
}

func TestWritesRejectedAfterSubmit(t *testing.T) {
	ctx := context.Background()
	qs := []model.Question{question(1, "A")}
	ctrl := newTestController(t, qs, &fakeStore{}, nil)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := ctrl.Submit(ctx, session.TriggerManual); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if err := ctrl.SelectAnswer(ctx, qs[0].ID, "B"); !errors.Is(err, session.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if err := ctrl.MarkForReview(ctx, qs[0].ID); !errors.Is(err, session.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestFailedCommitStaysFinalizingThenRetries(t *testing.T) {
	ctx := context.Background()
	qs := []model.Question{question(1, "A"), question(2, "B")}
	store := &fakeStore{finalizeErrs: []error{errors.New("db down")}}
	ctrl := newTestController(t, qs, store, nil)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := ctrl.SelectAnswer(ctx, qs[0].ID, "A"); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	if err := ctrl.Submit(ctx, session.TriggerManual); err == nil {
		t.Fatal("expected commit error")
	}
	if got := ctrl.State(); got != session.StateFinalizing {
		t.Fatalf("failed commit must stay finalizing, got %s", got)
	}

	sweepsAfterFirst := ctrl.Answers()
	if len(sweepsAfterFirst) != 2 {
		t.Fatalf("sweep must run before commit, got %d records", len(sweepsAfterFirst))
	}

	if err := ctrl.Submit(ctx, session.TriggerManual); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if got := ctrl.State(); got != session.StateCompleted {
		t.Fatalf("expected completed after retry, got %s", got)
	}
	if store.finalizeCalls != 2 {
		t.Fatalf("expected 2 finalize attempts, got %d", store.finalizeCalls)
	}
	if store.finalizeScore != 1 {
		t.Fatalf("retry must commit the frozen score, got %d", store.finalizeScore)
	}
	if len(ctrl.Answers()) != 2 {
		t.Fatalf("retry must not re-sweep, got %d records", len(ctrl.Answers()))
	}
}

func TestTimeTakenIsFlooredMinutes(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store := &fakeStore{clock: clock}
	ctrl := newTestController(t, []model.Question{question(1, "A")}, store, clock)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	clock.Advance(2*time.Minute + 59*time.Second)
	if err := ctrl.Submit(ctx, session.TriggerManual); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if store.finalizeMins != 2 {
		t.Fatalf("expected 2 whole minutes, got %d", store.finalizeMins)
	}
}

func TestNavigateClampsToQuestionRange(t *testing.T) {
	ctx := context.Background()
	qs := []model.Question{question(1, "A"), question(2, "B"), question(3, "C")}
	ctrl := newTestController(t, qs, &fakeStore{}, nil)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if got := ctrl.Navigate(-5); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
	if got := ctrl.Navigate(99); got != 2 {
		t.Fatalf("expected clamp to 2, got %d", got)
	}
	if got := ctrl.Navigate(1); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestViolationFinalizesOnce(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	ctrl := newTestController(t, []model.Question{question(1, "A")}, store, nil)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	ctrl.ReportFullscreen(ctx, false)
	ctrl.ReportFullscreen(ctx, false)
	ctrl.ReportFullscreen(ctx, true)
	ctrl.ReportFullscreen(ctx, false)

	if store.finalizeCalls != 1 {
		t.Fatalf("expected one finalize from violations, got %d", store.finalizeCalls)
	}
	if got := ctrl.State(); got != session.StateCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
}

func TestVisibilityLossIsAdvisoryOnly(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	ctrl := newTestController(t, []model.Question{question(1, "A")}, store, nil)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	events, cancel := ctrl.Subscribe()
	defer cancel()

	ctrl.ReportVisibility(true)

	select {
	case ev := <-events:
		if ev.Type != session.EventWarning {
			t.Fatalf("expected warning event, got %s", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a warning event")
	}
	if store.finalizeCalls != 0 {
		t.Fatalf("visibility loss must not finalize, got %d calls", store.finalizeCalls)
	}
	if got := ctrl.State(); got != session.StateActive {
		t.Fatalf("expected active, got %s", got)
	}
}

func TestPreIdentityViolationReplayedOnce(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	ctrl := newTestController(t, []model.Question{question(1, "A")}, store, nil)

	// Violation lands while the session is still loading.
	ctrl.ReportFullscreen(ctx, false)
	if store.finalizeCalls != 0 {
		t.Fatalf("buffered violation must not finalize yet, got %d calls", store.finalizeCalls)
	}

	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if store.finalizeCalls != 1 {
		t.Fatalf("expected buffered violation to finalize once, got %d", store.finalizeCalls)
	}
	if got := ctrl.State(); got != session.StateCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
}

func TestBestEffortAnswerWriteFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	qs := []model.Question{question(1, "A")}
	store := &fakeStore{upsertErr: errors.New("queue unavailable")}
	ctrl := newTestController(t, qs, store, nil)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := ctrl.SelectAnswer(ctx, qs[0].ID, "A"); err != nil {
		t.Fatalf("select must succeed despite durable failure: %v", err)
	}
	rec, ok := ctrl.Answers()[qs[0].ID]
	if !ok || rec.Status != model.AnswerStatusAnswered {
		t.Fatalf("in-memory record must remain authoritative, got %+v", rec)
	}

	store.mu.Lock()
	store.upsertErr = nil
	store.finalizeErrs = nil
	store.mu.Unlock()
	if err := ctrl.Submit(ctx, session.TriggerManual); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if store.finalizeScore != 1 {
		t.Fatalf("scoring must use the in-memory record, got %d", store.finalizeScore)
	}
}

func TestSubmitAfterCompletedIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	ctrl := newTestController(t, []model.Question{question(1, "A")}, store, nil)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := ctrl.Submit(ctx, session.TriggerManual); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := ctrl.Submit(ctx, session.TriggerExpiry); err != nil {
		t.Fatalf("late submit must be a no-op, got %v", err)
	}
	if store.finalizeCalls != 1 {
		t.Fatalf("expected one finalize, got %d", store.finalizeCalls)
	}
}

func TestRestartRehydratesPersistedAnswers(t *testing.T) {
	ctx := context.Background()
	qs := []model.Question{question(1, "B"), question(2, "A"), question(3, "C")}
	store := &fakeStore{}

	first := newTestController(t, qs, store, nil)
	if err := first.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := first.SelectAnswer(ctx, qs[0].ID, "B"); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	// Process restart: a fresh controller attaches to the same durable store.
	second := newTestController(t, qs, store, nil)
	if err := second.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	rec, ok := second.Answers()[qs[0].ID]
	if !ok || rec.Status != model.AnswerStatusAnswered || rec.Selected != "B" {
		t.Fatalf("saved answer must survive the restart, got %+v", rec)
	}

	if err := second.Submit(ctx, session.TriggerManual); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if store.finalizeScore != 1 {
		t.Fatalf("restored answer must score, got %d", store.finalizeScore)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, up := range store.upserts {
		if up.QuestionID == qs[0].ID && up.Status == model.AnswerStatusNotAnswered {
			t.Fatal("sweep must not overwrite a restored answer")
		}
	}
}

func TestStartFailsWhenSavedAnswersUnavailable(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("mirror unreachable")}
	ctrl := newTestController(t, []model.Question{question(1, "A")}, store, nil)

	if err := ctrl.Start(context.Background()); err == nil {
		t.Fatal("start must fail when saved answers cannot be read")
	}
	if store.finalizeCalls != 0 {
		t.Fatalf("failed start must not finalize, got %d calls", store.finalizeCalls)
	}
}

func TestViolationDuringActivationNeverDropped(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		store := &fakeStore{}
		ctrl := newTestController(t, []model.Question{question(1, "A")}, store, nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := ctrl.Start(ctx); err != nil {
				t.Errorf("start failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			ctrl.ReportFullscreen(ctx, false)
		}()
		wg.Wait()

		if got := ctrl.State(); got != session.StateCompleted {
			t.Fatalf("violation lost during activation, state %s", got)
		}
		if store.finalizeCalls != 1 {
			t.Fatalf("expected exactly one finalize, got %d", store.finalizeCalls)
		}
	}
}

func TestSubmittedEventCarriesScore(t *testing.T) {
	ctx := context.Background()
	qs := []model.Question{question(1, "A")}
	store := &fakeStore{}
	ctrl := newTestController(t, qs, store, nil)
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	events, cancel := ctrl.Subscribe()
	defer cancel()

	if err := ctrl.SelectAnswer(ctx, qs[0].ID, "a"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if err := ctrl.Submit(ctx, session.TriggerManual); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == session.EventSubmitted {
				if ev.Score != 1 {
					t.Fatalf("expected score 1 in submitted event, got %d", ev.Score)
				}
				return
			}
		case <-deadline:
			t.Fatal("expected a submitted event")
		}
	}
}
