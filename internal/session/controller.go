package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akademix/examroom-backend/internal/model"
)

// State is the controller's lifecycle phase.
type State string

const (
	StateLoading    State = "loading"
	StateActive     State = "active"
	StateFinalizing State = "finalizing"
	StateCompleted  State = "completed"
)

// Controller owns one student's exam session. It receives user actions,
// countdown signals, and proctoring signals, drives the answer store and the
// persistence gateway, and guarantees that at most one finalize sequence
// ever runs, enforced by a latch that is checked and set atomically before
// any finalize side effect begins.
type Controller struct {
	studentID int
	examID    uuid.UUID
	endsAt    time.Time
	now       func() time.Time

	source QuestionSource
	store  SubmissionStore
	log    zerolog.Logger

	countdown *Countdown
	proctor   *Monitor
	answers   *AnswerStore

	// onComplete, when set before Start, runs once after the submission
	// commit succeeds. The Manager uses it to drop the controller from the
	// registry.
	onComplete func()

	startOnce sync.Once
	startErr  error

	// finalizeLatch is the single synchronization point between the three
	// submit triggers. CompareAndSwap admits exactly one finalize sequence.
	finalizeLatch atomic.Bool

	mu             sync.Mutex
	state          State
	submission     *model.Submission
	questions      []model.Question
	byID           map[uuid.UUID]*model.Question
	navIndex       int
	navAnchor      time.Time
	pendingScore   int
	pendingMinutes int
	pendingTrigger Trigger
	finalizeErr    error
	stopTicker     context.CancelFunc

	// Subscribers live behind their own lock so tick delivery is never
	// stalled by a durable write holding mu.
	subMu       sync.Mutex
	subscribers map[chan Event]struct{}
}

// NewController creates a controller in the loading state. tickInterval is
// the countdown period (one second in production); now may be nil for the
// wall clock.
func NewController(
	studentID int,
	examID uuid.UUID,
	endsAt time.Time,
	tickInterval time.Duration,
	source QuestionSource,
	store SubmissionStore,
	log zerolog.Logger,
	now func() time.Time,
) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{
		studentID:   studentID,
		examID:      examID,
		endsAt:      endsAt,
		now:         now,
		source:      source,
		store:       store,
		log:         log.With().Str("component", "session_controller").Int("student_id", studentID).Str("exam_id", examID.String()).Logger(),
		countdown:   NewCountdown(endsAt, tickInterval, now),
		proctor:     NewMonitor(),
		answers:     NewAnswerStore(),
		state:       StateLoading,
		subscribers: make(map[chan Event]struct{}),
	}
}

// Start loads the questions and the durable submission identity, then
// enters active and begins the countdown. Idempotent: concurrent callers
// share one load and observe the same result.
//
// Setup failures are terminal: a zero-question exam or an exam whose end
// time already passed moves the session straight to completed with no
// submission created and no scoring performed.
func (c *Controller) Start(ctx context.Context) error {
	c.startOnce.Do(func() {
		c.startErr = c.load(ctx)
	})
	return c.startErr
}

func (c *Controller) load(ctx context.Context) error {
	now := c.now()
	if !now.Before(c.endsAt) {
		c.setState(StateCompleted)
		return ErrExamEnded
	}

	questions, err := c.source.QuestionsForExam(ctx, c.examID)
	if err != nil {
		c.setState(StateCompleted)
		return fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		c.setState(StateCompleted)
		return ErrNoQuestions
	}

	sub, err := c.store.Create(ctx, c.studentID, c.examID, len(questions))
	if err != nil {
		c.setState(StateCompleted)
		return fmt.Errorf("create submission: %w", err)
	}
	if sub.Finalized() {
		c.setState(StateCompleted)
		return ErrAlreadySubmitted
	}

	byID := make(map[uuid.UUID]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	// Rehydrate previously mirrored records. Without this, a controller
	// attached to an existing submission after a restart would sweep
	// NOT_ANSWERED over everything the student already answered.
	saved, err := c.store.LoadAnswers(ctx, sub.ID)
	if err != nil {
		c.setState(StateCompleted)
		return fmt.Errorf("load answers: %w", err)
	}
	restored := 0
	for _, rec := range saved {
		q, ok := byID[rec.QuestionID]
		if !ok {
			continue
		}
		rec.Correct = model.SameOption(rec.Selected, q.CorrectOption)
		c.answers.Put(rec)
		restored++
	}
	if restored > 0 {
		c.log.Info().Int("restored", restored).Msg("Rehydrated saved answers")
	}

	c.mu.Lock()
	c.questions = questions
	c.byID = byID
	c.submission = sub
	c.navIndex = 0
	c.navAnchor = now
	c.state = StateActive
	tickCtx, cancel := context.WithCancel(context.Background())
	c.stopTicker = cancel
	c.mu.Unlock()

	go c.countdown.Run(tickCtx,
		func(remaining int) { c.publish(Event{Type: EventTick, Remaining: remaining}) },
		func() { _ = c.Submit(context.Background(), TriggerExpiry) },
	)

	c.log.Info().Int("questions", len(questions)).Str("submission_id", sub.ID.String()).Msg("Session active")

	// A violation observed while loading was buffered; replay it exactly once.
	if c.proctor.TakePending() {
		c.publish(Event{Type: EventViolation, Detail: "full-screen exited during load"})
		_ = c.Submit(ctx, TriggerViolation)
	}
	return nil
}

// SelectAnswer records the student's option for a question and mirrors the
// record to durable storage. The durable write is best-effort: failures are
// logged and the in-memory record stays authoritative for scoring.
func (c *Controller) SelectAnswer(ctx context.Context, questionID uuid.UUID, option string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writableLocked(); err != nil {
		return err
	}
	q, ok := c.byID[questionID]
	if !ok {
		return ErrUnknownQuestion
	}

	now := c.now()
	spent := now.Sub(c.navAnchor)
	if spent < 0 {
		spent = 0
	}
	c.navAnchor = now

	rec, _ := c.answers.Get(questionID)
	rec.QuestionID = questionID
	rec.Selected = option
	rec.Status = model.AnswerStatusAnswered
	rec.TimeSpentMS += spent.Milliseconds()
	rec.Correct = model.SameOption(option, q.CorrectOption)
	c.answers.Put(rec)

	c.persistAnswer(ctx, rec)
	return nil
}

// MarkForReview flags a question for review, preserving any existing
// selection. Same preconditions and mirroring as SelectAnswer.
func (c *Controller) MarkForReview(ctx context.Context, questionID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writableLocked(); err != nil {
		return err
	}
	q, ok := c.byID[questionID]
	if !ok {
		return ErrUnknownQuestion
	}

	rec, found := c.answers.Get(questionID)
	if !found {
		rec = model.AnswerRecord{QuestionID: questionID, Selected: model.SelectionNone}
	}
	rec.Status = model.AnswerStatusMarkedForReview
	rec.Correct = model.SameOption(rec.Selected, q.CorrectOption)
	c.answers.Put(rec)

	c.persistAnswer(ctx, rec)
	return nil
}

// Navigate moves the cursor to the given question index, clamped to
// [0, question count), and resets the per-question time-spent anchor.
// Returns the effective index.
func (c *Controller) Navigate(index int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive || len(c.questions) == 0 {
		return c.navIndex
	}
	if index < 0 {
		index = 0
	}
	if index >= len(c.questions) {
		index = len(c.questions) - 1
	}
	c.navIndex = index
	c.navAnchor = c.now()
	return index
}

// ReportFullscreen feeds a full-screen transition into the proctoring
// monitor. The first exit from compliance triggers a violation submit; a
// violation observed before the submission identity exists is buffered and
// replayed once the session becomes active.
func (c *Controller) ReportFullscreen(ctx context.Context, active bool) {
	if !c.proctor.ObserveFullscreen(active) {
		return
	}

	c.mu.Lock()
	loading := c.state == StateLoading || c.submission == nil
	c.mu.Unlock()

	if loading {
		c.proctor.Defer()

		// The session may have gone active between the state check and the
		// Defer, after activation already consumed the (then empty) buffer.
		// Re-check and take the buffer back here so the violation is never
		// stranded. TakePending admits one consumer, so this cannot double
		// up with the activation replay.
		c.mu.Lock()
		stillLoading := c.state == StateLoading || c.submission == nil
		c.mu.Unlock()
		if stillLoading {
			c.log.Warn().Msg("Violation before submission identity, buffering")
			return
		}
		if !c.proctor.TakePending() {
			return
		}
	}

	c.log.Warn().Msg("Proctoring violation: full-screen exited")
	c.publish(Event{Type: EventViolation, Detail: "full-screen exited"})
	_ = c.Submit(ctx, TriggerViolation)
}

// ReportVisibility records a visibility-only change (tab hidden). Advisory:
// surfaced to the stream and logged, never a termination trigger.
func (c *Controller) ReportVisibility(hidden bool) {
	if !hidden {
		return
	}
	c.log.Info().Msg("Tab visibility lost")
	c.publish(Event{Type: EventWarning, Detail: "tab visibility lost"})
}

// Submit requests the transition to finalizing. The three producers (manual
// action, countdown expiry, proctoring violation) may race here; the latch
// admits exactly one finalize sequence and every later call is a no-op.
// The exception is a failed finalize commit, where Submit retries the commit
// alone so the latch can never leave the session stuck without recovery.
func (c *Controller) Submit(ctx context.Context, trigger Trigger) error {
	c.mu.Lock()

	switch c.state {
	case StateLoading:
		c.mu.Unlock()
		return ErrSessionNotReady
	case StateCompleted:
		c.mu.Unlock()
		return nil
	case StateFinalizing:
		if c.finalizeErr == nil {
			c.mu.Unlock()
			return nil
		}
		defer c.mu.Unlock()
		return c.commitLocked(ctx)
	}

	if !c.finalizeLatch.CompareAndSwap(false, true) {
		c.mu.Unlock()
		return nil
	}
	defer c.mu.Unlock()

	c.state = StateFinalizing
	c.log.Info().Str("trigger", string(trigger)).Msg("Finalizing session")
	return c.finalizeLocked(ctx, trigger)
}

// finalizeLocked runs the one finalize sequence: score, sweep, time-taken,
// durable commit. Caller holds mu and has won the latch.
func (c *Controller) finalizeLocked(ctx context.Context, trigger Trigger) error {
	now := c.now()

	score := 0
	for i := range c.questions {
		q := &c.questions[i]
		if rec, ok := c.answers.Get(q.ID); ok &&
			rec.Status == model.AnswerStatusAnswered &&
			model.SameOption(rec.Selected, q.CorrectOption) {
			score++
		}
	}

	// Sweep: every question without a record gets an explicit not-answered
	// record so the durable answer set always covers the full question list.
	for i := range c.questions {
		q := &c.questions[i]
		if _, ok := c.answers.Get(q.ID); ok {
			continue
		}
		rec := model.AnswerRecord{
			QuestionID: q.ID,
			Selected:   model.SelectionNone,
			Status:     model.AnswerStatusNotAnswered,
		}
		c.answers.Put(rec)
		c.persistAnswer(ctx, rec)
	}

	minutes := int(now.Sub(c.submission.StartedAt) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	c.pendingScore = score
	c.pendingMinutes = minutes
	c.pendingTrigger = trigger

	return c.commitLocked(ctx)
}

// commitLocked performs the must-succeed submission commit. On failure the
// session stays in finalizing with a retryable error; Submit re-runs this
// step. Caller holds mu.
func (c *Controller) commitLocked(ctx context.Context) error {
	submittedAt := c.now()
	if err := c.store.Finalize(ctx, c.submission.ID, c.pendingScore, c.pendingMinutes, submittedAt); err != nil {
		c.finalizeErr = err
		c.log.Error().Err(err).Msg("Submission commit failed, session stays finalizing")
		return fmt.Errorf("commit submission: %w", err)
	}
	c.finalizeErr = nil

	c.submission.Score = c.pendingScore
	c.submission.TimeTakenMinutes = c.pendingMinutes
	c.submission.SubmittedAt = &submittedAt
	c.state = StateCompleted
	if c.stopTicker != nil {
		c.stopTicker()
	}

	c.log.Info().
		Int("score", c.pendingScore).
		Int("time_taken_minutes", c.pendingMinutes).
		Str("trigger", string(c.pendingTrigger)).
		Msg("Session completed")

	c.publish(Event{Type: EventSubmitted, Score: c.pendingScore, Trigger: c.pendingTrigger})
	c.publish(Event{Type: EventExitFullscreen})
	if c.onComplete != nil {
		c.onComplete()
	}
	return nil
}

// persistAnswer mirrors one record to the gateway. Best-effort: a failure is
// logged and the in-memory record remains authoritative. Caller holds mu.
func (c *Controller) persistAnswer(ctx context.Context, rec model.AnswerRecord) {
	if err := c.store.UpsertAnswer(ctx, c.submission.ID, rec); err != nil {
		c.log.Warn().Err(err).Str("question_id", rec.QuestionID.String()).Msg("Answer persist failed, in-memory record kept")
	}
}

// writableLocked checks that per-question writes are currently accepted.
func (c *Controller) writableLocked() error {
	switch c.state {
	case StateLoading:
		return ErrSessionNotReady
	case StateFinalizing, StateCompleted:
		return ErrSessionClosed
	}
	if c.submission == nil {
		return ErrSessionNotReady
	}
	return nil
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the controller's current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Remaining returns the countdown's remaining whole seconds.
func (c *Controller) Remaining() int {
	return c.countdown.Remaining()
}

// Submission returns a copy of the current submission, if loaded.
func (c *Controller) Submission() (model.Submission, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submission == nil {
		return model.Submission{}, false
	}
	return *c.submission, true
}

// Answers returns a snapshot of the in-memory answer records.
func (c *Controller) Answers() map[uuid.UUID]model.AnswerRecord {
	return c.answers.Snapshot()
}

// QuestionCount returns the number of loaded questions.
func (c *Controller) QuestionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.questions)
}

// Subscribe registers an event channel. The returned cancel must be called
// to avoid leaks. Delivery drops the oldest buffered event rather than
// blocking the producer.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	c.subMu.Lock()
	c.subscribers[ch] = struct{}{}
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.subMu.Unlock()
	}
	return ch, cancel
}

func (c *Controller) publish(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
