// Package session implements the exam-session controller: the state machine
// that tracks remaining time, records per-question answers, watches for
// proctoring violations, and reconciles the three independent termination
// triggers (timer expiry, violation, manual submit) into exactly one
// finalized submission.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/akademix/examroom-backend/internal/model"
)

// Session errors, grouped by the recovery they allow.
var (
	// ErrSessionNotReady: the action arrived before the durable submission
	// identity existed. Reported, never silently dropped.
	ErrSessionNotReady = errors.New("session is still loading")
	// ErrSessionClosed: the session is finalizing or completed; no new
	// per-question writes are accepted.
	ErrSessionClosed = errors.New("session is closed")
	// ErrNoQuestions: setup failure, the exam has no questions.
	ErrNoQuestions = errors.New("exam has no questions")
	// ErrExamEnded: the exam's end time had already passed at load.
	ErrExamEnded = errors.New("exam already ended")
	// ErrAlreadySubmitted: a finalized submission exists for this student.
	ErrAlreadySubmitted = errors.New("submission already finalized")
	// ErrUnknownQuestion: the question is not part of this exam.
	ErrUnknownQuestion = errors.New("unknown question")
)

// QuestionSource provides the ordered question list for an exam.
type QuestionSource interface {
	QuestionsForExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}

// SubmissionStore is the persistence gateway the controller drives.
// UpsertAnswer is best-effort and idempotent per (submission, question);
// LoadAnswers returns the previously mirrored records so a controller
// attaching to an existing open submission starts from the student's saved
// work instead of an empty sheet; Finalize is the single must-succeed write
// of the whole session.
type SubmissionStore interface {
	Create(ctx context.Context, studentID int, examID uuid.UUID, totalQuestions int) (*model.Submission, error)
	UpsertAnswer(ctx context.Context, submissionID uuid.UUID, rec model.AnswerRecord) error
	LoadAnswers(ctx context.Context, submissionID uuid.UUID) ([]model.AnswerRecord, error)
	Finalize(ctx context.Context, submissionID uuid.UUID, score, timeTakenMinutes int, submittedAt time.Time) error
}

// Trigger identifies which of the three termination paths requested submit.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerExpiry    Trigger = "timer"
	TriggerViolation Trigger = "violation"
)
