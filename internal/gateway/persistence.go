// Package gateway bridges the in-memory session layer and durable storage.
// Per-answer mirrors go through a Redis queue drained by a background
// worker; submission creation and the finalize commit hit PostgreSQL
// directly because the session cannot proceed without them.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/akademix/examroom-backend/internal/config"
	"github.com/akademix/examroom-backend/internal/model"
	"github.com/akademix/examroom-backend/internal/repository"
)

// AnswerPayload is the queue message for one mirrored answer record.
type AnswerPayload struct {
	SubmissionID string `json:"submission_id"`
	QuestionID   string `json:"question_id"`
	Selected     string `json:"selected"`
	Status       string `json:"status"`
	Correct      bool   `json:"correct"`
	TimeSpentSec int    `json:"time_spent_sec"`
}

// IDs parses the payload's identifiers. A payload that fails here is
// malformed and can never succeed, no matter how often it is retried.
func (a *AnswerPayload) IDs() (submissionID, questionID uuid.UUID, err error) {
	submissionID, err = uuid.Parse(a.SubmissionID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("submission id: %w", err)
	}
	questionID, err = uuid.Parse(a.QuestionID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("question id: %w", err)
	}
	return submissionID, questionID, nil
}

// Record converts the payload back into the session layer's answer record.
func (a *AnswerPayload) Record() (model.AnswerRecord, error) {
	_, questionID, err := a.IDs()
	if err != nil {
		return model.AnswerRecord{}, err
	}
	return model.AnswerRecord{
		QuestionID:  questionID,
		Selected:    a.Selected,
		Status:      model.AnswerStatus(a.Status),
		TimeSpentMS: int64(a.TimeSpentSec) * 1000,
		Correct:     a.Correct,
	}, nil
}

// Persistence implements the session layer's SubmissionStore.
type Persistence struct {
	submissions *repository.SubmissionRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewPersistence creates the gateway.
func NewPersistence(submissions *repository.SubmissionRepository, rdb *redis.Client, log zerolog.Logger) *Persistence {
	return &Persistence{
		submissions: submissions,
		rdb:         rdb,
		log:         log.With().Str("component", "persistence_gateway").Logger(),
	}
}

// Create inserts or returns the durable submission row for (student, exam).
// The start time is cached in Redis so state reads avoid a database trip.
func (p *Persistence) Create(ctx context.Context, studentID int, examID uuid.UUID, totalQuestions int) (*model.Submission, error) {
	sub, err := p.submissions.CreateOrGet(ctx, studentID, examID, totalQuestions)
	if err != nil {
		return nil, err
	}
	if err := p.rdb.Set(ctx, config.CacheKey.SubmissionStartKey(sub.ID.String()), sub.StartedAt.Unix(), 0).Err(); err != nil {
		p.log.Warn().Err(err).Msg("Start time cache write failed")
	}
	return sub, nil
}

// UpsertAnswer enqueues one answer record for the persistence worker. The
// queue write is the only durable step taken on the session's hot path, so
// a slow database never delays the student's next action.
func (p *Persistence) UpsertAnswer(ctx context.Context, submissionID uuid.UUID, rec model.AnswerRecord) error {
	payload := AnswerPayload{
		SubmissionID: submissionID.String(),
		QuestionID:   rec.QuestionID.String(),
		Selected:     rec.Selected,
		Status:       string(rec.Status),
		Correct:      rec.Correct,
		TimeSpentSec: int(rec.TimeSpentMS / 1000),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal answer payload: %w", err)
	}

	// Hash mirror holds the latest full record per question; LoadAnswers
	// reads it back when a restarted controller reattaches to the session.
	if err := p.rdb.HSet(ctx, config.CacheKey.SubmissionAnswersKey(payload.SubmissionID), payload.QuestionID, data).Err(); err != nil {
		p.log.Warn().Err(err).Msg("Answer hash mirror write failed")
	}

	if err := p.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, data).Err(); err != nil {
		return fmt.Errorf("enqueue answer: %w", err)
	}
	return nil
}

// LoadAnswers returns the saved records for a submission. The Redis mirror
// is the fast path and also covers records still queued for the persistence
// worker; when the mirror is empty or unreachable the durable rows serve as
// the fallback.
func (p *Persistence) LoadAnswers(ctx context.Context, submissionID uuid.UUID) ([]model.AnswerRecord, error) {
	fields, err := p.rdb.HGetAll(ctx, config.CacheKey.SubmissionAnswersKey(submissionID.String())).Result()
	if err == nil && len(fields) > 0 {
		records := make([]model.AnswerRecord, 0, len(fields))
		for questionID, raw := range fields {
			var payload AnswerPayload
			if err := json.Unmarshal([]byte(raw), &payload); err != nil {
				p.log.Warn().Err(err).Str("question_id", questionID).Msg("Skipping unreadable mirror entry")
				continue
			}
			rec, err := payload.Record()
			if err != nil {
				p.log.Warn().Err(err).Str("question_id", questionID).Msg("Skipping unreadable mirror entry")
				continue
			}
			records = append(records, rec)
		}
		return records, nil
	}
	if err != nil {
		p.log.Warn().Err(err).Msg("Answer mirror read failed, falling back to database")
	}
	return p.submissions.ListAnswers(ctx, submissionID)
}

// Finalize commits the submission. Must succeed; the caller retries on error.
func (p *Persistence) Finalize(ctx context.Context, submissionID uuid.UUID, score, timeTakenMinutes int, submittedAt time.Time) error {
	return p.submissions.Finalize(ctx, submissionID, score, timeTakenMinutes, submittedAt)
}
