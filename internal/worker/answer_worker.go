package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/akademix/examroom-backend/internal/config"
	"github.com/akademix/examroom-backend/internal/gateway"
	"github.com/akademix/examroom-backend/internal/model"
	"github.com/akademix/examroom-backend/internal/repository"
)

// AnswerWorker consumes persist_answers_queue and UPSERTs answer records to
// PostgreSQL. The upsert key (submission_id, question_id) makes redelivery
// harmless, so failures are simply requeued.
type AnswerWorker struct {
	submissions *repository.SubmissionRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(submissions *repository.SubmissionRepository, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		submissions: submissions,
		rdb:         rdb,
		log:         log.With().Str("component", "answer_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AnswerWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(3 * time.Second)
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload gateway.AnswerPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		// Malformed JSON cannot be retried. Log and discard.
		w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed payload")
		return
	}

	// Unparseable ids fail on every redelivery; requeueing them would loop
	// the worker forever on one poison item. Log and discard.
	submissionID, questionID, err := payload.IDs()
	if err != nil {
		w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding payload with invalid ids")
		return
	}

	if err := w.persist(ctx, submissionID, questionID, &payload); err != nil {
		w.log.Error().Err(err).
			Str("submission_id", payload.SubmissionID).
			Str("question_id", payload.QuestionID).
			Msg("Persist error, retrying in 5s")
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *AnswerWorker) persist(ctx context.Context, submissionID, questionID uuid.UUID, p *gateway.AnswerPayload) error {
	return w.submissions.UpsertAnswer(ctx, submissionID, questionID,
		p.Selected, model.AnswerStatus(p.Status), p.Correct, p.TimeSpentSec)
}

// drain processes all remaining items in the queue before shutdown.
func (w *AnswerWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var payload gateway.AnswerPayload
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		submissionID, questionID, err := payload.IDs()
		if err != nil {
			w.log.Error().Err(err).Msg("Drain discarding payload with invalid ids")
			continue
		}

		if err := w.persist(ctx, submissionID, questionID, &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
