package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/akademix/examroom-backend/internal/config"
	"github.com/akademix/examroom-backend/internal/model"
	"github.com/akademix/examroom-backend/internal/repository"
)

// ErrExamNotFound is returned when the exam ID matches no row.
var ErrExamNotFound = errors.New("exam not found")

// ExamService serves exam metadata and the student-facing paper. Papers are
// cached in Redis so a room full of students loading at once hits PostgreSQL
// only for the first request.
type ExamService struct {
	exams     *repository.ExamRepository
	questions *repository.QuestionRepository
	rdb       *redis.Client
	log       zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	exams *repository.ExamRepository,
	questions *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		exams:     exams,
		questions: questions,
		rdb:       rdb,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// GetExam returns one exam's metadata.
func (s *ExamService) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// GetExamPaper returns the student-facing paper: questions in order, with
// the correct options stripped. Cache-aside with a TTL bounded by the exam's
// end time.
func (s *ExamService) GetExamPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	cacheKey := config.CacheKey.ExamPaperKey(examID.String())

	cached, err := s.rdb.Get(ctx, cacheKey).Result()
	if err == nil {
		var paper model.ExamPaper
		if err := json.Unmarshal([]byte(cached), &paper); err == nil {
			return &paper, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("Corrupt cached paper, rebuilding")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Paper cache read failed, falling back to database")
	}

	paper, err := s.buildPaper(ctx, examID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(paper); err == nil {
		ttl := time.Until(paper.EndsAt)
		if ttl > 0 {
			if err := s.rdb.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
				s.log.Warn().Err(err).Msg("Paper cache write failed")
			}
		}
	}
	return paper, nil
}

// PrewarmCaches loads the papers of all upcoming exams into Redis at boot.
func (s *ExamService) PrewarmCaches(ctx context.Context) {
	exams, err := s.exams.ListUpcoming(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Prewarm listing failed")
		return
	}
	for _, exam := range exams {
		if _, err := s.GetExamPaper(ctx, exam.ID); err != nil {
			s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Prewarm failed for exam")
			continue
		}
	}
	s.log.Info().Int("count", len(exams)).Msg("Exam paper caches warmed")
}

// QuestionsForExam returns the full question list, correct options included.
// Server-side only; students receive papers through GetExamPaper.
func (s *ExamService) QuestionsForExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	return s.questions.ListByExam(ctx, examID)
}

func (s *ExamService) buildPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	paper := &model.ExamPaper{
		ExamID: exam.ID,
		Title:  exam.Title,
		EndsAt: exam.EndsAt,
	}
	for _, q := range questions {
		paper.Questions = append(paper.Questions, model.QuestionForStudent{
			ID:           q.ID,
			OrderNum:     q.OrderNum,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			Topic:        q.Topic,
		})
	}
	return paper, nil
}
