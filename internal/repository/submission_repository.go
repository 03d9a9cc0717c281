package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akademix/examroom-backend/internal/model"
)

// ErrAlreadyFinalized is returned when a finalize update matches no row,
// meaning the submission was already committed (or never existed).
var ErrAlreadyFinalized = errors.New("submission already finalized")

// SubmissionRepository handles submission and answer data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// CreateOrGet inserts a submission for (student, exam) or returns the
// existing one. Concurrent registrations from two devices resolve to the
// same row.
func (r *SubmissionRepository) CreateOrGet(ctx context.Context, studentID int, examID uuid.UUID, totalQuestions int) (*model.Submission, error) {
	s := &model.Submission{
		StudentID:      studentID,
		ExamID:         examID,
		TotalQuestions: totalQuestions,
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO submissions (student_id, exam_id, total_questions, score, time_taken_minutes)
		 VALUES ($1, $2, $3, 0, 0)
		 ON CONFLICT (student_id, exam_id) DO UPDATE SET student_id = EXCLUDED.student_id
		 RETURNING id, total_questions, score, time_taken_minutes, started_at, submitted_at`,
		studentID, examID, totalQuestions,
	).Scan(&s.ID, &s.TotalQuestions, &s.Score, &s.TimeTakenMinutes, &s.StartedAt, &s.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByExamAndStudent retrieves the submission for one (exam, student) pair.
func (r *SubmissionRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.Submission, error) {
	s := &model.Submission{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_id, exam_id, total_questions, score, time_taken_minutes, started_at, submitted_at
		 FROM submissions
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&s.ID, &s.StudentID, &s.ExamID, &s.TotalQuestions, &s.Score, &s.TimeTakenMinutes, &s.StartedAt, &s.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Finalize commits the score, time taken, and submitted-at timestamp in one
// update. The submitted_at IS NULL guard makes a committed submission
// immutable: a second finalize matches nothing and reports ErrAlreadyFinalized.
func (r *SubmissionRepository) Finalize(ctx context.Context, submissionID uuid.UUID, score, timeTakenMinutes int, submittedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE submissions
		 SET score = $1, time_taken_minutes = $2, submitted_at = $3
		 WHERE id = $4 AND submitted_at IS NULL`,
		score, timeTakenMinutes, submittedAt, submissionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyFinalized
	}
	return nil
}

// UpsertAnswer creates or overwrites the answer record for one question.
// The (submission_id, question_id) key makes repeated writes safe to retry.
func (r *SubmissionRepository) UpsertAnswer(ctx context.Context, submissionID, questionID uuid.UUID, selected string, status model.AnswerStatus, correct bool, timeSpentSec int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO submission_answers (submission_id, question_id, selected, status, is_correct, time_spent_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (submission_id, question_id) DO UPDATE
		 SET selected = EXCLUDED.selected,
		     status = EXCLUDED.status,
		     is_correct = EXCLUDED.is_correct,
		     time_spent_seconds = EXCLUDED.time_spent_seconds,
		     updated_at = NOW()`,
		submissionID, questionID, selected, status, correct, timeSpentSec,
	)
	return err
}

// ListAnswers returns all durable answer records for a submission.
func (r *SubmissionRepository) ListAnswers(ctx context.Context, submissionID uuid.UUID) ([]model.AnswerRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, selected, status, is_correct, time_spent_seconds
		 FROM submission_answers
		 WHERE submission_id = $1`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.AnswerRecord
	for rows.Next() {
		var rec model.AnswerRecord
		var seconds int
		if err := rows.Scan(&rec.QuestionID, &rec.Selected, &rec.Status, &rec.Correct, &seconds); err != nil {
			return nil, err
		}
		rec.TimeSpentMS = int64(seconds) * 1000
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountAnswers returns the number of durable answer records for a submission.
func (r *SubmissionRepository) CountAnswers(ctx context.Context, submissionID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submission_answers WHERE submission_id = $1`, submissionID,
	).Scan(&n)
	return n, err
}
