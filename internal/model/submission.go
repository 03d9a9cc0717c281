package model

import (
	"time"

	"github.com/google/uuid"
)

// Submission is one student's attempt at one exam. Created at session start
// with a zero score, then mutated exactly once at finalization. A submission
// with a non-null SubmittedAt is immutable.
type Submission struct {
	ID               uuid.UUID  `json:"id"`
	StudentID        int        `json:"student_id"`
	ExamID           uuid.UUID  `json:"exam_id"`
	TotalQuestions   int        `json:"total_questions"`
	Score            int        `json:"score"`
	TimeTakenMinutes int        `json:"time_taken_minutes"`
	StartedAt        time.Time  `json:"started_at"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
}

// Finalized reports whether the submission has been committed.
func (s *Submission) Finalized() bool {
	return s.SubmittedAt != nil
}
