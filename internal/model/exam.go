package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam represents one timed examination with a fixed end time.
// All sessions for the exam share StartsAt/EndsAt; the countdown is derived
// from EndsAt, never from a per-student duration.
type Exam struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	AccessCodeHash string    `json:"-"`
	QuestionCount  int       `json:"question_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ExamPaper is the Redis-cached paper sent to students (no correct options).
type ExamPaper struct {
	ExamID    uuid.UUID            `json:"exam_id"`
	Title     string               `json:"title"`
	EndsAt    time.Time            `json:"ends_at"`
	Questions []QuestionForStudent `json:"questions"`
}

// VerifyAccessRequest is the payload for checking an exam access code.
type VerifyAccessRequest struct {
	AccessCode string `json:"access_code" binding:"required,min=4,max=32"`
}

// RegisterRequest is the payload for registering a student into an exam.
type RegisterRequest struct {
	Name       string `json:"name" binding:"required,min=2,max=120"`
	Email      string `json:"email" binding:"required,email"`
	AccessCode string `json:"access_code" binding:"required,min=4,max=32"`
}
