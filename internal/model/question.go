package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Question represents a single multiple-choice exam question.
// Options is a JSON object mapping the four labels (A-D) to display text.
// Questions are immutable once loaded into a session.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	ExamID        uuid.UUID       `json:"exam_id"`
	OrderNum      int             `json:"order_num"`
	QuestionText  string          `json:"question_text"`
	Options       json.RawMessage `json:"options"`
	CorrectOption string          `json:"correct_option"`
	Topic         string          `json:"topic"`
}

// QuestionForStudent is a question without the correct option, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID       `json:"id"`
	OrderNum     int             `json:"order_num"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options"`
	Topic        string          `json:"topic"`
}
