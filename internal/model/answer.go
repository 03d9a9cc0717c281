package model

import (
	"strings"

	"github.com/google/uuid"
)

// SelectionNone is the sentinel for an unanswered question. It is distinct
// from every valid option label so swept records are unambiguous in storage.
const SelectionNone = "-"

// AnswerStatus enumerates the lifecycle of a per-question answer record.
type AnswerStatus string

const (
	AnswerStatusAnswered        AnswerStatus = "ANSWERED"
	AnswerStatusNotAnswered     AnswerStatus = "NOT_ANSWERED"
	AnswerStatusMarkedForReview AnswerStatus = "MARKED_FOR_REVIEW"
)

// AnswerRecord is the in-memory (and durably mirrored) answer for one
// question within one submission. Keyed uniquely by (submission, question);
// the last write for a key wins.
type AnswerRecord struct {
	QuestionID  uuid.UUID    `json:"question_id"`
	Selected    string       `json:"selected"`
	Status      AnswerStatus `json:"status"`
	TimeSpentMS int64        `json:"time_spent_ms"`
	Correct     bool         `json:"correct"`
}

// SameOption compares two option labels case-insensitively.
// The sentinel never matches a real label.
func SameOption(a, b string) bool {
	if a == SelectionNone || b == SelectionNone {
		return false
	}
	return strings.EqualFold(a, b)
}
