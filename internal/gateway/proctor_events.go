package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akademix/examroom-backend/internal/config"
	"github.com/akademix/examroom-backend/internal/model"
)

// ProctorEventPayload is the queue message for one proctoring event.
type ProctorEventPayload struct {
	StudentID int    `json:"student_id"`
	ExamID    string `json:"exam_id"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail"`
	Timestamp int64  `json:"timestamp"`
}

// RecordProctorEvent enqueues a proctoring event for the audit trail.
// Best-effort: the event stream must never block a live session.
func (p *Persistence) RecordProctorEvent(ctx context.Context, studentID int, examID uuid.UUID, kind model.ProctorEventKind, detail string) error {
	payload := ProctorEventPayload{
		StudentID: studentID,
		ExamID:    examID.String(),
		Kind:      string(kind),
		Detail:    detail,
		Timestamp: time.Now().Unix(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal proctor event: %w", err)
	}
	if err := p.rdb.RPush(ctx, config.WorkerKey.PersistProctorEventsQueue, data).Err(); err != nil {
		return fmt.Errorf("enqueue proctor event: %w", err)
	}
	return nil
}
