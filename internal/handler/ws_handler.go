package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/akademix/examroom-backend/internal/gateway"
	"github.com/akademix/examroom-backend/internal/middleware"
	"github.com/akademix/examroom-backend/internal/model"
	"github.com/akademix/examroom-backend/internal/service"
	"github.com/akademix/examroom-backend/internal/session"
	ws "github.com/akademix/examroom-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// wsConn serializes writes: the event pump and the read loop both answer on
// the same connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) writeError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = ws.WriteError(w.conn, msg)
}

// WSHandler handles the exam session stream.
type WSHandler struct {
	exams       *service.ExamService
	sessions    *session.Manager
	persistence *gateway.Persistence
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	exams *service.ExamService,
	sessions *session.Manager,
	persistence *gateway.Persistence,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		exams:       exams,
		sessions:    sessions,
		persistence: persistence,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/exams/:exam_id/stream
// Upgrades to WebSocket, attaches the student to their session controller,
// and relays actions in and ticks/events out.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}
	if claims.ExamID != examID.String() {
		c.JSON(http.StatusForbidden, gin.H{"error": "token is for a different exam"})
		return
	}

	exam, err := h.exams.GetExam(c.Request.Context(), examID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
		return
	}

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer rawConn.Close()
	conn := &wsConn{conn: rawConn}

	studentID := claims.StudentID
	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Logger()

	ctrl, err := h.sessions.GetOrStart(c.Request.Context(), studentID, examID, exam.EndsAt)
	if err != nil {
		conn.writeError(startErrorMessage(err))
		return
	}

	events, cancelSub := ctrl.Subscribe()
	defer cancelSub()

	pumpDone := make(chan struct{})
	go h.pumpEvents(conn, events, pumpDone)

	wsLog.Info().Msg("Student connected")
	h.readLoop(c.Request.Context(), conn, ctrl, wsLog, studentID, examID)

	cancelSub()
	<-pumpDone
	wsLog.Info().Msg("Student disconnected")
}

// pumpEvents relays controller events to the client until the subscription
// channel closes.
func (h *WSHandler) pumpEvents(conn *wsConn, events <-chan session.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		var payload interface{}
		switch ev.Type {
		case session.EventTick:
			payload = ws.TickResponse{Event: ws.EventTick, Remaining: ev.Remaining}
		case session.EventWarning:
			payload = ws.WarningResponse{Event: ws.EventWarning, Detail: ev.Detail}
		case session.EventViolation:
			payload = ws.ViolationResponse{Event: ws.EventViolation, Detail: ev.Detail}
		case session.EventSubmitted:
			payload = ws.SubmittedResponse{Event: ws.EventSubmitted, Score: ev.Score, Trigger: string(ev.Trigger)}
		case session.EventExitFullscreen:
			payload = ws.ExitFullscreenResponse{Event: ws.EventExitFullscreen}
		default:
			continue
		}
		if err := conn.write(payload); err != nil {
			return
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *wsConn, ctrl *session.Controller, wsLog zerolog.Logger, studentID int, examID uuid.UUID) {
	for {
		var raw json.RawMessage
		if err := ws.ReadJSON(conn.conn, &raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			conn.writeError("malformed message")
			continue
		}

		switch env.Action {
		case ws.ActionAnswer:
			h.handleAnswer(ctx, conn, ctrl, raw)
		case ws.ActionMarkReview:
			h.handleMarkReview(ctx, conn, ctrl, raw)
		case ws.ActionNavigate:
			h.handleNavigate(conn, ctrl, raw)
		case ws.ActionFullscreen:
			h.handleFullscreen(ctx, conn, ctrl, raw, studentID, examID)
		case ws.ActionVisibility:
			h.handleVisibility(ctx, conn, ctrl, raw, studentID, examID)
		case ws.ActionSubmit:
			if err := ctrl.Submit(ctx, session.TriggerManual); err != nil {
				conn.writeError(actionErrorMessage(err))
				continue
			}
		case ws.ActionPing:
			_ = conn.write(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			conn.writeError("unknown action: " + string(env.Action))
		}
	}
}

func (h *WSHandler) handleAnswer(ctx context.Context, conn *wsConn, ctrl *session.Controller, raw json.RawMessage) {
	var req ws.AnswerRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.QID == "" || req.Option == "" {
		conn.writeError("q_id and option are required")
		return
	}
	questionID, err := uuid.Parse(req.QID)
	if err != nil {
		conn.writeError("invalid q_id format")
		return
	}
	if err := ctrl.SelectAnswer(ctx, questionID, req.Option); err != nil {
		conn.writeError(actionErrorMessage(err))
		return
	}
	_ = conn.write(ws.AckResponse{Event: ws.EventAck, Action: ws.ActionAnswer})
}

func (h *WSHandler) handleMarkReview(ctx context.Context, conn *wsConn, ctrl *session.Controller, raw json.RawMessage) {
	var req ws.MarkReviewRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.QID == "" {
		conn.writeError("q_id is required")
		return
	}
	questionID, err := uuid.Parse(req.QID)
	if err != nil {
		conn.writeError("invalid q_id format")
		return
	}
	if err := ctrl.MarkForReview(ctx, questionID); err != nil {
		conn.writeError(actionErrorMessage(err))
		return
	}
	_ = conn.write(ws.AckResponse{Event: ws.EventAck, Action: ws.ActionMarkReview})
}

func (h *WSHandler) handleNavigate(conn *wsConn, ctrl *session.Controller, raw json.RawMessage) {
	var req ws.NavigateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		conn.writeError("index is required")
		return
	}
	index := ctrl.Navigate(req.Index)
	_ = conn.write(ws.AckResponse{Event: ws.EventAck, Action: ws.ActionNavigate, Index: index})
}

func (h *WSHandler) handleFullscreen(ctx context.Context, conn *wsConn, ctrl *session.Controller, raw json.RawMessage, studentID int, examID uuid.UUID) {
	var req ws.FullscreenRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		conn.writeError("active is required")
		return
	}
	if !req.Active {
		if err := h.persistence.RecordProctorEvent(ctx, studentID, examID, model.ProctorEventFullscreenExit, "full-screen exited"); err != nil {
			h.log.Warn().Err(err).Msg("Proctor event enqueue failed")
		}
	}
	ctrl.ReportFullscreen(ctx, req.Active)
	_ = conn.write(ws.AckResponse{Event: ws.EventAck, Action: ws.ActionFullscreen})
}

func (h *WSHandler) handleVisibility(ctx context.Context, conn *wsConn, ctrl *session.Controller, raw json.RawMessage, studentID int, examID uuid.UUID) {
	var req ws.VisibilityRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		conn.writeError("hidden is required")
		return
	}
	if req.Hidden {
		if err := h.persistence.RecordProctorEvent(ctx, studentID, examID, model.ProctorEventTabBlur, "tab visibility lost"); err != nil {
			h.log.Warn().Err(err).Msg("Proctor event enqueue failed")
		}
	}
	ctrl.ReportVisibility(req.Hidden)
	_ = conn.write(ws.AckResponse{Event: ws.EventAck, Action: ws.ActionVisibility})
}

func startErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrExamEnded):
		return "exam already ended"
	case errors.Is(err, session.ErrNoQuestions):
		return "exam has no questions"
	case errors.Is(err, session.ErrAlreadySubmitted):
		return "submission already finalized"
	default:
		return "session could not be started"
	}
}

func actionErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionNotReady):
		return "session is still loading, retry"
	case errors.Is(err, session.ErrSessionClosed):
		return "session is closed"
	case errors.Is(err, session.ErrUnknownQuestion):
		return "unknown question"
	default:
		return "action failed"
	}
}
