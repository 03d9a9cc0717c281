package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/akademix/examroom-backend/internal/gateway"
	"github.com/akademix/examroom-backend/internal/middleware"
	"github.com/akademix/examroom-backend/internal/model"
	"github.com/akademix/examroom-backend/internal/repository"
	"github.com/akademix/examroom-backend/internal/response"
	"github.com/akademix/examroom-backend/internal/service"
	"github.com/akademix/examroom-backend/internal/session"
	"github.com/akademix/examroom-backend/internal/validator"
)

// PortalHandler serves the student-facing REST surface: access verification,
// registration, the exam paper, and session state.
type PortalHandler struct {
	registration *service.RegistrationService
	exams        *service.ExamService
	submissions  *repository.SubmissionRepository
	store        *gateway.Persistence
	sessions     *session.Manager
	log          zerolog.Logger
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(
	registration *service.RegistrationService,
	exams *service.ExamService,
	submissions *repository.SubmissionRepository,
	store *gateway.Persistence,
	sessions *session.Manager,
	log zerolog.Logger,
) *PortalHandler {
	return &PortalHandler{
		registration: registration,
		exams:        exams,
		submissions:  submissions,
		store:        store,
		sessions:     sessions,
		log:          log.With().Str("component", "portal_handler").Logger(),
	}
}

// VerifyAccess godoc
// POST /api/v1/exams/:exam_id/verify
// Checks an access code without admitting the student.
func (h *PortalHandler) VerifyAccess(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req model.VerifyAccessRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.registration.VerifyAccess(c.Request.Context(), examID, req.AccessCode)
	if err != nil {
		failRegistration(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"exam_id":  exam.ID,
		"title":    exam.Title,
		"ends_at":  exam.EndsAt,
		"verified": true,
	})
}

// Register godoc
// POST /api/v1/exams/:exam_id/register
// Admits a student into the exam and issues a session token.
func (h *PortalHandler) Register(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.registration.Register(c.Request.Context(), examID, &req)
	if err != nil {
		failRegistration(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// GetPaper godoc
// GET /api/v1/exams/:exam_id/paper
// Returns the cached exam paper without correct options.
func (h *PortalHandler) GetPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}
	if claims == nil || claims.ExamID != examID.String() {
		response.Fail(c, http.StatusForbidden, response.ErrTokenInvalid)
		return
	}

	paper, err := h.exams.GetExamPaper(c.Request.Context(), examID)
	if err != nil {
		if errors.Is(err, service.ErrExamNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Get paper failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// GetState godoc
// GET /api/v1/exams/:exam_id/state
// Returns the caller's session state: live controller data when the session
// is running, otherwise the durable submission row.
func (h *PortalHandler) GetState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseExamID(c)
	if !ok {
		return
	}
	if claims == nil || claims.ExamID != examID.String() {
		response.Fail(c, http.StatusForbidden, response.ErrTokenInvalid)
		return
	}

	if ctrl, live := h.sessions.Get(claims.StudentID, examID); live {
		answers := ctrl.Answers()
		summary := make(map[string]gin.H, len(answers))
		for qid, rec := range answers {
			summary[qid.String()] = gin.H{
				"selected": rec.Selected,
				"status":   rec.Status,
			}
		}
		response.Success(c, http.StatusOK, gin.H{
			"state":             ctrl.State(),
			"remaining_seconds": ctrl.Remaining(),
			"answers":           summary,
		})
		return
	}

	sub, err := h.submissions.GetByExamAndStudent(c.Request.Context(), examID, claims.StudentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Get submission failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	state := session.StateLoading
	if sub.Finalized() {
		state = session.StateCompleted
	}
	payload := gin.H{
		"state":      state,
		"submission": sub,
	}
	// No live controller but the submission is still open: surface the
	// saved answers so a reconnecting client can restore its sheet.
	if !sub.Finalized() {
		if records, err := h.store.LoadAnswers(c.Request.Context(), sub.ID); err == nil {
			summary := make(map[string]gin.H, len(records))
			for _, rec := range records {
				summary[rec.QuestionID.String()] = gin.H{
					"selected": rec.Selected,
					"status":   rec.Status,
				}
			}
			payload["answers"] = summary
		} else {
			h.log.Warn().Err(err).Msg("Saved answers read failed")
		}
	}
	response.Success(c, http.StatusOK, payload)
}

func parseExamID(c *gin.Context) (uuid.UUID, bool) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return examID, true
}

func failRegistration(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrExamEnded):
		response.Fail(c, http.StatusConflict, response.ErrExamEnded)
	case errors.Is(err, service.ErrInvalidAccessCode):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidAccessCode)
	case errors.Is(err, service.ErrAlreadyFinalized):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
