package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/akademix/examroom-backend/internal/model"
	"github.com/akademix/examroom-backend/internal/repository"
)

// Registration errors.
var (
	ErrExamEnded        = errors.New("exam already ended")
	ErrAlreadyFinalized = errors.New("submission already finalized")
)

// RegistrationService admits students into an exam: it checks the access
// code, upserts the student identity, and rejects anyone whose submission is
// already finalized.
type RegistrationService struct {
	exams       *repository.ExamRepository
	students    *repository.StudentRepository
	submissions *repository.SubmissionRepository
	auth        *AuthService
	log         zerolog.Logger
}

// NewRegistrationService creates a new RegistrationService.
func NewRegistrationService(
	exams *repository.ExamRepository,
	students *repository.StudentRepository,
	submissions *repository.SubmissionRepository,
	auth *AuthService,
	log zerolog.Logger,
) *RegistrationService {
	return &RegistrationService{
		exams:       exams,
		students:    students,
		submissions: submissions,
		auth:        auth,
		log:         log.With().Str("component", "registration_service").Logger(),
	}
}

// VerifyAccess checks an exam access code without admitting the student.
func (s *RegistrationService) VerifyAccess(ctx context.Context, examID uuid.UUID, accessCode string) (*model.Exam, error) {
	exam, err := s.lookupOpenExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.CheckAccessCode(exam.AccessCodeHash, accessCode); err != nil {
		return nil, err
	}
	return exam, nil
}

// RegisterResult is the outcome of a successful registration.
type RegisterResult struct {
	Token   string         `json:"token"`
	Student *model.Student `json:"student"`
	Exam    *model.Exam    `json:"exam"`
}

// Register admits a student into an exam and issues a session token.
// Re-registering is allowed while the submission is open, so a student whose
// device died can rejoin; a finalized submission is rejected.
func (s *RegistrationService) Register(ctx context.Context, examID uuid.UUID, req *model.RegisterRequest) (*RegisterResult, error) {
	exam, err := s.lookupOpenExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.CheckAccessCode(exam.AccessCodeHash, req.AccessCode); err != nil {
		return nil, err
	}

	student := &model.Student{Name: req.Name, Email: req.Email}
	if err := s.students.Upsert(ctx, student); err != nil {
		return nil, fmt.Errorf("upsert student: %w", err)
	}

	existing, err := s.submissions.GetByExamAndStudent(ctx, examID, student.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check submission: %w", err)
	}
	if existing != nil && existing.Finalized() {
		return nil, ErrAlreadyFinalized
	}

	token, err := s.auth.GenerateSessionToken(student.ID, examID, student.Name)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.log.Info().Int("student_id", student.ID).Str("exam_id", examID.String()).Msg("Student registered")
	return &RegisterResult{Token: token, Student: student, Exam: exam}, nil
}

func (s *RegistrationService) lookupOpenExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if !time.Now().Before(exam.EndsAt) {
		return nil, ErrExamEnded
	}
	return exam, nil
}
