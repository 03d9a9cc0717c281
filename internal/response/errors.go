package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidAccessCode ErrCode = "INVALID_ACCESS_CODE"
	ErrTokenRequired     ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid      ErrCode = "TOKEN_INVALID"
	ErrTokenExpired      ErrCode = "TOKEN_EXPIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrExamEnded        ErrCode = "EXAM_ENDED"
	ErrExamNoQuestions  ErrCode = "EXAM_NO_QUESTIONS"
	ErrAlreadySubmitted ErrCode = "ALREADY_SUBMITTED"
	ErrSessionNotReady  ErrCode = "SESSION_NOT_READY"
	ErrSessionClosed    ErrCode = "SESSION_CLOSED"
	ErrUnknownQuestion  ErrCode = "UNKNOWN_QUESTION"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidAccessCode:
		return "The exam access code is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."
	case ErrConflict:
		return "The resource already exists."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrExamEnded:
		return "This exam has already ended."
	case ErrExamNoQuestions:
		return "This exam has no questions."
	case ErrAlreadySubmitted:
		return "Your submission for this exam is already finalized."
	case ErrSessionNotReady:
		return "Your session is still loading. Please retry."
	case ErrSessionClosed:
		return "Your session is closed and no longer accepts answers."
	case ErrUnknownQuestion:
		return "The question does not belong to this exam."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
