package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/akademix/examroom-backend/internal/config"
	"github.com/akademix/examroom-backend/internal/service"
)

func newTestAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
	})
}

func TestAccessCodeRoundTrip(t *testing.T) {
	auth := newTestAuth()

	hash, err := auth.HashAccessCode("ROOM-42")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if err := auth.CheckAccessCode(hash, "ROOM-42"); err != nil {
		t.Fatalf("correct code rejected: %v", err)
	}
	if err := auth.CheckAccessCode(hash, "room-43"); err != service.ErrInvalidAccessCode {
		t.Fatalf("expected ErrInvalidAccessCode, got %v", err)
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	auth := newTestAuth()
	examID := uuid.New()

	token, err := auth.GenerateSessionToken(42, examID, "Ada")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.StudentID != 42 || claims.ExamID != examID.String() || claims.Name != "Ada" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	auth := newTestAuth()
	other := service.NewAuthService(&config.Config{
		JWTSecret: "different-secret",
		JWTExpiry: time.Hour,
	})

	token, err := other.GenerateSessionToken(1, uuid.New(), "X")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := auth.ValidateToken(token); err == nil {
		t.Fatal("expected foreign-signature token to be rejected")
	}
}
