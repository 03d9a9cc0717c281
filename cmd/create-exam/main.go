package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/akademix/examroom-backend/internal/config"
	"github.com/akademix/examroom-backend/internal/database"
	"github.com/akademix/examroom-backend/internal/logger"
	"github.com/akademix/examroom-backend/internal/model"
	"github.com/akademix/examroom-backend/internal/repository"
	"github.com/akademix/examroom-backend/internal/service"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	examRepo := repository.NewExamRepository(pool)
	authService := service.NewAuthService(cfg)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Exam ===")

	fmt.Print("Enter Title: ")
	title, _ := reader.ReadString('\n')
	title = strings.TrimSpace(title)
	if title == "" {
		fmt.Println("Error: Title is required")
		return
	}

	fmt.Print("Enter Start (RFC3339, e.g. 2026-09-01T09:00:00+07:00): ")
	startsStr, _ := reader.ReadString('\n')
	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(startsStr))
	if err != nil {
		fmt.Println("Error: invalid start time:", err)
		return
	}

	fmt.Print("Enter End (RFC3339): ")
	endsStr, _ := reader.ReadString('\n')
	endsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(endsStr))
	if err != nil {
		fmt.Println("Error: invalid end time:", err)
		return
	}
	if !endsAt.After(startsAt) {
		fmt.Println("Error: end time must be after start time")
		return
	}

	fmt.Print("Enter Access Code: ")
	byteCode, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading access code")
		return
	}
	accessCode := string(byteCode)
	fmt.Println() // Newline after hidden input
	if len(accessCode) < 4 {
		fmt.Println("Error: Access code must be at least 4 characters")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hash, err := authService.HashAccessCode(accessCode)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash access code")
	}

	exam := &model.Exam{
		Title:          title,
		StartsAt:       startsAt,
		EndsAt:         endsAt,
		AccessCodeHash: hash,
	}
	if err := examRepo.Create(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}

	fmt.Println("Exam created successfully")
	fmt.Println("ID:     ", exam.ID)
	fmt.Println("Title:  ", exam.Title)
	fmt.Println("Window: ", exam.StartsAt.Format(time.RFC3339), "->", exam.EndsAt.Format(time.RFC3339))
}
