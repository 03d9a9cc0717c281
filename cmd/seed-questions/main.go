package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/akademix/examroom-backend/internal/config"
	"github.com/akademix/examroom-backend/internal/database"
	"github.com/akademix/examroom-backend/internal/logger"
	"github.com/akademix/examroom-backend/internal/model"
	"github.com/akademix/examroom-backend/internal/repository"
)

// seedQuestion is one entry in the JSON seed file.
type seedQuestion struct {
	QuestionText  string            `json:"question_text"`
	Options       map[string]string `json:"options"`
	CorrectOption string            `json:"correct_option"`
	Topic         string            `json:"topic"`
}

func main() {
	var examIDStr, file string
	flag.StringVar(&examIDStr, "exam", "", "Exam UUID to attach questions to")
	flag.StringVar(&file, "file", "questions.json", "Path to the JSON question file")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	examID, err := uuid.Parse(examIDStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -exam UUID")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Failed to read question file")
	}

	var seeds []seedQuestion
	if err := json.Unmarshal(data, &seeds); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse question file")
	}
	if len(seeds) == 0 {
		log.Fatal().Msg("Question file is empty")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)

	fmt.Printf("=== Seeding %d Questions ===\n", len(seeds))

	for i, seed := range seeds {
		if seed.CorrectOption == "" {
			log.Fatal().Int("index", i).Msg("Question is missing correct_option")
		}
		if _, ok := seed.Options[seed.CorrectOption]; !ok {
			log.Fatal().Int("index", i).Str("correct", seed.CorrectOption).Msg("correct_option is not one of the options")
		}

		options, err := json.Marshal(seed.Options)
		if err != nil {
			log.Fatal().Err(err).Int("index", i).Msg("Failed to encode options")
		}

		q := &model.Question{
			ExamID:        examID,
			OrderNum:      i + 1,
			QuestionText:  seed.QuestionText,
			Options:       options,
			CorrectOption: seed.CorrectOption,
			Topic:         seed.Topic,
		}
		if err := questionRepo.Create(ctx, q); err != nil {
			log.Fatal().Err(err).Int("index", i).Msg("Failed to insert question")
		}
	}

	fmt.Println("Seeding complete")
}
