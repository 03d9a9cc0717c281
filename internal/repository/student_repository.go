package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akademix/examroom-backend/internal/model"
)

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// Upsert inserts a student or, when the email already exists, refreshes the
// name and returns the existing row. Registration is idempotent per email.
func (r *StudentRepository) Upsert(ctx context.Context, s *model.Student) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO students (name, email)
		 VALUES ($1, $2)
		 ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, created_at`,
		s.Name, s.Email,
	).Scan(&s.ID, &s.CreatedAt)
}

// GetByID retrieves a student by primary key.
func (r *StudentRepository) GetByID(ctx context.Context, id int) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, created_at FROM students WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Email, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}
