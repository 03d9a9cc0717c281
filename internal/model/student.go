package model

import "time"

// Student is a registered exam taker. Registration upserts by email, so a
// student re-registering on a second device resolves to the same row.
type Student struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
