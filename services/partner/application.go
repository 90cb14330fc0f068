package partner

import (
	"time"

	"github.com/google/uuid"
)

// Application models a partner program application submitted through the wizard.
type Application struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	FullName   string         `json:"full_name" db:"full_name"`
	Email      string         `json:"email" db:"email"`
	Answers    map[string]any `json:"answers" db:"answers"`
	CVKey      string         `json:"cv_key" db:"cv_key"`
	CVFileName string         `json:"cv_file_name" db:"cv_file_name"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}
