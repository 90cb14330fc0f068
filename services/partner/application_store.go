package partner

import (
	"context"

	"github.com/google/uuid"
)

// ApplicationStore persists partner applications.
type ApplicationStore interface {
	// Create stores a new application and fills in its generated fields.
	Create(ctx context.Context, app *Application) error
	// GetByID returns the application or ErrApplicationNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (Application, error)
	// List returns all applications, newest first.
	List(ctx context.Context) ([]Application, error)
}
