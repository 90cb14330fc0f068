package partner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"partnerd/pkg/db"
)

type gormApplicationStore struct {
	orm *gorm.DB
}

// NewGormApplicationStore returns an ApplicationStore backed by the ORM
// handle.
func NewGormApplicationStore(orm *gorm.DB) ApplicationStore {
	return &gormApplicationStore{orm: orm}
}

func (s *gormApplicationStore) Create(ctx context.Context, app *Application) error {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	m := modelFromApplication(*app)
	if err := s.orm.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	*app = m.toAPI()
	return nil
}

func (s *gormApplicationStore) GetByID(ctx context.Context, id uuid.UUID) (Application, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var m applicationModel
	err := s.orm.WithContext(ctx).First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Application{}, ErrApplicationNotFound
		}
		return Application{}, fmt.Errorf("get application: %w", err)
	}
	return m.toAPI(), nil
}

func (s *gormApplicationStore) List(ctx context.Context) ([]Application, error) {
	ctx, cancel := db.WithTimeout(ctx)
	defer cancel()

	var models []applicationModel
	if err := s.orm.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	out := make([]Application, 0, len(models))
	for _, m := range models {
		out = append(out, m.toAPI())
	}
	return out, nil
}
