package partner

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type applicationModel struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey"`
	FullName   string            `gorm:"not null"`
	Email      string            `gorm:"index;not null"`
	Answers    datatypes.JSONMap `gorm:"type:jsonb"`
	CVKey      string
	CVFileName string
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (applicationModel) TableName() string { return "applications" }

func (m applicationModel) toAPI() Application {
	return Application{
		ID:         m.ID,
		FullName:   m.FullName,
		Email:      m.Email,
		Answers:    map[string]any(m.Answers),
		CVKey:      m.CVKey,
		CVFileName: m.CVFileName,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func modelFromApplication(a Application) applicationModel {
	return applicationModel{
		ID:         a.ID,
		FullName:   a.FullName,
		Email:      a.Email,
		Answers:    datatypes.JSONMap(a.Answers),
		CVKey:      a.CVKey,
		CVFileName: a.CVFileName,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}
