package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Application struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey"`
	FullName   string            `gorm:"type:text;not null"`
	Email      string            `gorm:"type:text;not null;index"`
	Answers    datatypes.JSONMap `gorm:"type:jsonb"`
	CVKey      string            `gorm:"type:text"`
	CVFileName string            `gorm:"type:text"`
	CreatedAt  time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type ApprovalToken struct {
	ID               uuid.UUID   `gorm:"type:uuid;primaryKey"`
	ApplicationID    uuid.UUID   `gorm:"type:uuid;not null;index"`
	Token            string      `gorm:"type:text;uniqueIndex;not null"`
	IssuedAt         time.Time   `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	ExpiresAt        time.Time   `gorm:"type:timestamptz;not null"`
	AcceptedAt       *time.Time  `gorm:"type:timestamptz"`
	AcceptanceOrigin *string     `gorm:"type:text"`
	Application      Application `gorm:"foreignKey:ApplicationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Audit struct {
	ID      int64             `gorm:"type:bigserial;primaryKey"`
	Actor   string            `gorm:"type:text;not null"`
	Action  string            `gorm:"type:text;not null"`
	Obj     string            `gorm:"type:text"`
	Details datatypes.JSONMap `gorm:"type:jsonb"`
	At      time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (Audit) TableName() string { return "audit" }

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&Application{},
		&ApprovalToken{},
		&Audit{},
	); err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().CreateConstraint(&ApprovalToken{}, "Application")
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&Audit{},
		&ApprovalToken{},
		&Application{},
	)
}
