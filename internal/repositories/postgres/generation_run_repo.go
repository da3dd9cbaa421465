package postgres

import (
	"context"
	"time"

	"github.com/yoockh/careerpath/internal/models"
	"gorm.io/gorm"
)

// GenerationRunRepository appends audit rows. Rows are never updated.
type GenerationRunRepository interface {
	Insert(ctx context.Context, run *models.GenerationRun) error
}

type generationRunRepo struct {
	db *gorm.DB
}

func NewGenerationRunRepo(db *gorm.DB) GenerationRunRepository {
	return &generationRunRepo{db: db}
}

func (r *generationRunRepo) Insert(ctx context.Context, run *models.GenerationRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// Migrate creates or updates the generation_runs table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.GenerationRun{})
}
