package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// GenerationRun is an audit row for one pipeline execution. It never holds
// roadmap contents.
type GenerationRun struct {
	ID          string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID      string         `gorm:"column:user_id;type:text;index" json:"user_id"`
	TargetRole  string         `gorm:"column:target_role;type:text" json:"target_role"`
	Status      string         `gorm:"column:status;type:text;index" json:"status"` // completed|failed
	FailedStage string         `gorm:"column:failed_stage;type:text" json:"failed_stage,omitempty"`
	ErrorKind   string         `gorm:"column:error_kind;type:text" json:"error_kind,omitempty"`
	Stages      pq.StringArray `gorm:"column:stages;type:text[]" json:"stages"`
	ItemCount   int            `gorm:"column:item_count;type:integer" json:"item_count"`
	Model       string         `gorm:"column:model;type:text" json:"model"`
	ElapsedMS   int64          `gorm:"column:elapsed_ms;type:bigint" json:"elapsed_ms"`
	Metadata    datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt   time.Time      `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (GenerationRun) TableName() string { return "generation_runs" }
