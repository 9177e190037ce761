package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// IngestionRun records one ingestion of one file
type IngestionRun struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	FileName          string     `gorm:"type:varchar(500);not null" json:"file_name"`
	FilePath          string     `gorm:"type:text" json:"file_path"`
	FileHash          string     `gorm:"type:varchar(64);index:idx_ingestion_runs_hash" json:"file_hash"`
	Family            string     `gorm:"type:varchar(32);not null" json:"family"`
	Collection        string     `gorm:"type:varchar(255);not null;index:idx_ingestion_runs_collection" json:"collection"`
	Status            string     `gorm:"type:varchar(50);not null;default:'running'" json:"status"`
	ParsedRecords     int        `gorm:"default:0" json:"parsed_records"`
	SkippedRows       int        `gorm:"default:0" json:"skipped_rows"`
	InsertedRecords   int        `gorm:"default:0" json:"inserted_records"`
	DuplicatesRemoved int        `gorm:"default:0" json:"duplicates_removed"`
	Error             string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (IngestionRun) TableName() string {
	return "ingestion_runs"
}

// BeforeCreate GORM hook - called before creating a record
func (r *IngestionRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RunStatusRunning
	}
	return nil
}

// ValidRunStatuses returns list of valid run statuses
func ValidRunStatuses() []string {
	return []string{
		RunStatusRunning,
		RunStatusCompleted,
		RunStatusFailed,
	}
}

// IsValidRunStatus checks if a status is valid
func IsValidRunStatus(status string) bool {
	for _, s := range ValidRunStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// Complete marks the run finished with the given outcome
func (r *IngestionRun) Complete(err error) {
	now := time.Now().UTC()
	r.CompletedAt = &now
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunStatusCompleted
}
