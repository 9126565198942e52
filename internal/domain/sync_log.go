package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit log vocabulary
const (
	EntityTypeProduct = "product"

	SyncActionImport = "import"
	SyncActionSync   = "sync"

	SyncStatusSuccess = "success"
	SyncStatusFailure = "failure"
)

// SyncLog is one audit row per import or sync attempt
type SyncLog struct {
	ID         uuid.UUID `json:"id" db:"id"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	Action     string    `json:"action" db:"action"`
	Status     string    `json:"status" db:"status"`
	Message    string    `json:"message" db:"message"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
