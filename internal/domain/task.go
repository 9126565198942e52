package domain

import "github.com/google/uuid"

// Background task names
const (
	TaskImport = "import"
	TaskSync   = "sync"
)

// Task is a deferred import or sync of one Printify product
type Task struct {
	Name       string     `json:"name"`
	ExternalID string     `json:"external_id"`
	LocalID    *uuid.UUID `json:"local_id,omitempty"`
}
