package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImageAsset is a stored image deduplicated by fingerprint
type ImageAsset struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Fingerprint     string    `json:"fingerprint" db:"fingerprint"`
	SourceURL       string    `json:"source_url" db:"source_url"`
	StorageLocation string    `json:"storage_location" db:"storage_location"`
	ContentType     string    `json:"content_type" db:"content_type"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
