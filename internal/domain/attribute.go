package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttributeTaxonomy is a shared attribute such as "Color"
type AttributeTaxonomy struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AttributeTerm is a value under a taxonomy such as "Red"
type AttributeTerm struct {
	ID         uuid.UUID `json:"id" db:"id"`
	TaxonomyID uuid.UUID `json:"taxonomy_id" db:"taxonomy_id"`
	Name       string    `json:"name" db:"name"`
	Slug       string    `json:"slug" db:"slug"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
