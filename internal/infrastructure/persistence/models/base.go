package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/haven/ledger/internal/domain/shared"
)

// AggregateModel holds the identity and lock columns shared by aggregate
// tables. Version is matched in the WHERE clause of every update.
type AggregateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// FromAggregate copies identity and version from a
func (m *AggregateModel) FromAggregate(a *shared.Aggregate) {
	m.ID = a.ID
	m.Version = a.Version
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
}
