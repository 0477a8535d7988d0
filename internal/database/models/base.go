package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by every table. Rows are hard-deleted; there is no
// soft-delete column.
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	return assignID(&b.ID)
}

// assignID fills a zero id with a time-ordered UUIDv7, keeping inserts
// clustered at the end of the primary key index.
func assignID(id *uuid.UUID) error {
	if *id != uuid.Nil {
		return nil
	}
	v7, err := uuid.NewV7()
	if err != nil {
		return err
	}
	*id = v7
	return nil
}

// All returns every model in migration order.
func All() []interface{} {
	return []interface{}{
		&Agent{},
		&AgentSite{},
		&User{},
		&Lead{},
		&LeadNote{},
	}
}
