// Package models holds fields shared by every model
package models

import (
	"time"

	"github.com/google/uuid"
)

// BaseModel uses a UUID primary key
type BaseModel struct {
	ID string `gorm:"column:id;primaryKey;type:varchar(36)" json:"id,omitempty"`
}

// EnsureID assigns a fresh UUID when the row has none
func (m *BaseModel) EnsureID() {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
}

// CommonTimestampsField adds created_at and updated_at
type CommonTimestampsField struct {
	CreatedAt time.Time `gorm:"column:created_at;index;" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;" json:"updatedAt"`
}
