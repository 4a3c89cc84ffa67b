package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel holds the surrogate key, timestamps and soft-delete marker shared
// by every mutable table. Rows are never hard-deleted; DeletedAt non-null
// means the row is retired but kept for history.
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
