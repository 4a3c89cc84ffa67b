package models

import "time"

type ChangeType string

const (
	ChangeTypeMove   ChangeType = "move"
	ChangeTypeCopy   ChangeType = "copy"
	ChangeTypeDelete ChangeType = "delete"
)

type ChangeStatus string

const (
	// ChangeStatusApplied means a tracked record was reconciled.
	ChangeStatusApplied ChangeStatus = "applied"
	// ChangeStatusUntracked means the path had no live record; the event was
	// observed but nothing needed reconciling.
	ChangeStatusUntracked ChangeStatus = "untracked"
)

// ChangeHistory is an append-only log of filesystem changes the engine was
// told about. It does NOT use BaseModel because history rows are never
// updated or soft-deleted.
type ChangeHistory struct {
	ID         uint         `json:"id" gorm:"primaryKey;autoIncrement"`
	OldPath    string       `json:"oldPath" gorm:"type:text;not null"`
	NewPath    *string      `json:"newPath,omitempty" gorm:"type:text"`
	ChangeType ChangeType   `json:"changeType" gorm:"type:varchar(10);not null;index"`
	Status     ChangeStatus `json:"status" gorm:"type:varchar(10);not null"`
	CreatedAt  time.Time    `json:"createdAt"`
}

func (ChangeHistory) TableName() string {
	return "change_history"
}
