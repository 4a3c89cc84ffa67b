package models

import "time"

// FileTag links one FileRecord to one Tag. The (FileID, TagID) pair is
// unique; attaching an existing pair is a no-op at the service layer.
// Confidence ranks auto-suggested tags against explicit ones (explicit
// attachments default to 1.0).
//
// It does NOT use BaseModel because association rows are hard-deleted on
// detach; their history lives in the tags' usage counters and the change log.
type FileTag struct {
	ID         uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	FileID     uint    `json:"fileID" gorm:"not null;uniqueIndex:ux_file_tags_pair;index"`
	TagID      uint    `json:"tagID" gorm:"not null;uniqueIndex:ux_file_tags_pair;index"`
	Confidence float64 `json:"confidence" gorm:"not null;default:1.0"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	File FileRecord `json:"-" gorm:"foreignKey:FileID;references:ID"`
	Tag  Tag        `json:"-" gorm:"foreignKey:TagID;references:ID"`
}

func (FileTag) TableName() string {
	return "file_tags"
}
