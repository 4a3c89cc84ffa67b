package models

const (
	// Defaults applied when a tag is created with just a name.
	DefaultTagColor     = "#FFFF00"
	DefaultTagFontColor = "#000000"
)

// Tag is a named, colored, optionally hierarchical label. ParentID forms a
// tree; cycle prevention on reparenting is done in the tag service, not by
// the storage engine. (Name, ParentID) is unique among live tags only, so
// the same name may recur under different parents.
type Tag struct {
	BaseModel
	Name       string  `json:"name" gorm:"type:varchar(255);not null;index"`
	Color      *string `json:"color,omitempty" gorm:"type:varchar(7)"`
	FontColor  *string `json:"fontColor,omitempty" gorm:"type:varchar(7)"`
	ParentID   *uint   `json:"parentID,omitempty" gorm:"index"`
	UsageCount int     `json:"usageCount" gorm:"not null;default:0"`

	Parent   *Tag  `json:"-" gorm:"foreignKey:ParentID"`
	Children []Tag `json:"-" gorm:"foreignKey:ParentID"`
}

func (Tag) TableName() string {
	return "tags"
}
