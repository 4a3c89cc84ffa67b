package models

type FileType string

const (
	FileTypeFile   FileType = "file"
	FileTypeFolder FileType = "folder"
)

// FileRecord is one file or folder the user has ever tagged. The current
// path is the only identity the filesystem gives us; uniqueness among live
// rows is enforced by a partial index created in the migrations, not by a
// plain unique column, because retired rows may share the path.
type FileRecord struct {
	BaseModel
	CurrentPath string   `json:"currentPath" gorm:"type:text;not null;index"`
	FileType    FileType `json:"fileType" gorm:"type:varchar(10);not null;default:'file'"`
	Size        int64    `json:"size" gorm:"not null;default:0"`

	Associations []FileTag `json:"-" gorm:"foreignKey:FileID"`
	Tags         []Tag     `json:"tags,omitempty" gorm:"many2many:file_tags;joinForeignKey:FileID;joinReferences:TagID"`
}

func (FileRecord) TableName() string {
	return "file_records"
}

// IsFolder reports whether the record tracks a directory.
func (f *FileRecord) IsFolder() bool {
	return f.FileType == FileTypeFolder
}
