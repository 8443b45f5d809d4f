package models

import "time"

// DefaultManifestID 是未关联清单的文件使用的占位清单 ID。
const DefaultManifestID = "00000000-0000-0000-0000-000000000000"

// ProjectRow 是 ib_projects 表中的一行。
type ProjectRow struct {
	ID                    string    `gorm:"primaryKey;size:36"`
	UserID                string    `gorm:"index;size:64;not null"`
	Title                 string    `gorm:"size:255;not null"`
	Description           string    `gorm:"type:text"`
	KnowledgeContext      string    `gorm:"type:text"`
	KnowledgeInstructions string    `gorm:"type:text"`
	CreatedAt             time.Time `gorm:"precision:6"`
	UpdatedAt             time.Time `gorm:"index;precision:6"`
}

// ProjectFileRow 是 project_files 表中的一行，内容以字节形式保存。
// (project_id, path) 上的唯一索引保证同一项目内路径不重复。
type ProjectFileRow struct {
	ID         string    `gorm:"primaryKey;size:36"`
	ProjectID  string    `gorm:"size:36;not null;uniqueIndex:idx_project_path"`
	ManifestID string    `gorm:"size:36"`
	Path       string    `gorm:"size:512;not null;uniqueIndex:idx_project_path"`
	Type       string    `gorm:"size:64"`
	Content    []byte    `gorm:"type:longblob"`
	AIType     string    `gorm:"column:ai_type;size:32"`
	CreatedAt  time.Time `gorm:"precision:6"`
	UpdatedAt  time.Time `gorm:"precision:6"`
}

func (ProjectRow) TableName() string {
	return "ib_projects"
}

func (ProjectFileRow) TableName() string {
	return "project_files"
}
