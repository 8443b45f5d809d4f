package models

import (
	"encoding/json"
	"time"
)

// DirectoryType 是目录记录使用的类型标签。
const DirectoryType = "directory"

// GeneratedAIType 是 project_files.ai_type 列写入的来源标记。
const GeneratedAIType = "generated"

// File 代表项目中的一个文件或目录记录。
// Path 在同一个项目内唯一，目录和文件共享同一个路径命名空间。
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`                  // 路径的最后一段，用于展示
	Path        string `json:"path"`                  // 以 "/" 分隔的位置
	Type        string `json:"type"`                  // 内容类型标签，例如 "typescript"、"markdown"、"directory"
	IsDirectory bool   `json:"isDirectory,omitempty"` // 为 true 时没有内容
	Content     string `json:"content,omitempty"`
}

// IsDir 判断记录是否为目录，类型标签为 "directory" 的记录同样视为目录。
func (f File) IsDir() bool {
	return f.IsDirectory || f.Type == DirectoryType
}

// ProjectField 是可以单独持久化的自由文本字段名。
type ProjectField string

const (
	FieldKnowledgeContext      ProjectField = "knowledge_context"
	FieldKnowledgeInstructions ProjectField = "knowledge_instructions"
)

// Valid 判断字段名是否在允许单独更新的字段列表中。
func (f ProjectField) Valid() bool {
	return f == FieldKnowledgeContext || f == FieldKnowledgeInstructions
}

// Project 是一组文件加上用于指导后续生成的知识字段。
type Project struct {
	ID                    string    `json:"id"`
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	Files                 []File    `json:"files"`
	KnowledgeContext      string    `json:"knowledge_context"`
	KnowledgeInstructions string    `json:"knowledge_instructions"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// projectJSON 在输出时额外带上客户端别名字段，别名始终取自同一个字段。
type projectJSON struct {
	ID                    string    `json:"id"`
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	Files                 []File    `json:"files"`
	KnowledgeContext      string    `json:"knowledge_context"`
	KnowledgeInstructions string    `json:"knowledge_instructions"`
	CustomContext         string    `json:"customContext"`
	CustomInstructions    string    `json:"customInstructions"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// MarshalJSON 实现 json.Marshaler。
func (p Project) MarshalJSON() ([]byte, error) {
	files := p.Files
	if files == nil {
		files = []File{}
	}
	return json.Marshal(projectJSON{
		ID:                    p.ID,
		Title:                 p.Title,
		Description:           p.Description,
		Files:                 files,
		KnowledgeContext:      p.KnowledgeContext,
		KnowledgeInstructions: p.KnowledgeInstructions,
		CustomContext:         p.KnowledgeContext,
		CustomInstructions:    p.KnowledgeInstructions,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	})
}

// UnmarshalJSON 实现 json.Unmarshaler，规范字段优先，缺省时接受别名。
func (p *Project) UnmarshalJSON(data []byte) error {
	var raw projectJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Project{
		ID:                    raw.ID,
		Title:                 raw.Title,
		Description:           raw.Description,
		Files:                 raw.Files,
		KnowledgeContext:      raw.KnowledgeContext,
		KnowledgeInstructions: raw.KnowledgeInstructions,
		CreatedAt:             raw.CreatedAt,
		UpdatedAt:             raw.UpdatedAt,
	}
	if p.KnowledgeContext == "" {
		p.KnowledgeContext = raw.CustomContext
	}
	if p.KnowledgeInstructions == "" {
		p.KnowledgeInstructions = raw.CustomInstructions
	}
	return nil
}

// Clone 返回项目的深拷贝，文件切片不与原值共享。
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Files != nil {
		cp.Files = make([]File, len(p.Files))
		copy(cp.Files, p.Files)
	}
	return &cp
}

// FileByID 按 ID 查找文件，返回其下标。
func (p *Project) FileByID(id string) (int, bool) {
	for i := range p.Files {
		if p.Files[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// Identity 是身份提供方给出的已登录用户。
// 项目服务只读取 ID（归属）和 Email（演示账号判定）。
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ProjectEventType 描述一次项目变更的种类。
type ProjectEventType string

const (
	EventProjectCreated ProjectEventType = "project.created"
	EventProjectSaved   ProjectEventType = "project.saved"
	EventFilesChanged   ProjectEventType = "project.files_changed"
	EventFieldChanged   ProjectEventType = "project.field_changed"
)

// ProjectEvent 是推送给同一用户其他连接的变更通知。
type ProjectEvent struct {
	Type      ProjectEventType `json:"type"`
	ProjectID string           `json:"project_id"`
	UpdatedAt time.Time        `json:"updated_at"`
}
