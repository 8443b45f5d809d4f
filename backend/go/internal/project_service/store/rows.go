package store

import (
	"time"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/pkg/filetree"
	"IntentCode/backend/go/pkg/logger"

	"github.com/google/uuid"
)

// fileFromRow 把存储行转换为文件记录。名称取路径最后一段，路径规范化为以 "/" 开头。
func fileFromRow(row models.ProjectFileRow, log *logger.Logger) models.File {
	content, ok := DecodeContent(row.Content)
	if !ok {
		log.WithPayload(map[string]interface{}{
			"project_id": row.ProjectID,
			"file_id":    row.ID,
			"path":       row.Path,
		}).Warn("文件内容不是合法的 UTF-8，按空内容处理")
	}
	isDir := row.Type == models.DirectoryType
	if isDir {
		content = ""
	}
	return models.File{
		ID:          row.ID,
		Name:        filetree.BaseName(row.Path),
		Path:        filetree.NormalizePath(row.Path),
		Type:        row.Type,
		IsDirectory: isDir,
		Content:     content,
	}
}

// withoutIDs 清掉调用方给出的 ID，新建项目时每个文件都由存储分配主键。
func withoutIDs(files []models.File) []models.File {
	out := make([]models.File, len(files))
	for i, f := range files {
		f.ID = ""
		out[i] = f
	}
	return out
}

// rowFromFile 构造待插入的存储行。目录统一写成 "directory" 类型且不带内容。
// 没有 ID 的记录在这里分配一个新的 UUID。
func rowFromFile(projectID string, f models.File, now time.Time) models.ProjectFileRow {
	id := f.ID
	if id == "" {
		id = uuid.NewString()
	}
	row := models.ProjectFileRow{
		ID:         id,
		ProjectID:  projectID,
		ManifestID: models.DefaultManifestID,
		Path:       filetree.NormalizePath(f.Path),
		Type:       f.Type,
		AIType:     models.GeneratedAIType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if f.IsDir() {
		row.Type = models.DirectoryType
	} else {
		row.Content = EncodeContent(f.Content)
	}
	return row
}

func projectFromRow(row models.ProjectRow, files []models.File) models.Project {
	if files == nil {
		files = []models.File{}
	}
	return models.Project{
		ID:                    row.ID,
		Title:                 row.Title,
		Description:           row.Description,
		Files:                 files,
		KnowledgeContext:      row.KnowledgeContext,
		KnowledgeInstructions: row.KnowledgeInstructions,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
}
