// Package store 是项目和文件的远端持久化适配层。
package store

import (
	"context"
	"errors"
	"time"

	"IntentCode/backend/go/internal/models"
)

var (
	// ErrNotFound 表示目标项目在远端不存在。
	ErrNotFound = errors.New("store: project not found")
	// ErrDuplicatePath 表示写入会让同一项目内出现重复路径。
	ErrDuplicatePath = errors.New("store: duplicate file path")
)

// FileRef 是远端文件记录的最小投影，只用于对账。
type FileRef struct {
	ID   string
	Path string
}

// FileUpdate 是一次内容覆盖写入。
type FileUpdate struct {
	ID      string
	Content []byte
}

// NewProject 是创建项目所需的输入。
type NewProject struct {
	OwnerID      string
	Title        string
	Description  string
	Context      string
	Instructions string
	Files        []models.File
}

// ProjectStore 定义了项目服务对远端存储的全部访问。
// 实现必须可以被多个 goroutine 同时调用。
type ProjectStore interface {
	// FetchProjects 返回用户的所有项目及其文件，按 updated_at 降序。
	FetchProjects(ctx context.Context, ownerID string) ([]models.Project, error)
	// CreateProject 创建项目和初始文件，返回服务端分配的 ID 和时间戳。
	CreateProject(ctx context.Context, in NewProject) (*models.Project, error)
	// SaveProject 只写标题、描述、两个知识字段和 updated_at，不触及文件。
	SaveProject(ctx context.Context, p *models.Project) error
	// UpdateProjectField 写单个知识字段并刷新 updated_at。
	UpdateProjectField(ctx context.Context, projectID string, field models.ProjectField, value string, at time.Time) error

	ListFileRefs(ctx context.Context, projectID string) ([]FileRef, error)
	UpdateFileContents(ctx context.Context, projectID string, updates []FileUpdate) error
	InsertFiles(ctx context.Context, projectID string, files []models.File) error
	DeleteFiles(ctx context.Context, projectID string, ids []string) error
	TouchProject(ctx context.Context, projectID string, at time.Time) error
}
