package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const insertBatchSize = 100

// GormStore 使用 MySQL 中的 ib_projects 和 project_files 两张表实现 ProjectStore。
type GormStore struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

// NewGormStore 创建一个新的 GormStore 实例。
func NewGormStore(db *gorm.DB, log *logger.Logger) *GormStore {
	return &GormStore{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Models 返回需要自动迁移的表模型。
func Models() []interface{} {
	return []interface{}{&models.ProjectRow{}, &models.ProjectFileRow{}}
}

// FetchProjects 读取用户的项目，再用一次 IN 查询取回全部文件。
// 文件读取失败时项目仍然返回，只是文件列表为空。
func (s *GormStore) FetchProjects(ctx context.Context, ownerID string) ([]models.Project, error) {
	var rows []models.ProjectRow
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询项目失败: %w", err)
	}
	if len(rows) == 0 {
		return []models.Project{}, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	filesByProject := make(map[string][]models.File, len(rows))
	var fileRows []models.ProjectFileRow
	if err := s.db.WithContext(ctx).
		Where("project_id IN ?", ids).
		Order("path ASC").
		Find(&fileRows).Error; err != nil {
		s.log.WithErr(err).WithPayload(map[string]interface{}{"owner_id": ownerID}).
			Warn("读取项目文件失败，项目将以空文件列表返回")
	} else {
		for _, fr := range fileRows {
			filesByProject[fr.ProjectID] = append(filesByProject[fr.ProjectID], fileFromRow(fr, s.log))
		}
	}

	projects := make([]models.Project, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, projectFromRow(r, filesByProject[r.ID]))
	}
	return projects, nil
}

// CreateProject 在一个事务中写入项目行和所有初始文件。
func (s *GormStore) CreateProject(ctx context.Context, in NewProject) (*models.Project, error) {
	now := s.now()
	row := models.ProjectRow{
		ID:                    uuid.NewString(),
		UserID:                in.OwnerID,
		Title:                 in.Title,
		Description:           in.Description,
		KnowledgeContext:      in.Context,
		KnowledgeInstructions: in.Instructions,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	fileRows := make([]models.ProjectFileRow, 0, len(in.Files))
	files := make([]models.File, 0, len(in.Files))
	for _, f := range withoutIDs(in.Files) {
		fr := rowFromFile(row.ID, f, now)
		fileRows = append(fileRows, fr)
		files = append(files, fileFromRow(fr, s.log))
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if len(fileRows) > 0 {
			if err := tx.CreateInBatches(fileRows, insertBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("创建项目失败: %w", translate(err))
	}

	p := projectFromRow(row, files)
	return &p, nil
}

// SaveProject 只更新项目的元数据字段。
func (s *GormStore) SaveProject(ctx context.Context, p *models.Project) error {
	res := s.db.WithContext(ctx).Model(&models.ProjectRow{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"title":                  p.Title,
			"description":            p.Description,
			"knowledge_context":      p.KnowledgeContext,
			"knowledge_instructions": p.KnowledgeInstructions,
			"updated_at":             p.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("保存项目失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProjectField 更新单个知识字段。
func (s *GormStore) UpdateProjectField(ctx context.Context, projectID string, field models.ProjectField, value string, at time.Time) error {
	if !field.Valid() {
		return fmt.Errorf("不允许单独更新字段 %q", field)
	}
	res := s.db.WithContext(ctx).Model(&models.ProjectRow{}).
		Where("id = ?", projectID).
		Updates(map[string]interface{}{
			string(field): value,
			"updated_at":  at,
		})
	if res.Error != nil {
		return fmt.Errorf("更新字段 %s 失败: %w", field, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFileRefs 只读取文件的 ID 和路径，路径已规范化。
func (s *GormStore) ListFileRefs(ctx context.Context, projectID string) ([]FileRef, error) {
	var rows []models.ProjectFileRow
	if err := s.db.WithContext(ctx).
		Select("id", "path").
		Where("project_id = ?", projectID).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("读取文件列表失败: %w", err)
	}
	refs := make([]FileRef, len(rows))
	for i, r := range rows {
		refs[i] = FileRef{ID: r.ID, Path: r.Path}
	}
	return refs, nil
}

// UpdateFileContents 在一个事务中覆盖写入多个文件的内容。
func (s *GormStore) UpdateFileContents(ctx context.Context, projectID string, updates []FileUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			err := tx.Model(&models.ProjectFileRow{}).
				Where("id = ? AND project_id = ?", u.ID, projectID).
				Updates(map[string]interface{}{
					"content":    u.Content,
					"updated_at": now,
				}).Error
			if err != nil {
				return fmt.Errorf("文件 %s: %w", u.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("更新文件内容失败: %w", err)
	}
	return nil
}

// InsertFiles 批量插入新文件，保留计划给出的 ID，计划保证它们不与现有行冲突。
func (s *GormStore) InsertFiles(ctx context.Context, projectID string, files []models.File) error {
	if len(files) == 0 {
		return nil
	}
	now := s.now()
	rows := make([]models.ProjectFileRow, len(files))
	for i, f := range files {
		rows[i] = rowFromFile(projectID, f, now)
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return fmt.Errorf("插入文件失败: %w", translate(err))
	}
	return nil
}

// DeleteFiles 按 ID 删除文件，不会级联删除子路径。
func (s *GormStore) DeleteFiles(ctx context.Context, projectID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).
		Where("project_id = ? AND id IN ?", projectID, ids).
		Delete(&models.ProjectFileRow{}).Error; err != nil {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}

// TouchProject 刷新项目的 updated_at。
func (s *GormStore) TouchProject(ctx context.Context, projectID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.ProjectRow{}).
		Where("id = ?", projectID).
		Update("updated_at", at)
	if res.Error != nil {
		return fmt.Errorf("刷新项目时间失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicatePath, err)
	}
	return err
}
