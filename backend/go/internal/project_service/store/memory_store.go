package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/pkg/filetree"
	"IntentCode/backend/go/pkg/logger"

	"github.com/google/uuid"
)

// MemoryStore 是进程内的 ProjectStore 实现，用于本地运行和测试。
// 它和 GormStore 遵守同样的约束：同一项目内路径唯一，目录不保存内容。
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]*memoryProject
	log      *logger.Logger
	now      func() time.Time
}

type memoryProject struct {
	owner string
	row   models.ProjectRow
	files map[string]models.ProjectFileRow // 以 ID 为键
}

// NewMemoryStore 创建一个空的 MemoryStore。
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]*memoryProject),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) FetchProjects(_ context.Context, ownerID string) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Project, 0)
	for _, mp := range s.projects {
		if mp.owner != ownerID {
			continue
		}
		out = append(out, mp.project(s.log))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateProject(_ context.Context, in NewProject) (*models.Project, error) {
	now := s.now()
	mp := &memoryProject{
		owner: in.OwnerID,
		row: models.ProjectRow{
			ID:                    uuid.NewString(),
			UserID:                in.OwnerID,
			Title:                 in.Title,
			Description:           in.Description,
			KnowledgeContext:      in.Context,
			KnowledgeInstructions: in.Instructions,
			CreatedAt:             now,
			UpdatedAt:             now,
		},
		files: make(map[string]models.ProjectFileRow, len(in.Files)),
	}
	if err := mp.insert(withoutIDs(in.Files), now); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.projects[mp.row.ID] = mp
	s.mu.Unlock()

	p := mp.project(s.log)
	return &p, nil
}

func (s *MemoryStore) SaveProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mp, ok := s.projects[p.ID]
	if !ok {
		return ErrNotFound
	}
	mp.row.Title = p.Title
	mp.row.Description = p.Description
	mp.row.KnowledgeContext = p.KnowledgeContext
	mp.row.KnowledgeInstructions = p.KnowledgeInstructions
	mp.row.UpdatedAt = p.UpdatedAt
	return nil
}

func (s *MemoryStore) UpdateProjectField(_ context.Context, projectID string, field models.ProjectField, value string, at time.Time) error {
	if !field.Valid() {
		return fmt.Errorf("不允许单独更新字段 %q", field)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mp, ok := s.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	switch field {
	case models.FieldKnowledgeContext:
		mp.row.KnowledgeContext = value
	case models.FieldKnowledgeInstructions:
		mp.row.KnowledgeInstructions = value
	}
	mp.row.UpdatedAt = at
	return nil
}

func (s *MemoryStore) ListFileRefs(_ context.Context, projectID string) ([]FileRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mp, ok := s.projects[projectID]
	if !ok {
		return []FileRef{}, nil
	}
	refs := make([]FileRef, 0, len(mp.files))
	for _, r := range mp.files {
		refs = append(refs, FileRef{ID: r.ID, Path: r.Path})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs, nil
}

func (s *MemoryStore) UpdateFileContents(_ context.Context, projectID string, updates []FileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mp, ok := s.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	now := s.now()
	for _, u := range updates {
		r, ok := mp.files[u.ID]
		if !ok {
			continue
		}
		r.Content = u.Content
		r.UpdatedAt = now
		mp.files[u.ID] = r
	}
	return nil
}

func (s *MemoryStore) InsertFiles(_ context.Context, projectID string, files []models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mp, ok := s.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	return mp.insert(files, s.now())
}

func (s *MemoryStore) DeleteFiles(_ context.Context, projectID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mp, ok := s.projects[projectID]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(mp.files, id)
	}
	return nil
}

func (s *MemoryStore) TouchProject(_ context.Context, projectID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mp, ok := s.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	mp.row.UpdatedAt = at
	return nil
}

// insert 先检查整批路径，全部合法后才写入，与数据库事务的效果一致。
func (mp *memoryProject) insert(files []models.File, now time.Time) error {
	taken := make(map[string]bool, len(mp.files)+len(files))
	for _, r := range mp.files {
		taken[filetree.Key(r.Path)] = true
	}
	ids := make(map[string]bool, len(files))
	rows := make([]models.ProjectFileRow, 0, len(files))
	for _, f := range files {
		r := rowFromFile(mp.row.ID, f, now)
		key := filetree.Key(r.Path)
		if taken[key] {
			return fmt.Errorf("%w: %s", ErrDuplicatePath, r.Path)
		}
		if _, ok := mp.files[r.ID]; ok || ids[r.ID] {
			return fmt.Errorf("%w: id %s", ErrDuplicatePath, r.ID)
		}
		taken[key] = true
		ids[r.ID] = true
		rows = append(rows, r)
	}
	for _, r := range rows {
		mp.files[r.ID] = r
	}
	return nil
}

func (mp *memoryProject) project(log *logger.Logger) models.Project {
	files := make([]models.File, 0, len(mp.files))
	for _, r := range mp.files {
		files = append(files, fileFromRow(r, log))
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return projectFromRow(mp.row, files)
}
