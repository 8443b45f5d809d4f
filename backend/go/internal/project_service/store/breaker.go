package store

import (
	"context"
	"errors"
	"time"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/pkg/circuitbreaker"
)

// BreakerStore 用熔断器包装另一个 ProjectStore。
// 业务性错误（项目不存在、路径重复、调用方取消）不计入失败次数。
type BreakerStore struct {
	next ProjectStore
	cb   *circuitbreaker.Breaker
}

// NewBreakerStore 创建一个新的 BreakerStore 实例。
func NewBreakerStore(next ProjectStore, settings circuitbreaker.Settings) *BreakerStore {
	if settings.Counts == nil {
		settings.Counts = countsAsFailure
	}
	return &BreakerStore{next: next, cb: circuitbreaker.New(settings)}
}

func countsAsFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicatePath),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// State 返回熔断器当前状态。
func (s *BreakerStore) State() circuitbreaker.State {
	return s.cb.State()
}

func (s *BreakerStore) FetchProjects(ctx context.Context, ownerID string) (projects []models.Project, err error) {
	err = s.cb.Do(func() error {
		projects, err = s.next.FetchProjects(ctx, ownerID)
		return err
	})
	return projects, err
}

func (s *BreakerStore) CreateProject(ctx context.Context, in NewProject) (p *models.Project, err error) {
	err = s.cb.Do(func() error {
		p, err = s.next.CreateProject(ctx, in)
		return err
	})
	return p, err
}

func (s *BreakerStore) SaveProject(ctx context.Context, p *models.Project) error {
	return s.cb.Do(func() error { return s.next.SaveProject(ctx, p) })
}

func (s *BreakerStore) UpdateProjectField(ctx context.Context, projectID string, field models.ProjectField, value string, at time.Time) error {
	return s.cb.Do(func() error { return s.next.UpdateProjectField(ctx, projectID, field, value, at) })
}

func (s *BreakerStore) ListFileRefs(ctx context.Context, projectID string) (refs []FileRef, err error) {
	err = s.cb.Do(func() error {
		refs, err = s.next.ListFileRefs(ctx, projectID)
		return err
	})
	return refs, err
}

func (s *BreakerStore) UpdateFileContents(ctx context.Context, projectID string, updates []FileUpdate) error {
	return s.cb.Do(func() error { return s.next.UpdateFileContents(ctx, projectID, updates) })
}

func (s *BreakerStore) InsertFiles(ctx context.Context, projectID string, files []models.File) error {
	return s.cb.Do(func() error { return s.next.InsertFiles(ctx, projectID, files) })
}

func (s *BreakerStore) DeleteFiles(ctx context.Context, projectID string, ids []string) error {
	return s.cb.Do(func() error { return s.next.DeleteFiles(ctx, projectID, ids) })
}

func (s *BreakerStore) TouchProject(ctx context.Context, projectID string, at time.Time) error {
	return s.cb.Do(func() error { return s.next.TouchProject(ctx, projectID, at) })
}
