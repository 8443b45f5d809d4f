package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/internal/project_service/lock"
	"IntentCode/backend/go/internal/project_service/store"
	"IntentCode/backend/go/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// ErrPartialBatch 表示同步中至少有一类写入失败，成功的部分不会回滚。
var ErrPartialBatch = errors.New("reconcile: partial batch failure")

// OpKind 是同步中的一类写入。
type OpKind string

const (
	OpUpdate OpKind = "update"
	OpInsert OpKind = "insert"
	OpDelete OpKind = "delete"
	OpTouch  OpKind = "touch"
)

// BatchError 记录每一类失败的写入及其原因。
type BatchError struct {
	ProjectID string
	Failures  map[OpKind]error
}

func (e *BatchError) Error() string {
	kinds := make([]string, 0, len(e.Failures))
	for k := range e.Failures {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s: %v", k, e.Failures[OpKind(k)])
	}
	return fmt.Sprintf("reconcile project %s: %s", e.ProjectID, strings.Join(parts, "; "))
}

// Is 让 errors.Is(err, ErrPartialBatch) 对任意 BatchError 成立。
func (e *BatchError) Is(target error) bool {
	return target == ErrPartialBatch
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}

// Failed 判断某一类写入是否失败。
func (e *BatchError) Failed(kind OpKind) bool {
	_, ok := e.Failures[kind]
	return ok
}

// Result 汇总一次同步的写入数量。
type Result struct {
	Updated  int
	Inserted int
	Deleted  int
}

// Engine 执行文件同步，同一项目的同步通过 Locker 串行化。
type Engine struct {
	store  store.ProjectStore
	locker lock.Locker
	log    *logger.Logger
}

// NewEngine 创建一个新的 Engine 实例。
func NewEngine(s store.ProjectStore, l lock.Locker, log *logger.Logger) *Engine {
	return &Engine{store: s, locker: l, log: log}
}

// SyncFiles 让远端的文件集合与 files 完全一致，并把项目的 updated_at 刷新为 at。
//
// 读取现有记录和计算计划失败时不会有任何写入；三类写入并发执行，
// 任何一类失败都会以 *BatchError 返回，其他类的结果保留。
func (e *Engine) SyncFiles(ctx context.Context, projectID string, files []models.File, at time.Time) (Result, error) {
	unlock, err := e.locker.Lock(ctx, projectID)
	if err != nil {
		return Result{}, fmt.Errorf("获取项目锁失败: %w", err)
	}
	defer unlock()

	existing, err := e.store.ListFileRefs(ctx, projectID)
	if err != nil {
		return Result{}, fmt.Errorf("读取现有文件失败: %w", err)
	}

	plan, err := ComputePlan(files, existing)
	if err != nil {
		return Result{}, err
	}

	var (
		mu       sync.Mutex
		failures = make(map[OpKind]error)
	)
	record := func(kind OpKind, err error) error {
		if err != nil {
			mu.Lock()
			failures[kind] = err
			mu.Unlock()
		}
		return err
	}

	// 不使用 errgroup.WithContext：一类写入失败不应取消其他类。
	var g errgroup.Group
	if updates := plan.contentUpdates(); len(updates) > 0 {
		g.Go(func() error {
			return record(OpUpdate, e.store.UpdateFileContents(ctx, projectID, updates))
		})
	}
	if len(plan.Inserts) > 0 {
		g.Go(func() error {
			return record(OpInsert, e.store.InsertFiles(ctx, projectID, plan.Inserts))
		})
	}
	if len(plan.Deletes) > 0 {
		g.Go(func() error {
			return record(OpDelete, e.store.DeleteFiles(ctx, projectID, plan.Deletes))
		})
	}
	_ = g.Wait()

	record(OpTouch, e.store.TouchProject(ctx, projectID, at))

	result := Result{Updated: len(plan.Updates), Inserted: len(plan.Inserts), Deleted: len(plan.Deletes)}
	log := e.log.WithPayload(map[string]interface{}{
		"project_id": projectID,
		"updated":    result.Updated,
		"inserted":   result.Inserted,
		"deleted":    result.Deleted,
	})
	if len(failures) > 0 {
		batchErr := &BatchError{ProjectID: projectID, Failures: failures}
		log.WithErr(batchErr).Error("项目文件同步部分失败")
		return result, batchErr
	}
	log.Debug("项目文件同步完成")
	return result, nil
}
