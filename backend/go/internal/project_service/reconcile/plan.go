// Package reconcile 把项目的目标文件列表同步到远端存储。
//
// 同步按路径比较：两边都有的更新内容，只在目标中的插入，只在远端的删除。
// 三类写入互不相交，可以并发执行。
package reconcile

import (
	"fmt"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/internal/project_service/store"
	"IntentCode/backend/go/pkg/filetree"

	"github.com/google/uuid"
)

// Update 是一条路径已存在的文件，ID 取远端记录的 ID。
type Update struct {
	ID   string
	File models.File
}

// Plan 是一次同步需要执行的三类写入。
type Plan struct {
	Updates []Update
	Inserts []models.File
	Deletes []string
}

// Empty 判断计划是否没有任何写入。
func (p Plan) Empty() bool {
	return len(p.Updates) == 0 && len(p.Inserts) == 0 && len(p.Deletes) == 0
}

// ComputePlan 按规范化路径比较目标列表和远端记录。
// 目标列表中出现重复路径时直接拒绝，不产生任何写入。
// 远端同一路径有多条记录时（历史数据中有无前导 "/" 的两种写法），保留最后一条，其余删除。
// 三类写入涉及的 ID 互不相交。
func ComputePlan(target []models.File, existing []store.FileRef) (Plan, error) {
	targetKeys := make(map[string]struct{}, len(target))
	for _, f := range target {
		key := filetree.Key(f.Path)
		if _, dup := targetKeys[key]; dup {
			return Plan{}, fmt.Errorf("%w: %s", store.ErrDuplicatePath, filetree.NormalizePath(f.Path))
		}
		targetKeys[key] = struct{}{}
	}

	var plan Plan
	existingByKey := make(map[string]string, len(existing))
	usedIDs := make(map[string]struct{}, len(existing)+len(target))
	for _, ref := range existing {
		usedIDs[ref.ID] = struct{}{}
	}
	for _, ref := range existing {
		key := filetree.Key(ref.Path)
		if prev, ok := existingByKey[key]; ok {
			plan.Deletes = append(plan.Deletes, prev)
		}
		existingByKey[key] = ref.ID
	}

	for _, f := range target {
		f.Path = filetree.NormalizePath(f.Path)
		if id, ok := existingByKey[filetree.Key(f.Path)]; ok {
			plan.Updates = append(plan.Updates, Update{ID: id, File: f})
			continue
		}
		// 插入的 ID 不能与远端任何记录或本批其他插入重复，否则插入和删除会落在同一行上。
		if _, taken := usedIDs[f.ID]; f.ID == "" || taken {
			f.ID = uuid.NewString()
		}
		usedIDs[f.ID] = struct{}{}
		plan.Inserts = append(plan.Inserts, f)
	}

	for _, ref := range existing {
		key := filetree.Key(ref.Path)
		if _, keep := targetKeys[key]; keep {
			continue
		}
		if existingByKey[key] == ref.ID {
			plan.Deletes = append(plan.Deletes, ref.ID)
		}
	}
	return plan, nil
}

// contentUpdates 把计划中的更新转换为内容写入，目录没有内容，跳过。
func (p Plan) contentUpdates() []store.FileUpdate {
	updates := make([]store.FileUpdate, 0, len(p.Updates))
	for _, u := range p.Updates {
		if u.File.IsDir() {
			continue
		}
		updates = append(updates, store.FileUpdate{ID: u.ID, Content: store.EncodeContent(u.File.Content)})
	}
	return updates
}
