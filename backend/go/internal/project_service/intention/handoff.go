package intention

import (
	"context"
	"fmt"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/pkg/logger"
)

const defaultListLimit = 50

// Handoff records an intention and then publishes it for the external generator.
// The record is keyed by project so every message for a project lands on one partition.
type Handoff struct {
	store     Store
	publisher Publisher
	logger    *logger.Logger
}

// NewHandoff creates a new Handoff.
func NewHandoff(store Store, publisher Publisher, logger *logger.Logger) *Handoff {
	return &Handoff{store: store, publisher: publisher, logger: logger}
}

// Submit stores rec and publishes it. A failed publish marks the record failed.
func (h *Handoff) Submit(ctx context.Context, rec models.IntentionRecord) error {
	if err := h.store.Create(ctx, &rec); err != nil {
		return fmt.Errorf("记录意图失败: %w", err)
	}

	if err := h.publisher.Publish(ctx, rec.ProjectID, rec); err != nil {
		h.logger.WithUser(rec.UserID).WithErr(err).
			WithPayload(map[string]interface{}{"intention_id": rec.ID, "project_id": rec.ProjectID}).
			Error("投递意图失败")
		if markErr := h.store.MarkFailed(ctx, rec.ID, err.Error()); markErr != nil {
			h.logger.WithErr(markErr).Warn("更新意图状态失败")
		}
		return fmt.Errorf("投递意图失败: %w", err)
	}

	h.logger.WithUser(rec.UserID).
		WithPayload(map[string]interface{}{"intention_id": rec.ID, "project_id": rec.ProjectID}).
		Info("意图已交给生成方")
	return nil
}

// List returns the user's recent intentions.
func (h *Handoff) List(ctx context.Context, userID string, limit int64) ([]models.IntentionRecord, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	return h.store.ListByUser(ctx, userID, limit)
}
