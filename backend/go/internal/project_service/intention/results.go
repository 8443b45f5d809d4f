package intention

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/internal/project_service/reconcile"
	"IntentCode/backend/go/pkg/filetree"
	"IntentCode/backend/go/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// FileSyncer writes a project's complete file list to storage.
type FileSyncer interface {
	SyncFiles(ctx context.Context, projectID string, files []models.File, at time.Time) (reconcile.Result, error)
}

// Reloader refreshes the cached state of a signed-in user, if any.
type Reloader interface {
	Reload(ctx context.Context, userID string) error
}

// Notifier pushes project events to a user's open connections.
type Notifier interface {
	Notify(userID string, event models.ProjectEvent)
}

// ResultHandler applies generation results to their projects.
type ResultHandler struct {
	store    Store
	files    FileSyncer
	sessions Reloader
	notifier Notifier
	logger   *logger.Logger
	now      func() time.Time
}

// NewResultHandler creates a new ResultHandler. sessions and notifier may be nil.
func NewResultHandler(store Store, files FileSyncer, sessions Reloader, notifier Notifier, logger *logger.Logger) *ResultHandler {
	return &ResultHandler{
		store:    store,
		files:    files,
		sessions: sessions,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleMessage decodes a Kafka message and applies it.
// Malformed messages are logged and dropped so they do not block the partition.
func (h *ResultHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var gen models.Generation
	if err := json.Unmarshal(msg.Value, &gen); err != nil {
		h.logger.WithErr(err).WithPayload(map[string]interface{}{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Warn("无法解析生成结果，已跳过")
		return nil
	}
	return h.Apply(ctx, gen)
}

// Apply writes the generated files to the project and marks the intention completed.
func (h *ResultHandler) Apply(ctx context.Context, gen models.Generation) error {
	if gen.ProjectID == "" || gen.IntentionID == "" {
		return fmt.Errorf("生成结果缺少 project_id 或 intention_id")
	}
	log := h.logger.WithUser(gen.UserID).WithPayload(map[string]interface{}{
		"intention_id": gen.IntentionID,
		"project_id":   gen.ProjectID,
	})

	if gen.Error != "" {
		log.Warn("生成方报告失败")
		return h.store.MarkFailed(ctx, gen.IntentionID, gen.Error)
	}

	now := h.now().UTC()
	result, err := h.files.SyncFiles(ctx, gen.ProjectID, completeFiles(gen.Files), now)
	if err != nil {
		if markErr := h.store.MarkFailed(ctx, gen.IntentionID, err.Error()); markErr != nil {
			log.WithErr(markErr).Warn("更新意图状态失败")
		}
		return fmt.Errorf("写回生成文件失败: %w", err)
	}
	if err := h.store.MarkCompleted(ctx, gen.IntentionID, now); err != nil {
		log.WithErr(err).Warn("更新意图状态失败")
	}

	if h.sessions != nil && gen.UserID != "" {
		if err := h.sessions.Reload(ctx, gen.UserID); err != nil {
			log.WithErr(err).Warn("刷新用户项目失败")
		}
	}
	if h.notifier != nil && gen.UserID != "" {
		h.notifier.Notify(gen.UserID, models.ProjectEvent{
			Type:      models.EventFilesChanged,
			ProjectID: gen.ProjectID,
			UpdatedAt: now,
		})
	}

	log.WithPayload(map[string]interface{}{
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"deleted":  result.Deleted,
	}).Info("生成结果已写回项目")
	return nil
}

// completeFiles fills in the name and type the generator may leave out.
// Generator IDs are dropped; the sync plan matches files by path.
func completeFiles(files []models.File) []models.File {
	out := make([]models.File, 0, len(files))
	for _, f := range files {
		f.ID = ""
		f.Path = filetree.NormalizePath(f.Path)
		if f.Name == "" {
			f.Name = path.Base(f.Path)
		}
		if f.IsDirectory {
			f.Type = models.DirectoryType
			f.Content = ""
		} else if f.Type == "" {
			f.Type = filetree.InferType(f.Name, []byte(f.Content))
		}
		out = append(out, f)
	}
	return out
}

// ResultConsumer reads generation results from Kafka.
type ResultConsumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

// NewResultConsumer creates a new ResultConsumer.
func NewResultConsumer(brokers []string, topic, groupID string, logger *logger.Logger) *ResultConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})
	return &ResultConsumer{reader: reader, logger: logger}
}

// Run consumes messages until ctx is done. Every fetched message is committed,
// including ones the handler failed on; the failure is recorded on the intention.
func (c *ResultConsumer) Run(ctx context.Context, handle func(context.Context, kafka.Message) error) error {
	c.logger.Info("开始消费生成结果")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("停止消费生成结果")
				return nil
			}
			c.logger.WithErr(err).Error("读取 Kafka 消息失败")
			continue
		}

		if err := handle(ctx, msg); err != nil {
			c.logger.WithErr(err).WithPayload(map[string]interface{}{
				"topic":     msg.Topic,
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Error("处理生成结果失败")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.WithErr(err).Error("提交 Kafka 位点失败")
		}
	}
}

// Close closes the underlying Kafka reader.
func (c *ResultConsumer) Close() error {
	return c.reader.Close()
}
