package models

import "time"

// IntentionStatus 定义了一次意图提交在生成流程中的状态。
type IntentionStatus string

const (
	IntentionSubmitted IntentionStatus = "submitted" // 已记录并投递给生成方
	IntentionFailed    IntentionStatus = "failed"    // 投递失败或生成失败
	IntentionCompleted IntentionStatus = "completed" // 生成结果已写回项目
)

// IntentionRecord 记录用户提交的自然语言意图以及它创建的项目。
// 代码生成本身由外部生成方完成，这里只保留交接记录。
type IntentionRecord struct {
	ID          string          `bson:"_id" json:"id"`
	UserID      string          `bson:"user_id" json:"user_id"`
	ProjectID   string          `bson:"project_id" json:"project_id"`
	Intention   string          `bson:"intention" json:"intention"`
	Status      IntentionStatus `bson:"status" json:"status"`
	Error       string          `bson:"error,omitempty" json:"error,omitempty"`
	SubmittedAt time.Time       `bson:"submitted_at" json:"submitted_at"`
	CompletedAt *time.Time      `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Generation 是生成方写回的结果，Files 为项目的完整目标文件列表。
type Generation struct {
	IntentionID string `json:"intention_id"`
	ProjectID   string `json:"project_id"`
	UserID      string `json:"user_id"`
	Files       []File `json:"files"`
	Error       string `json:"error,omitempty"`
}
