package model

import (
	"time"
)

const (
	JobStatusPending       = "PENDING"        // 已入队，等待首次执行
	JobStatusRunning       = "RUNNING"        // 执行中
	JobStatusSucceeded     = "SUCCEEDED"      // 结算成功（终态）
	JobStatusAwaitingRetry = "AWAITING_RETRY" // 瞬时失败，等待重试
	JobStatusExhausted     = "EXHAUSTED"      // 不可重试或重试耗尽（终态）
	JobStatusCancelled     = "CANCELLED"      // 首次执行前被上游取消（终态）
)

// ValidJobTransitions 结算任务状态机
// PENDING → RUNNING → {SUCCEEDED | AWAITING_RETRY → RUNNING | EXHAUSTED}
// 取消只允许发生在首次执行之前（PENDING → CANCELLED）
var ValidJobTransitions = map[string][]string{
	JobStatusPending:       {JobStatusRunning, JobStatusCancelled},
	JobStatusRunning:       {JobStatusSucceeded, JobStatusAwaitingRetry, JobStatusExhausted},
	JobStatusAwaitingRetry: {JobStatusRunning},
}

func CanJobTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidJobTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// IsJobTerminal 判断任务是否已到终态
func IsJobTerminal(status string) bool {
	switch status {
	case JobStatusSucceeded, JobStatusExhausted, JobStatusCancelled:
		return true
	}
	return false
}

// SettlementJob 结算任务表
// 一局对应唯一一条任务（round_id 唯一索引兜底消息重复投递），
// 投递语义为至少一次，真正的不重复结算由账本幂等键保证，
// 任务表只负责重试节奏和终态可见性
type SettlementJob struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoundID      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"round_id"` // 局号
	TableID      int64     `gorm:"not null" json:"table_id"`                              // 桌台ID
	Status       string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	AttemptCount int       `gorm:"not null;default:0" json:"attempt_count"`          // 已执行次数
	MaxAttempts  int       `gorm:"not null" json:"max_attempts"`                     // 入队时快照的最大次数
	NextRunAt    time.Time `gorm:"index;not null" json:"next_run_at"`                // 下次可执行时间（退避后延）
	LastError    string    `gorm:"type:varchar(512)" json:"last_error"`              // 最近一次失败原因
	Compensated  bool      `gorm:"not null;default:false" json:"compensated"`        // 重试耗尽后是否已完成退款补偿
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SettlementJob) TableName() string {
	return "settlement_job"
}
