package repository

import (
	"context"
	"errors"
	"time"

	"sicbosettle/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrJobNotFound      = errors.New("结算任务不存在")
	ErrJobStatusInvalid = errors.New("结算任务状态不合法")
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue 幂等入队
// round_id 唯一索引 + OnConflict DoNothing：同一局的重复投递只会落一条任务
func (r *JobRepository) Enqueue(ctx context.Context, job *model.SettlementJob) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "round_id"}},
			DoNothing: true,
		}).
		Create(job).Error
}

func (r *JobRepository) GetByRoundID(ctx context.Context, roundID string) (*model.SettlementJob, error) {
	var job model.SettlementJob
	err := r.db.WithContext(ctx).Where("round_id = ?", roundID).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListDue 查询到期可执行的任务
// 两类：PENDING / AWAITING_RETRY 且到达下次执行时间；以及 RUNNING 但
// updated_at 早于租约窗口的任务——持有者崩溃或标记状态失败会把任务
// 遗留在 RUNNING，不扫回来这一局就永远悬着。账本幂等键保证重跑安全
func (r *JobRepository) ListDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*model.SettlementJob, error) {
	var jobs []*model.SettlementJob
	err := r.db.WithContext(ctx).
		Where("(status IN ? AND next_run_at <= ?) OR (status = ? AND updated_at <= ?)",
			[]string{model.JobStatusPending, model.JobStatusAwaitingRetry}, now,
			model.JobStatusRunning, staleBefore).
		Order("next_run_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// UpdateStatus 按状态机 CAS 流转任务状态
// RowsAffected == 0 说明状态已被并发修改（如另一实例抢先认领），调用方放弃本次操作
func (r *JobRepository) UpdateStatus(ctx context.Context, roundID string, fromStatus, toStatus string) error {
	if !model.CanJobTransitionTo(fromStatus, toStatus) {
		return ErrJobStatusInvalid
	}

	result := r.db.WithContext(ctx).
		Model(&model.SettlementJob{}).
		Where("round_id = ? AND status = ?", roundID, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobStatusInvalid
	}
	return nil
}

// Claim 认领一个到期任务（status → RUNNING）
// 多实例部署时以此保证同一局同一时刻至多一个活跃结算尝试
func (r *JobRepository) Claim(ctx context.Context, roundID string, fromStatus string) error {
	return r.UpdateStatus(ctx, roundID, fromStatus, model.JobStatusRunning)
}

// Reclaim 接管一个租约过期的 RUNNING 任务
// CAS 条件带上 updated_at：多实例同时发现同一个失联任务时只有一个
// 接管成功；接管动作刷新 updated_at，相当于续上新租约
func (r *JobRepository) Reclaim(ctx context.Context, roundID string, staleBefore, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.SettlementJob{}).
		Where("round_id = ? AND status = ? AND updated_at <= ?",
			roundID, model.JobStatusRunning, staleBefore).
		Update("updated_at", now)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobStatusInvalid
	}
	return nil
}

// ScheduleRetry 瞬时失败：累加尝试次数并按退避时间后延
func (r *JobRepository) ScheduleRetry(ctx context.Context, roundID string, nextRunAt time.Time, lastError string) error {
	result := r.db.WithContext(ctx).
		Model(&model.SettlementJob{}).
		Where("round_id = ? AND status = ?", roundID, model.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":        model.JobStatusAwaitingRetry,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"next_run_at":   nextRunAt,
			"last_error":    lastError,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobStatusInvalid
	}
	return nil
}

// MarkSucceeded 结算成功（终态）
func (r *JobRepository) MarkSucceeded(ctx context.Context, roundID string) error {
	result := r.db.WithContext(ctx).
		Model(&model.SettlementJob{}).
		Where("round_id = ? AND status = ?", roundID, model.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":        model.JobStatusSucceeded,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    "",
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobStatusInvalid
	}
	return nil
}

// MarkExhausted 标记任务耗尽（终态），记录最终失败原因
func (r *JobRepository) MarkExhausted(ctx context.Context, roundID string, lastError string) error {
	result := r.db.WithContext(ctx).
		Model(&model.SettlementJob{}).
		Where("round_id = ? AND status = ?", roundID, model.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":        model.JobStatusExhausted,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    lastError,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobStatusInvalid
	}
	return nil
}

// Cancel 取消排队中的任务，仅允许首次执行前（PENDING）
func (r *JobRepository) Cancel(ctx context.Context, roundID string) error {
	return r.UpdateStatus(ctx, roundID, model.JobStatusPending, model.JobStatusCancelled)
}

// SetCompensated 标记耗尽任务已完成退款补偿
func (r *JobRepository) SetCompensated(ctx context.Context, roundID string) error {
	return r.db.WithContext(ctx).
		Model(&model.SettlementJob{}).
		Where("round_id = ? AND status = ?", roundID, model.JobStatusExhausted).
		Update("compensated", true).Error
}
