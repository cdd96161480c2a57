package service

import (
	"context"
	"fmt"

	"sicbosettle/internal/config"
	"sicbosettle/internal/model"
	"sicbosettle/internal/repository"
	"sicbosettle/pkg/clock"

	"gorm.io/gorm"
)

// JobService 结算任务的入队 / 查询 / 取消入口
// Kafka 消费者和 HTTP 手工触发共用这一个入口
type JobService struct {
	cfg     *config.Config
	clk     clock.Clock
	jobRepo *repository.JobRepository
}

func NewJobService(db *gorm.DB, cfg *config.Config, clk clock.Clock) *JobService {
	return &JobService{
		cfg:     cfg,
		clk:     clk,
		jobRepo: repository.NewJobRepository(db),
	}
}

// Enqueue 幂等入队一个结算任务
// 同一局的重复投递（至少一次语义）只会落一条任务
func (s *JobService) Enqueue(ctx context.Context, roundID string, tableID int64) error {
	if roundID == "" {
		return fmt.Errorf("%w: round_id 为空", ErrInvalidJobInput)
	}
	if tableID <= 0 {
		return fmt.Errorf("%w: table_id 非法: %d", ErrInvalidJobInput, tableID)
	}

	job := &model.SettlementJob{
		RoundID:     roundID,
		TableID:     tableID,
		Status:      model.JobStatusPending,
		MaxAttempts: s.cfg.Business.MaxAttempts,
		NextRunAt:   s.clk.Now(),
	}
	return s.jobRepo.Enqueue(ctx, job)
}

// Get 查询任务状态
func (s *JobService) Get(ctx context.Context, roundID string) (*model.SettlementJob, error) {
	return s.jobRepo.GetByRoundID(ctx, roundID)
}

// Cancel 取消排队中的任务（上游局作废）
// 只允许首次执行前取消；一旦结算事务开始，任其跑完（提交或回滚）
func (s *JobService) Cancel(ctx context.Context, roundID string) error {
	return s.jobRepo.Cancel(ctx, roundID)
}
