package job

import (
	"context"
	"log"
	"sync"
	"time"

	"sicbosettle/internal/config"
	"sicbosettle/internal/metrics"
	"sicbosettle/internal/model"
	"sicbosettle/internal/repository"
	"sicbosettle/internal/service"
	"sicbosettle/pkg/clock"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ============================================================================
// 结算任务控制器
// ============================================================================
//
// 单个任务的状态机：
//   PENDING → RUNNING → SUCCEEDED                   结算成功
//                     → AWAITING_RETRY → RUNNING    瞬时失败，退避后重试
//                     → EXHAUSTED                   不可重试 / 重试耗尽
//   PENDING → CANCELLED                             首次执行前被上游取消
//
// 调度：定时扫描到期任务，按状态 CAS 认领（RowsAffected 守卫，多实例安全），
// 投给固定大小的工作池并行处理——不同局并行，同一局内部由结算服务的
// 按局锁 + 单事务保证串行
//
// 崩溃恢复：进程在结算中途挂掉（或标记状态的写入失败）会把任务遗留
// 在 RUNNING。扫描同时回收 updated_at 超过租约窗口的 RUNNING 任务，
// 以 updated_at CAS 接管后重跑——事务早已回滚、账本有幂等键，重跑安全
//
// 重试耗尽后触发退款补偿，保证每一注本金都有着落；补偿本身失败属于
// 最高级别故障，打 [ALERT] 日志等人工介入，绝不静默吞掉

type SettleWorker struct {
	db            *gorm.DB
	cfg           *config.Config
	clk           clock.Clock
	jobRepo       *repository.JobRepository
	settleService *service.SettleService
	refundService *service.RefundService
	stopCh        chan struct{}
	jobCh         chan *model.SettlementJob
	interval      time.Duration
	batchSize     int
	workerCount   int
	lease         time.Duration
}

func NewSettleWorker(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, clk clock.Clock) *SettleWorker {
	interval := time.Duration(cfg.Business.JobPollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	batchSize := cfg.Business.JobBatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	workerCount := cfg.Business.WorkerCount
	if workerCount <= 0 {
		workerCount = 4
	}
	// 租约窗口取按局锁 TTL 的两倍：一次正常的结算尝试不可能持有锁
	// 超过 TTL，超窗的 RUNNING 只能是持有者已失联
	lease := 2 * time.Duration(cfg.Business.RoundLockTTLSec) * time.Second
	if lease <= 0 {
		lease = time.Minute
	}

	return &SettleWorker{
		db:            db,
		cfg:           cfg,
		clk:           clk,
		jobRepo:       repository.NewJobRepository(db),
		settleService: service.NewSettleService(db, redisClient, cfg),
		refundService: service.NewRefundService(db, redisClient, cfg),
		stopCh:        make(chan struct{}),
		jobCh:         make(chan *model.SettlementJob, batchSize),
		interval:      interval,
		batchSize:     batchSize,
		workerCount:   workerCount,
		lease:         lease,
	}
}

// Start 启动调度循环与工作池，阻塞直到 ctx 取消或 Stop 被调用
func (w *SettleWorker) Start(ctx context.Context) {
	log.Printf("[SettleWorker] 结算任务控制器启动: workers=%d, interval=%v", w.workerCount, w.interval)

	var wg sync.WaitGroup
	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range w.jobCh {
				w.process(ctx, j)
			}
		}()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[SettleWorker] 收到停止信号，任务退出")
			close(w.jobCh)
			wg.Wait()
			return
		case <-w.stopCh:
			log.Println("[SettleWorker] 任务停止")
			close(w.jobCh)
			wg.Wait()
			return
		case <-ticker.C:
			w.dispatchDueJobs(ctx)
		}
	}
}

func (w *SettleWorker) Stop() {
	close(w.stopCh)
}

// dispatchDueJobs 扫描到期任务并认领后投入工作池
func (w *SettleWorker) dispatchDueJobs(ctx context.Context) {
	now := w.clk.Now()
	staleBefore := now.Add(-w.lease)
	jobs, err := w.jobRepo.ListDue(ctx, now, staleBefore, w.batchSize)
	if err != nil {
		log.Printf("[SettleWorker] 查询到期任务失败: %v", err)
		return
	}

	for _, j := range jobs {
		if j.Status == model.JobStatusRunning {
			// 租约过期的失联任务：CAS 接管后重跑
			if err := w.jobRepo.Reclaim(ctx, j.RoundID, staleBefore, now); err != nil {
				continue
			}
			log.Printf("[SettleWorker] 接管失联任务重跑: roundID=%s, attempt=%d", j.RoundID, j.AttemptCount)
		} else if err := w.jobRepo.Claim(ctx, j.RoundID, j.Status); err != nil {
			// CAS 认领：被其他实例抢先则跳过
			continue
		}
		select {
		case w.jobCh <- j:
		case <-ctx.Done():
			return
		}
	}
}

// process 执行一次结算尝试，并按错误分类推进任务状态机
func (w *SettleWorker) process(ctx context.Context, j *model.SettlementJob) {
	result, err := w.settleService.Settle(ctx, j.RoundID, j.TableID)
	if err == nil {
		if err := w.jobRepo.MarkSucceeded(ctx, j.RoundID); err != nil {
			log.Printf("[SettleWorker] 标记任务成功失败: roundID=%s, err=%v", j.RoundID, err)
			return
		}
		log.Printf("[SettleWorker] 任务完成: roundID=%s, settled=%d, winners=%d, totalPayout=%d",
			j.RoundID, result.SettledCount, result.WinnerCount, result.TotalPayout)
		return
	}

	// 校验类失败：重试无意义，立即终止并告警；此时未动任何资金，无需退款
	if service.IsNonRetryable(err) {
		log.Printf("[ALERT][SettleWorker] 任务校验失败，不再重试: roundID=%s, err=%v", j.RoundID, err)
		metrics.RecordJobExhausted()
		if markErr := w.jobRepo.MarkExhausted(ctx, j.RoundID, err.Error()); markErr != nil {
			log.Printf("[SettleWorker] 标记任务耗尽失败: roundID=%s, err=%v", j.RoundID, markErr)
		}
		return
	}

	// 瞬时失败：整局事务已回滚，按指数退避重试
	attempt := j.AttemptCount + 1
	if attempt < j.MaxAttempts {
		delay := w.Backoff(attempt)
		nextRunAt := w.clk.Now().Add(delay)
		log.Printf("[SettleWorker] 结算失败，%v 后重试(第%d/%d次): roundID=%s, err=%v",
			delay, attempt, j.MaxAttempts, j.RoundID, err)
		metrics.RecordJobRetry()
		if schedErr := w.jobRepo.ScheduleRetry(ctx, j.RoundID, nextRunAt, err.Error()); schedErr != nil {
			log.Printf("[SettleWorker] 排期重试失败: roundID=%s, err=%v", j.RoundID, schedErr)
		}
		return
	}

	// 重试耗尽：终止任务并触发退款补偿
	log.Printf("[SettleWorker] 重试耗尽，转入退款补偿: roundID=%s, attempts=%d, err=%v",
		j.RoundID, attempt, err)
	metrics.RecordJobExhausted()
	if markErr := w.jobRepo.MarkExhausted(ctx, j.RoundID, err.Error()); markErr != nil {
		log.Printf("[SettleWorker] 标记任务耗尽失败: roundID=%s, err=%v", j.RoundID, markErr)
		return
	}

	refundResult, refundErr := w.refundService.RefundRound(ctx, j.RoundID)
	if refundErr != nil {
		// 补偿失败是最高级别故障：本金悬空，必须人工介入
		log.Printf("[ALERT][SettleWorker] 退款补偿失败，需要人工介入: roundID=%s, err=%v",
			j.RoundID, refundErr)
		return
	}

	if err := w.jobRepo.SetCompensated(ctx, j.RoundID); err != nil {
		log.Printf("[SettleWorker] 标记补偿完成失败: roundID=%s, err=%v", j.RoundID, err)
	}
	log.Printf("[SettleWorker] 退款补偿完成: roundID=%s, refunded=%d", j.RoundID, refundResult.RefundedCount)
}

// Backoff 第 attempt 次失败后的退避时长：base * 2^(attempt-1)，封顶 cap
func (w *SettleWorker) Backoff(attempt int) time.Duration {
	base := time.Duration(w.cfg.Business.BackoffBaseSeconds) * time.Second
	if base <= 0 {
		base = time.Second
	}
	capDelay := time.Duration(w.cfg.Business.BackoffCapSeconds) * time.Second
	if capDelay <= 0 {
		capDelay = 5 * time.Minute
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= capDelay {
			return capDelay
		}
	}
	if delay > capDelay {
		return capDelay
	}
	return delay
}
