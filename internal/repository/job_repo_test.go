package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"sicbosettle/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层 DB 失败: %v", err)
	}
	// 内存库随连接销毁，限制单连接保证所有操作看到同一份数据
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.LedgerAccount{},
		&model.LedgerEntry{},
		&model.GameOutcome{},
		&model.BetRecord{},
		&model.SettlementJob{},
		&model.OutboxMessage{},
	); err != nil {
		t.Fatalf("迁移表结构失败: %v", err)
	}
	return db
}

func TestJobEnqueueIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()
	now := time.Now()

	job := &model.SettlementJob{
		RoundID:     "R1",
		TableID:     1,
		Status:      model.JobStatusPending,
		MaxAttempts: 5,
		NextRunAt:   now,
	}
	if err := repo.Enqueue(ctx, job); err != nil {
		t.Fatalf("首次入队失败: %v", err)
	}

	// 至少一次投递：同一局的重复入队只落一条任务
	dup := &model.SettlementJob{
		RoundID:     "R1",
		TableID:     1,
		Status:      model.JobStatusPending,
		MaxAttempts: 5,
		NextRunAt:   now,
	}
	if err := repo.Enqueue(ctx, dup); err != nil {
		t.Fatalf("重复入队应静默成功: %v", err)
	}

	var count int64
	db.Model(&model.SettlementJob{}).Where("round_id = ?", "R1").Count(&count)
	if count != 1 {
		t.Fatalf("任务表应只有 1 条记录, got %d", count)
	}
}

// 进程在结算中途崩溃会把任务遗留在 RUNNING，
// 超过租约窗口后必须能被扫回并接管重跑，否则这一局永远悬着
func TestStaleRunningJobReclaimed(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()
	now := time.Now()

	job := &model.SettlementJob{
		RoundID:     "R2",
		TableID:     1,
		Status:      model.JobStatusPending,
		MaxAttempts: 5,
		NextRunAt:   now,
	}
	if err := repo.Enqueue(ctx, job); err != nil {
		t.Fatalf("入队失败: %v", err)
	}

	// 认领后模拟崩溃：不再推进任何状态
	if err := repo.Claim(ctx, "R2", model.JobStatusPending); err != nil {
		t.Fatalf("认领失败: %v", err)
	}

	// 租约未过期：RUNNING 不应出现在扫描结果里
	fresh, err := repo.ListDue(ctx, now.Add(time.Hour), now.Add(-time.Minute), 10)
	if err != nil {
		t.Fatalf("ListDue 失败: %v", err)
	}
	if len(fresh) != 0 {
		t.Fatalf("租约内的 RUNNING 不应到期, got %d 条", len(fresh))
	}

	// 租约过期：任务必须被扫回
	later := now.Add(2 * time.Minute)
	staleBefore := later.Add(-time.Minute)
	due, err := repo.ListDue(ctx, later, staleBefore, 10)
	if err != nil {
		t.Fatalf("ListDue 失败: %v", err)
	}
	if len(due) != 1 || due[0].RoundID != "R2" || due[0].Status != model.JobStatusRunning {
		t.Fatalf("超过租约的 RUNNING 任务应被扫回, got %+v", due)
	}

	// CAS 接管：只能成功一次，接管即续约
	if err := repo.Reclaim(ctx, "R2", staleBefore, later); err != nil {
		t.Fatalf("接管失败: %v", err)
	}
	if err := repo.Reclaim(ctx, "R2", staleBefore, later); !errors.Is(err, ErrJobStatusInvalid) {
		t.Fatalf("重复接管应失败, got %v", err)
	}

	// 接管后的任务处于 RUNNING，失败路径照常走退避排期
	if err := repo.ScheduleRetry(ctx, "R2", later.Add(2*time.Second), "storage timeout"); err != nil {
		t.Fatalf("接管后排期重试失败: %v", err)
	}
	got, err := repo.GetByRoundID(ctx, "R2")
	if err != nil {
		t.Fatalf("查询任务失败: %v", err)
	}
	if got.Status != model.JobStatusAwaitingRetry || got.AttemptCount != 1 {
		t.Fatalf("接管重跑失败后应为 AWAITING_RETRY/attempt=1, got %s/%d", got.Status, got.AttemptCount)
	}
}
