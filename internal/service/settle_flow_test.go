package service

import (
	"context"
	"encoding/json"
	"testing"

	"sicbosettle/internal/config"
	"sicbosettle/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 结算/退款的资金不变量需要真实的事务和唯一索引才验得动，
// 这里用内存 sqlite + miniredis 跑完整的服务层流程

type flowEnv struct {
	db     *gorm.DB
	settle *SettleService
	refund *RefundService
}

func newFlowEnv(t *testing.T) *flowEnv {
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

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{Notification: "settle.notification.test"},
		},
		Business: config.BusinessConfig{RoundLockTTLSec: 30},
	}

	return &flowEnv{
		db:     db,
		settle: NewSettleService(db, rdb, cfg),
		refund: NewRefundService(db, rdb, cfg),
	}
}

func seedAccount(t *testing.T, db *gorm.DB, userID, balance int64) {
	t.Helper()
	if err := db.Create(&model.LedgerAccount{UserID: userID, Balance: balance}).Error; err != nil {
		t.Fatalf("创建账户失败: %v", err)
	}
}

func seedOutcome(t *testing.T, db *gorm.DB, roundID string, tableID int64, d1, d2, d3 int) {
	t.Helper()
	total := d1 + d2 + d3
	if err := db.Create(&model.GameOutcome{
		RoundID: roundID,
		TableID: tableID,
		Die1:    d1,
		Die2:    d2,
		Die3:    d3,
		Total:   total,
		IsBig:   total >= 11,
		IsOdd:   total%2 == 1,
	}).Error; err != nil {
		t.Fatalf("创建开奖结果失败: %v", err)
	}
}

func seedBet(t *testing.T, db *gorm.DB, betNo string, userID int64, roundID, category string, stake int64, odds string) {
	t.Helper()
	if err := db.Create(&model.BetRecord{
		BetNo:    betNo,
		UserID:   userID,
		TableID:  1,
		RoundID:  roundID,
		Category: category,
		Stake:    stake,
		Odds:     decimal.RequireFromString(odds),
		Status:   model.BetStatusPending,
	}).Error; err != nil {
		t.Fatalf("创建注单失败: %v", err)
	}
}

func balanceOf(t *testing.T, db *gorm.DB, userID int64) int64 {
	t.Helper()
	var account model.LedgerAccount
	if err := db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		t.Fatalf("查询账户失败: %v", err)
	}
	return account.Balance
}

func ledgerCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&model.LedgerEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("统计流水失败: %v", err)
	}
	return count
}

// 第二笔派彩失败时整局回滚：第一笔注单仍为 PENDING、
// 无任何流水落库、余额不动；修复故障后重试同一局恰好结算一次
func TestSettleRollbackKeepsRoundPending(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	seedOutcome(t, env.db, "R100", 1, 3, 4, 5) // 总点数 12：big / even
	seedAccount(t, env.db, 1, 10000)
	// 用户2没有账户，对它的派彩入账会失败
	seedBet(t, env.db, "B1", 1, "R100", "big", 1000, "1")
	seedBet(t, env.db, "B2", 2, "R100", "big", 1000, "1")

	if _, err := env.settle.Settle(ctx, "R100", 1); err == nil {
		t.Fatal("第二笔派彩失败时整局结算应当报错")
	}

	var bet model.BetRecord
	if err := env.db.Where("bet_no = ?", "B1").First(&bet).Error; err != nil {
		t.Fatalf("查询注单失败: %v", err)
	}
	if bet.Status != model.BetStatusPending {
		t.Errorf("回滚后第一笔注单应仍为 PENDING, got %s", bet.Status)
	}
	if got := ledgerCount(t, env.db); got != 0 {
		t.Errorf("回滚后不应有任何流水, got %d 条", got)
	}
	if got := balanceOf(t, env.db, 1); got != 10000 {
		t.Errorf("回滚后余额不应变动, got %d", got)
	}

	// 补上缺失的账户后重试同一局
	seedAccount(t, env.db, 2, 0)
	result, err := env.settle.Settle(ctx, "R100", 1)
	if err != nil {
		t.Fatalf("重试结算失败: %v", err)
	}
	if result.SettledCount != 2 || result.TotalPayout != 2000 {
		t.Fatalf("重试应结算 2 笔共派彩 2000, got settled=%d payout=%d",
			result.SettledCount, result.TotalPayout)
	}
	if got := balanceOf(t, env.db, 1); got != 11000 {
		t.Errorf("用户1余额应为 11000, got %d", got)
	}
	if got := balanceOf(t, env.db, 2); got != 1000 {
		t.Errorf("用户2余额应为 1000, got %d", got)
	}
	if got := ledgerCount(t, env.db); got != 2 {
		t.Errorf("重试后应恰好 2 条流水, got %d", got)
	}
}

// 重放已结算的局：零计数成功，没有新流水，余额不动
func TestSettleReplayIsNoop(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	seedOutcome(t, env.db, "R200", 1, 6, 6, 5) // 总点数 17：big / odd
	seedAccount(t, env.db, 1, 5000)
	seedBet(t, env.db, "B10", 1, "R200", "big", 1000, "1")
	seedBet(t, env.db, "B11", 1, "R200", "small", 2000, "1")

	first, err := env.settle.Settle(ctx, "R200", 1)
	if err != nil {
		t.Fatalf("结算失败: %v", err)
	}
	if first.SettledCount != 2 || first.WinnerCount != 1 || first.TotalPayout != 1000 {
		t.Fatalf("首次结算结果异常: %+v", first)
	}
	wantBalance := balanceOf(t, env.db, 1)
	wantEntries := ledgerCount(t, env.db)

	second, err := env.settle.Settle(ctx, "R200", 1)
	if err != nil {
		t.Fatalf("重放结算应为安全空转: %v", err)
	}
	if second.SettledCount != 0 {
		t.Errorf("重放不应再结算任何注单, got %d", second.SettledCount)
	}
	if got := ledgerCount(t, env.db); got != wantEntries {
		t.Errorf("重放不应新增流水: want %d, got %d", wantEntries, got)
	}
	if got := balanceOf(t, env.db, 1); got != wantBalance {
		t.Errorf("重放不应改动余额: want %d, got %d", wantBalance, got)
	}
}

// 退款补偿：每一笔待结算注单的本金都要回到账上，重放安全空转
func TestRefundRoundRefundsAllPending(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	seedAccount(t, env.db, 1, 5000)
	seedAccount(t, env.db, 2, 0)
	seedBet(t, env.db, "B20", 1, "R300", "big", 700, "1")
	seedBet(t, env.db, "B21", 2, "R300", "total-12", 300, "6")

	result, err := env.refund.RefundRound(ctx, "R300")
	if err != nil {
		t.Fatalf("退款失败: %v", err)
	}
	if result.RefundedCount != 2 || result.TotalRefunded != 1000 {
		t.Fatalf("应退 2 笔共 1000, got %+v", result)
	}
	if got := balanceOf(t, env.db, 1); got != 5700 {
		t.Errorf("用户1余额应为 5700, got %d", got)
	}
	if got := balanceOf(t, env.db, 2); got != 300 {
		t.Errorf("用户2余额应为 300, got %d", got)
	}

	var bets []*model.BetRecord
	if err := env.db.Where("round_id = ?", "R300").Find(&bets).Error; err != nil {
		t.Fatalf("查询注单失败: %v", err)
	}
	for _, b := range bets {
		if b.Status != model.BetStatusRefunded {
			t.Errorf("注单 %s 应为 REFUNDED, got %s", b.BetNo, b.Status)
		}
	}

	wantEntries := ledgerCount(t, env.db)
	replay, err := env.refund.RefundRound(ctx, "R300")
	if err != nil {
		t.Fatalf("重放退款应为安全空转: %v", err)
	}
	if replay.RefundedCount != 0 {
		t.Errorf("重放不应再退任何注单, got %d", replay.RefundedCount)
	}
	if got := ledgerCount(t, env.db); got != wantEntries {
		t.Errorf("重放不应新增流水: want %d, got %d", wantEntries, got)
	}
}

// 同一用户同一局的多笔中奖聚合为一条通知事件
func TestSettleAggregatesWinnersPerUser(t *testing.T) {
	env := newFlowEnv(t)
	ctx := context.Background()

	seedOutcome(t, env.db, "R400", 1, 2, 4, 6) // 总点数 12：big / even / combo-2-4
	seedAccount(t, env.db, 1, 0)
	seedBet(t, env.db, "B30", 1, "R400", "big", 1000, "1")
	seedBet(t, env.db, "B31", 1, "R400", "combo-2-4", 500, "5")

	result, err := env.settle.Settle(ctx, "R400", 1)
	if err != nil {
		t.Fatalf("结算失败: %v", err)
	}
	if result.WinnerCount != 1 || result.TotalPayout != 3500 {
		t.Fatalf("应有 1 个赢家共派彩 3500, got %+v", result)
	}
	if got := balanceOf(t, env.db, 1); got != 3500 {
		t.Errorf("余额应为 3500, got %d", got)
	}

	var msg model.OutboxMessage
	if err := env.db.Where("message_key = ?", "R400:1").First(&msg).Error; err != nil {
		t.Fatalf("查询中奖通知失败: %v", err)
	}
	var ev WinInfoEvent
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		t.Fatalf("解析中奖通知失败: %v", err)
	}
	if ev.Type != "win_info" || ev.UserID != 1 || ev.WinAmount != 3500 || ev.NewBalance != 3500 {
		t.Errorf("中奖通知内容异常: %+v", ev)
	}
	if len(ev.WinningBets) != 2 {
		t.Errorf("两笔中奖应聚合进同一条通知, got %d 笔", len(ev.WinningBets))
	}

	var summaryMsg model.OutboxMessage
	if err := env.db.Where("message_key = ?", "R400").First(&summaryMsg).Error; err != nil {
		t.Fatalf("查询结算汇总失败: %v", err)
	}
	var summary SettlementSummaryEvent
	if err := json.Unmarshal([]byte(summaryMsg.Payload), &summary); err != nil {
		t.Fatalf("解析结算汇总失败: %v", err)
	}
	if summary.SettledCount != 2 || summary.WinnerCount != 1 || summary.TotalPayout != 3500 {
		t.Errorf("结算汇总内容异常: %+v", summary)
	}
}
