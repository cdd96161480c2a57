package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"sicbosettle/internal/config"
	"sicbosettle/internal/infrastructure/lock"
	"sicbosettle/internal/metrics"
	"sicbosettle/internal/model"
	"sicbosettle/internal/repository"
	"sicbosettle/internal/resolver"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SettleService 结算处理器
// 一次调用结算一局：加载开奖结果 → 解析中奖玩法 → 在单个事务内
// 逐注派彩并更新注单 → 事务内写入通知事件的 Outbox
type SettleService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	outcomeRepo *repository.OutcomeRepository
	betRepo     *repository.BetRepository
	ledgerRepo  *repository.LedgerRepository
	accountRepo *repository.AccountRepository
	outboxRepo  *repository.OutboxRepository
}

func NewSettleService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *SettleService {
	return &SettleService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		outcomeRepo: repository.NewOutcomeRepository(db),
		betRepo:     repository.NewBetRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// SettleResult 一局结算的汇总结果
type SettleResult struct {
	RoundID      string `json:"round_id"`
	SettledCount int    `json:"settled_count"`
	WinnerCount  int    `json:"winner_count"`
	TotalPayout  int64  `json:"total_payout"`
}

// WinningBet 中奖通知里的单注明细
type WinningBet struct {
	Category  string `json:"category"`
	Stake     int64  `json:"stake"`
	Odds      string `json:"odds"`
	WinAmount int64  `json:"win_amount"`
}

// WinInfoEvent 中奖通知事件（同一用户同一局的中奖注单聚合为一条）
type WinInfoEvent struct {
	Type        string       `json:"type"` // "win_info"
	UserID      int64        `json:"user_id"`
	RoundID     string       `json:"round_id"`
	WinAmount   int64        `json:"win_amount"`
	WinningBets []WinningBet `json:"winning_bets"`
	NewBalance  int64        `json:"new_balance"`
}

// SettlementSummaryEvent 整局结算汇总事件
type SettlementSummaryEvent struct {
	Type         string `json:"type"` // "settlement_summary"
	RoundID      string `json:"round_id"`
	SettledCount int    `json:"settled_count"`
	WinnerCount  int    `json:"winner_count"`
	TotalPayout  int64  `json:"total_payout"`
}

// ComputeWinAmount 计算派彩金额：本金 × 赔率，向下取整到分
func ComputeWinAmount(stake int64, odds decimal.Decimal) int64 {
	return decimal.NewFromInt(stake).Mul(odds).Floor().IntPart()
}

// Settle 结算一局
//
// 整局一个事务：任意一笔派彩失败则全部回滚，外部观察者永远看不到
// "半局已结算"的中间态。失败由任务控制器整局重试，账本幂等键保证
// 重试不会重复派彩。重放一个已全部结算的局会发现无待结算注单，
// 安全空转返回零计数
func (s *SettleService) Settle(ctx context.Context, roundID string, tableID int64) (*SettleResult, error) {
	if roundID == "" {
		return nil, fmt.Errorf("%w: round_id 为空", ErrInvalidJobInput)
	}

	start := time.Now()

	// 按局互斥：同一局同一时刻至多一个活跃结算尝试
	roundLock := lock.NewRoundLock(s.redisClient, roundID, uuid.NewString(),
		time.Duration(s.cfg.Business.RoundLockTTLSec)*time.Second)
	if err := roundLock.Lock(ctx, 100*time.Millisecond, 10); err != nil {
		metrics.RecordSettle("lock_busy", start)
		return nil, err
	}
	defer roundLock.Unlock(ctx)

	// 开奖结果缺失是校验类失败，不开事务、不碰任何资金
	outcome, err := s.outcomeRepo.GetByRound(ctx, roundID, tableID)
	if err != nil {
		metrics.RecordSettle("fail", start)
		return nil, err
	}

	res, err := resolver.Resolve(outcome.Die1, outcome.Die2, outcome.Die3)
	if err != nil {
		metrics.RecordSettle("fail", start)
		return nil, fmt.Errorf("%w: %v", ErrInvalidDice, err)
	}

	result := &SettleResult{RoundID: roundID}
	winners := make(map[int64]*WinInfoEvent)
	winnerOrder := make([]int64, 0)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 锁定并按注单ID升序加载待结算注单，顺序确定、审计可复现
		bets, err := s.betRepo.ListPendingForUpdate(ctx, tx, roundID)
		if err != nil {
			return fmt.Errorf("加载待结算注单失败: %w", err)
		}
		if len(bets) == 0 {
			// 已全部结算（重复投递）或本局无注单，安全空转
			return nil
		}

		now := time.Now()
		for _, bet := range bets {
			isWin := res.Winning.Contains(bet.Category)
			var winAmount int64
			var balanceBefore, balanceAfter int64

			if isWin {
				winAmount = ComputeWinAmount(bet.Stake, bet.Odds)
				change, err := s.ledgerRepo.Credit(ctx, tx, bet.UserID, winAmount,
					bet.BetNo, model.LedgerEntryTypeWin, roundID,
					fmt.Sprintf("派彩-%s-%s", roundID, bet.Category))
				if err != nil {
					// 单笔失败整局回滚，交给任务控制器重试
					return fmt.Errorf("派彩入账失败: bet_no=%s: %w", bet.BetNo, err)
				}
				balanceBefore, balanceAfter = change.Before, change.After
			} else {
				// 输单不动余额，快照当前值即可
				account, err := s.accountRepo.GetByUserIDTx(ctx, tx, bet.UserID)
				if err != nil {
					return fmt.Errorf("查询账户失败: bet_no=%s: %w", bet.BetNo, err)
				}
				balanceBefore, balanceAfter = account.Balance, account.Balance
			}

			if err := s.betRepo.MarkSettled(ctx, tx, bet.BetNo, isWin, winAmount,
				balanceBefore, balanceAfter, now); err != nil {
				return fmt.Errorf("更新注单失败: bet_no=%s: %w", bet.BetNo, err)
			}

			result.SettledCount++
			if isWin {
				result.TotalPayout += winAmount
				ev, ok := winners[bet.UserID]
				if !ok {
					ev = &WinInfoEvent{Type: "win_info", UserID: bet.UserID, RoundID: roundID}
					winners[bet.UserID] = ev
					winnerOrder = append(winnerOrder, bet.UserID)
				}
				ev.WinAmount += winAmount
				ev.NewBalance = balanceAfter
				ev.WinningBets = append(ev.WinningBets, WinningBet{
					Category:  bet.Category,
					Stake:     bet.Stake,
					Odds:      bet.Odds.String(),
					WinAmount: winAmount,
				})
			}
		}
		result.WinnerCount = len(winners)

		// 通知事件与结算同事务落库，由 OutboxSender 异步送达
		for _, userID := range winnerOrder {
			if err := s.createOutbox(ctx, tx, fmt.Sprintf("%s:%d", roundID, userID), winners[userID]); err != nil {
				return fmt.Errorf("写入中奖通知失败: %w", err)
			}
		}
		summary := &SettlementSummaryEvent{
			Type:         "settlement_summary",
			RoundID:      roundID,
			SettledCount: result.SettledCount,
			WinnerCount:  result.WinnerCount,
			TotalPayout:  result.TotalPayout,
		}
		if err := s.createOutbox(ctx, tx, roundID, summary); err != nil {
			return fmt.Errorf("写入结算汇总失败: %w", err)
		}

		return nil
	})

	if err != nil {
		metrics.RecordSettle("fail", start)
		return nil, err
	}

	if result.SettledCount == 0 {
		metrics.RecordSettle("noop", start)
		log.Printf("[Settle] 本局无待结算注单，安全跳过: roundID=%s", roundID)
		return result, nil
	}

	metrics.RecordSettle("success", start)
	log.Printf("[Settle] 结算成功: roundID=%s, dice=%d-%d-%d, settled=%d, winners=%d, totalPayout=%d",
		roundID, outcome.Die1, outcome.Die2, outcome.Die3,
		result.SettledCount, result.WinnerCount, result.TotalPayout)

	return result, nil
}

func (s *SettleService) createOutbox(ctx context.Context, tx *gorm.DB, key string, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: key,
		Topic:      s.cfg.Kafka.Topic.Notification,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	})
}
