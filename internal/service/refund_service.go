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

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefundService 退款补偿器
// 结算重试耗尽后的兜底：把一局里仍处 PENDING 的注单按本金原路退回，
// 保证每一分本金要么派彩要么退款，绝不凭空消失
type RefundService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	betRepo     *repository.BetRepository
	ledgerRepo  *repository.LedgerRepository
	outboxRepo  *repository.OutboxRepository
}

func NewRefundService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *RefundService {
	return &RefundService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		betRepo:     repository.NewBetRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// RefundResult 一局退款补偿的汇总结果
type RefundResult struct {
	RoundID       string `json:"round_id"`
	RefundedCount int    `json:"refunded_count"`
	TotalRefunded int64  `json:"total_refunded"`
}

// RefundInfoEvent 退款通知事件
type RefundInfoEvent struct {
	Type       string `json:"type"` // "refund_info"
	UserID     int64  `json:"user_id"`
	RoundID    string `json:"round_id"`
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance"`
}

// RefundRound 退还一局全部待结算注单的本金
//
// 幂等：流水类型用 REFUND，与派彩的 WIN 互不冲突；已 SETTLED / REFUNDED
// 的注单不会再出现在待结算集合里，重复执行安全空转
func (s *RefundService) RefundRound(ctx context.Context, roundID string) (*RefundResult, error) {
	if roundID == "" {
		return nil, fmt.Errorf("%w: round_id 为空", ErrInvalidJobInput)
	}

	start := time.Now()

	// 与结算共用同一把按局互斥锁，退款和结算绝不同时跑同一局
	roundLock := lock.NewRoundLock(s.redisClient, roundID, uuid.NewString(),
		time.Duration(s.cfg.Business.RoundLockTTLSec)*time.Second)
	if err := roundLock.Lock(ctx, 100*time.Millisecond, 10); err != nil {
		metrics.RecordRefund("lock_busy", start)
		return nil, err
	}
	defer roundLock.Unlock(ctx)

	result := &RefundResult{RoundID: roundID}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		bets, err := s.betRepo.ListPendingForUpdate(ctx, tx, roundID)
		if err != nil {
			return fmt.Errorf("加载待退款注单失败: %w", err)
		}
		if len(bets) == 0 {
			return nil
		}

		now := time.Now()
		for _, bet := range bets {
			change, err := s.ledgerRepo.Credit(ctx, tx, bet.UserID, bet.Stake,
				bet.BetNo, model.LedgerEntryTypeRefund, roundID,
				fmt.Sprintf("退款-%s-%s", roundID, bet.Category))
			if err != nil {
				return fmt.Errorf("退款入账失败: bet_no=%s: %w", bet.BetNo, err)
			}

			if err := s.betRepo.MarkRefunded(ctx, tx, bet.BetNo,
				change.Before, change.After, now); err != nil {
				return fmt.Errorf("更新注单失败: bet_no=%s: %w", bet.BetNo, err)
			}

			result.RefundedCount++
			result.TotalRefunded += bet.Stake

			ev := &RefundInfoEvent{
				Type:       "refund_info",
				UserID:     bet.UserID,
				RoundID:    roundID,
				Amount:     bet.Stake,
				NewBalance: change.After,
			}
			payloadBytes, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if err := s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
				MessageKey: fmt.Sprintf("%s:%s", roundID, bet.BetNo),
				Topic:      s.cfg.Kafka.Topic.Notification,
				Payload:    string(payloadBytes),
				Status:     model.OutboxStatusPending,
			}); err != nil {
				return fmt.Errorf("写入退款通知失败: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		metrics.RecordRefund("fail", start)
		return nil, err
	}

	if result.RefundedCount == 0 {
		metrics.RecordRefund("noop", start)
		log.Printf("[Refund] 本局无待退款注单，安全跳过: roundID=%s", roundID)
		return result, nil
	}

	metrics.RecordRefund("success", start)
	log.Printf("[Refund] 退款补偿完成: roundID=%s, refunded=%d, totalRefunded=%d",
		roundID, result.RefundedCount, result.TotalRefunded)

	return result, nil
}
