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
	ErrBetNotFound      = errors.New("注单不存在")
	ErrBetStatusInvalid = errors.New("注单状态不合法")
)

type BetRepository struct {
	db *gorm.DB
}

func NewBetRepository(db *gorm.DB) *BetRepository {
	return &BetRepository{db: db}
}

func (r *BetRepository) Create(ctx context.Context, tx *gorm.DB, bet *model.BetRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(bet).Error
}

// ListPendingForUpdate 事务内锁定并加载一局的全部待结算注单
// 按注单ID升序，保证结算顺序确定、审计可复现
func (r *BetRepository) ListPendingForUpdate(ctx context.Context, tx *gorm.DB, roundID string) ([]*model.BetRecord, error) {
	var bets []*model.BetRecord
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("round_id = ? AND status = ?", roundID, model.BetStatusPending).
		Order("id ASC").
		Find(&bets).Error
	return bets, err
}

// MarkSettled 将单条注单置为已结算，写入输赢与前后余额快照
// WHERE 带上 PENDING 状态守卫：RowsAffected == 0 说明已被其他流程处理
func (r *BetRepository) MarkSettled(ctx context.Context, tx *gorm.DB, betNo string, isWin bool, winAmount, balanceBefore, balanceAfter int64, settledAt time.Time) error {
	if !model.CanBetTransitionTo(model.BetStatusPending, model.BetStatusSettled) {
		return ErrBetStatusInvalid
	}
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.BetRecord{}).
		Where("bet_no = ? AND status = ?", betNo, model.BetStatusPending).
		Updates(map[string]interface{}{
			"status":         model.BetStatusSettled,
			"is_win":         isWin,
			"win_amount":     winAmount,
			"balance_before": balanceBefore,
			"balance_after":  balanceAfter,
			"settled_at":     &settledAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBetStatusInvalid
	}
	return nil
}

// MarkRefunded 将单条注单置为已退款（重试耗尽后的补偿路径）
func (r *BetRepository) MarkRefunded(ctx context.Context, tx *gorm.DB, betNo string, balanceBefore, balanceAfter int64, refundedAt time.Time) error {
	if !model.CanBetTransitionTo(model.BetStatusPending, model.BetStatusRefunded) {
		return ErrBetStatusInvalid
	}
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.BetRecord{}).
		Where("bet_no = ? AND status = ?", betNo, model.BetStatusPending).
		Updates(map[string]interface{}{
			"status":         model.BetStatusRefunded,
			"balance_before": balanceBefore,
			"balance_after":  balanceAfter,
			"settled_at":     &refundedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBetStatusInvalid
	}
	return nil
}

func (r *BetRepository) GetByBetNo(ctx context.Context, betNo string) (*model.BetRecord, error) {
	var bet model.BetRecord
	err := r.db.WithContext(ctx).Where("bet_no = ?", betNo).First(&bet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBetNotFound
		}
		return nil, err
	}
	return &bet, nil
}

// ListByRound 查询一局的全部注单（统计/对账协作方只读访问）
func (r *BetRepository) ListByRound(ctx context.Context, roundID string) ([]*model.BetRecord, error) {
	var bets []*model.BetRecord
	err := r.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("id ASC").
		Find(&bets).Error
	return bets, err
}

// CountPendingByRound 统计一局剩余待结算注单数
func (r *BetRepository) CountPendingByRound(ctx context.Context, roundID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.BetRecord{}).
		Where("round_id = ? AND status = ?", roundID, model.BetStatusPending).
		Count(&count).Error
	return count, err
}

// Archive 软归档一局的终态注单，不做物理删除
func (r *BetRepository) Archive(ctx context.Context, roundID string) error {
	return r.db.WithContext(ctx).
		Model(&model.BetRecord{}).
		Where("round_id = ? AND status IN ?", roundID,
			[]string{model.BetStatusSettled, model.BetStatusCancelled, model.BetStatusRefunded}).
		Update("archived", true).Error
}
