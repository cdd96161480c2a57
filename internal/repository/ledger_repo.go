package repository

import (
	"context"
	"errors"
	"fmt"

	"sicbosettle/internal/model"
	"sicbosettle/pkg/idgen"

	"gorm.io/gorm"
)

// ============================================================================
// 账本仓储（Ledger Store）
// ============================================================================
//
// 对外暴露幂等的 Credit / Debit：
//   - 幂等键 = (bet_no, type)，由 ledger_entry 表的联合唯一索引强制
//   - 重放同一幂等键不会二次改余额，而是返回首次落库的前后余额
//   - 余额变动走 account 表的版本号守卫，防止与充值、其他游戏结算并发时
//     丢失更新；冲突以 ErrOptimisticLock 上抛，由任务控制器整局重试

// BalanceChange 一次资金变动的前后余额
type BalanceChange struct {
	Before  int64
	After   int64
	Applied bool // false 表示命中幂等键，本次未实际改动余额
}

type LedgerRepository struct {
	db          *gorm.DB
	accountRepo *AccountRepository
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{
		db:          db,
		accountRepo: NewAccountRepository(db),
	}
}

// Credit 幂等入账
// betNo+entryType 为幂等键；amount 必须为正数
func (r *LedgerRepository) Credit(ctx context.Context, tx *gorm.DB, userID, amount int64, betNo, entryType, roundID, remark string) (*BalanceChange, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("入账金额必须大于0: %d", amount)
	}
	return r.apply(ctx, tx, userID, amount, betNo, entryType, roundID, remark)
}

// Debit 幂等出账
func (r *LedgerRepository) Debit(ctx context.Context, tx *gorm.DB, userID, amount int64, betNo, entryType, roundID, remark string) (*BalanceChange, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("出账金额必须大于0: %d", amount)
	}
	return r.apply(ctx, tx, userID, -amount, betNo, entryType, roundID, remark)
}

// apply 执行一次带幂等保护的余额变动，amount 正数入账、负数出账
func (r *LedgerRepository) apply(ctx context.Context, tx *gorm.DB, userID, amount int64, betNo, entryType, roundID, remark string) (*BalanceChange, error) {
	if tx == nil {
		tx = r.db
	}

	// 幂等检查：该注单的同类流水已存在则直接返回当时的前后余额
	existing, err := r.getEntry(ctx, tx, betNo, entryType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &BalanceChange{Before: existing.BalanceBefore, After: existing.BalanceAfter, Applied: false}, nil
	}

	account, err := r.accountRepo.GetByUserIDTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if amount > 0 {
		err = r.accountRepo.Credit(ctx, tx, userID, amount, account.Version)
	} else {
		err = r.accountRepo.Debit(ctx, tx, userID, -amount, account.Version)
	}
	if err != nil {
		return nil, err
	}

	entry := &model.LedgerEntry{
		EntryNo:       idgen.GenerateEntryNo(),
		UserID:        userID,
		BetNo:         betNo,
		Type:          entryType,
		RoundID:       roundID,
		Amount:        amount,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance + amount,
		Remark:        remark,
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		// 并发重放恰好同时写入同一幂等键：唯一键冲突视为已处理
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrOptimisticLock
		}
		return nil, err
	}

	return &BalanceChange{Before: entry.BalanceBefore, After: entry.BalanceAfter, Applied: true}, nil
}

func (r *LedgerRepository) getEntry(ctx context.Context, tx *gorm.DB, betNo, entryType string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := tx.WithContext(ctx).
		Where("bet_no = ? AND type = ?", betNo, entryType).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListByRound 查询一局的全部流水（对账用）
func (r *LedgerRepository) ListByRound(ctx context.Context, roundID string) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// ListByUserID 分页查询用户流水
func (r *LedgerRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	var entries []*model.LedgerEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}
