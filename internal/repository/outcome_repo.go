package repository

import (
	"context"
	"errors"

	"sicbosettle/internal/model"

	"gorm.io/gorm"
)

var ErrOutcomeNotFound = errors.New("开奖结果不存在")

type OutcomeRepository struct {
	db *gorm.DB
}

func NewOutcomeRepository(db *gorm.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

func (r *OutcomeRepository) Create(ctx context.Context, tx *gorm.DB, outcome *model.GameOutcome) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(outcome).Error
}

// GetByRound 按 (round_id, table_id) 读取唯一开奖结果
// 不存在视为校验失败（不可重试），由上层直接终止任务
func (r *OutcomeRepository) GetByRound(ctx context.Context, roundID string, tableID int64) (*model.GameOutcome, error) {
	var outcome model.GameOutcome
	err := r.db.WithContext(ctx).
		Where("round_id = ? AND table_id = ?", roundID, tableID).
		First(&outcome).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOutcomeNotFound
		}
		return nil, err
	}
	return &outcome, nil
}
