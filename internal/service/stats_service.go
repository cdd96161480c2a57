package service

import (
	"context"

	"sicbosettle/internal/model"
	"sicbosettle/internal/repository"

	"gorm.io/gorm"
)

// StatsService 统计/对账协作方的只读访问面
// 只读取已提交的开奖结果、注单和账本流水，结算主流程不依赖也不等待它
type StatsService struct {
	outcomeRepo *repository.OutcomeRepository
	betRepo     *repository.BetRepository
	ledgerRepo  *repository.LedgerRepository
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{
		outcomeRepo: repository.NewOutcomeRepository(db),
		betRepo:     repository.NewBetRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
	}
}

func (s *StatsService) GetOutcome(ctx context.Context, roundID string, tableID int64) (*model.GameOutcome, error) {
	return s.outcomeRepo.GetByRound(ctx, roundID, tableID)
}

func (s *StatsService) ListRoundBets(ctx context.Context, roundID string) ([]*model.BetRecord, error) {
	return s.betRepo.ListByRound(ctx, roundID)
}

func (s *StatsService) ListRoundLedger(ctx context.Context, roundID string) ([]*model.LedgerEntry, error) {
	return s.ledgerRepo.ListByRound(ctx, roundID)
}
