package service

import (
	"context"
	"errors"
	"fmt"

	"sicbosettle/internal/model"
	"sicbosettle/internal/repository"

	"gorm.io/gorm"
)

// AccountService 账户查询与充值入口
// 充值走与结算同一套幂等账本 API，deposit_no 即幂等键主体
type AccountService struct {
	db          *gorm.DB
	accountRepo *repository.AccountRepository
	ledgerRepo  *repository.LedgerRepository
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		db:          db,
		accountRepo: repository.NewAccountRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
	}
}

func (s *AccountService) GetAccount(ctx context.Context, userID int64) (*model.LedgerAccount, error) {
	return s.accountRepo.GetOrCreate(ctx, userID)
}

// Deposit 充值（幂等）
// depositNo 由调用方生成并保证重试时不变
func (s *AccountService) Deposit(ctx context.Context, userID int64, amount int64, depositNo string) (*repository.BalanceChange, error) {
	if amount <= 0 {
		return nil, errors.New("充值金额必须大于0")
	}
	if depositNo == "" {
		return nil, errors.New("充值单号不能为空")
	}

	if _, err := s.accountRepo.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	var change *repository.BalanceChange
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		change, err = s.ledgerRepo.Credit(ctx, tx, userID, amount,
			depositNo, model.LedgerEntryTypeDeposit, "",
			fmt.Sprintf("充值-%s", depositNo))
		return err
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}
