package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BetStatusPending   = "PENDING"   // 待结算
	BetStatusSettled   = "SETTLED"   // 已结算（输赢均为 SETTLED，赢家另记 is_win）
	BetStatusCancelled = "CANCELLED" // 已取消（局作废）
	BetStatusRefunded  = "REFUNDED"  // 已退款（重试耗尽后的补偿）
)

// ValidBetTransitions 注单状态只允许从 PENDING 出发，且只流转一次
var ValidBetTransitions = map[string][]string{
	BetStatusPending: {BetStatusSettled, BetStatusCancelled, BetStatusRefunded},
}

func CanBetTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidBetTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// BetRecord 注单表
// 下注时由投注服务创建（本系统不负责），结算或退款时恰好被修改一次
//
// 【重要】注单不允许物理删除，局作废时走 CANCELLED/软归档，保证审计可追溯
type BetRecord struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	BetNo         string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"bet_no"`      // 注单号（全局唯一）
	UserID        int64           `gorm:"index;not null" json:"user_id"`                            // 用户ID
	TableID       int64           `gorm:"not null" json:"table_id"`                                 // 桌台ID
	RoundID       string          `gorm:"type:varchar(64);index:idx_round_status;not null" json:"round_id"` // 局号
	Category      string          `gorm:"type:varchar(32);not null" json:"category"`                // 玩法，如 big / total-12 / pair-4 / combo-2-5
	Stake         int64           `gorm:"not null" json:"stake"`                                    // 本金（分）
	Odds          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"odds"`                  // 下注时锁定的赔率
	Status        string          `gorm:"type:varchar(20);index:idx_round_status;not null" json:"status"`
	IsWin         bool            `gorm:"not null;default:false" json:"is_win"`
	WinAmount     int64           `gorm:"not null;default:0" json:"win_amount"`     // 派彩金额（分），输单为 0
	BalanceBefore int64           `gorm:"not null;default:0" json:"balance_before"` // 结算/退款前余额快照
	BalanceAfter  int64           `gorm:"not null;default:0" json:"balance_after"`  // 结算/退款后余额快照
	Archived      bool            `gorm:"not null;default:false" json:"archived"`   // 软归档标记
	SettledAt     *time.Time      `json:"settled_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BetRecord) TableName() string {
	return "bet_record"
}
