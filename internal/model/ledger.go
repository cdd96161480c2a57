package model

import (
	"time"
)

// ============================================================================
// 账本流水类型常量
// ============================================================================

const (
	LedgerEntryTypeDeposit = "DEPOSIT" // 充值入账
	LedgerEntryTypeWin     = "WIN"     // 结算派彩
	LedgerEntryTypeRefund  = "REFUND"  // 退款补偿
	LedgerEntryTypeDebit   = "DEBIT"   // 扣款（预留给投注服务）
)

// ============================================================================
// 账本流水实体
// ============================================================================

// LedgerEntry 账本流水表
// 记录账户的每一笔资金变动，是对账和幂等的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. (bet_no, type) 联合唯一索引是幂等护栏 —— 同一注单同一类型的资金
//    变动最多落库一次，重放结算/退款时命中唯一键即为已处理
// 3. 记录变动前后余额 —— 便于校验余额一致性
type LedgerEntry struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"`            // 流水号（全局唯一）
	UserID        int64     `gorm:"index;not null" json:"user_id"`                                    // 用户ID
	BetNo         string    `gorm:"type:varchar(64);uniqueIndex:uk_bet_type;not null" json:"bet_no"`  // 关联注单号（幂等键主体）
	Type          string    `gorm:"type:varchar(20);uniqueIndex:uk_bet_type;not null" json:"type"`    // 流水类型（幂等键次维）
	RoundID       string    `gorm:"type:varchar(64);index;not null" json:"round_id"`                  // 局号
	Amount        int64     `gorm:"not null" json:"amount"`                                           // 金额（正数入账，负数出账）
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`                                   // 变动前余额
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`                                    // 变动后余额
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`                                  // 备注
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entry"
}
