package model

import (
	"time"
)

// LedgerAccount 用户账户表
// 记录用户的余额（单位：分），是整个结算系统的资金核心
type LedgerAccount struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"` // 用户ID，业务方传入
	Balance   int64     `gorm:"not null;default:0" json:"balance"`   // 可用余额（分）
	Version   int       `gorm:"not null;default:0" json:"version"`   // 乐观锁版本号，防止并发修改丢失更新
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LedgerAccount) TableName() string {
	return "ledger_account"
}
