package model

import (
	"time"
)

// GameOutcome 开奖结果表
// 一局（round）对应唯一一条开奖记录，由上游开奖流程写入，结算核心只读
//
// 【大小规则】本系统取 big = 总点数 11~18，small = 3~10
// （上游资料中 11~17 与 11~18 两种口径并存，这里统一取 11~18，
// 保证任意总点数都恰好落在大/小之一）
type GameOutcome struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoundID     string    `gorm:"type:varchar(64);uniqueIndex:uk_round_table;not null" json:"round_id"` // 局号
	TableID     int64     `gorm:"uniqueIndex:uk_round_table;not null" json:"table_id"`                  // 桌台ID
	Die1        int       `gorm:"not null" json:"die1"`                                                 // 骰子点数 1~6
	Die2        int       `gorm:"not null" json:"die2"`
	Die3        int       `gorm:"not null" json:"die3"`
	Total       int       `gorm:"not null" json:"total"`        // 总点数 3~18
	IsBig       bool      `gorm:"not null" json:"is_big"`       // 大：11~18
	IsOdd       bool      `gorm:"not null" json:"is_odd"`       // 单
	IsTriple    bool      `gorm:"not null" json:"is_triple"`    // 围骰（三枚同点）
	TripleValue int       `gorm:"not null;default:0" json:"triple_value"`
	IsPair      bool      `gorm:"not null" json:"is_pair"`      // 对子（恰好两枚同点）
	PairValue   int       `gorm:"not null;default:0" json:"pair_value"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (GameOutcome) TableName() string {
	return "game_outcome"
}
