package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"sicbosettle/internal/infrastructure/lock"
	"sicbosettle/internal/repository"

	"github.com/shopspring/decimal"
)

func TestComputeWinAmount(t *testing.T) {
	tests := []struct {
		name  string
		stake int64
		odds  string
		want  int64
	}{
		{"total-12-odds-6", 10000, "6", 60000}, // 100元押 total-12，1赔6
		{"big-odds-1", 5000, "1", 5000},
		{"fractional-odds", 1000, "0.5", 500},
		{"triple-odds-180", 200, "180", 36000},
		{"floor-to-cent", 101, "0.5", 50}, // 50.5分向下取整
		{"zero-stake", 0, "6", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			odds, err := decimal.NewFromString(tt.odds)
			if err != nil {
				t.Fatalf("bad odds %q: %v", tt.odds, err)
			}
			if got := ComputeWinAmount(tt.stake, odds); got != tt.want {
				t.Errorf("ComputeWinAmount(%d, %s) = %d, want %d", tt.stake, tt.odds, got, tt.want)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		nonRetryable bool
	}{
		{"outcome-missing", repository.ErrOutcomeNotFound, true},
		{"invalid-input", ErrInvalidJobInput, true},
		{"invalid-dice", ErrInvalidDice, true},
		{"optimistic-lock", repository.ErrOptimisticLock, false},
		{"round-lock-busy", lock.ErrLockFailed, false},
		{"deadline", context.DeadlineExceeded, false},
		{"unknown-storage-error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNonRetryable(tt.err); got != tt.nonRetryable {
				t.Errorf("IsNonRetryable(%v) = %v, want %v", tt.err, got, tt.nonRetryable)
			}
			if got := IsRetryable(tt.err); got != !tt.nonRetryable {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, !tt.nonRetryable)
			}
		})
	}

	if IsRetryable(nil) {
		t.Error("IsRetryable(nil) = true, want false")
	}
}

// 校验包装后的错误依然能被正确分类
func TestErrorClassificationWrapped(t *testing.T) {
	wrapped := fmt.Errorf("派彩入账失败: %w", repository.ErrOptimisticLock)
	if IsNonRetryable(wrapped) {
		t.Error("包装后的乐观锁冲突不应判为不可重试")
	}
	if !IsRetryable(wrapped) {
		t.Error("包装后的乐观锁冲突应判为可重试")
	}

	wrappedValidation := fmt.Errorf("加载开奖结果失败: %w", repository.ErrOutcomeNotFound)
	if !IsNonRetryable(wrappedValidation) {
		t.Error("包装后的开奖缺失应判为不可重试")
	}
}
