package service

import (
	"context"
	"errors"

	"sicbosettle/internal/infrastructure/lock"
	"sicbosettle/internal/repository"
)

// ============================================================================
// 错误分类
// ============================================================================
//
// 结算失败分两类，任务控制器据此决定重试还是立即终止：
//   - 校验类（不可重试）：开奖结果缺失、任务参数畸形。重试也不可能成功，
//     直接置为 EXHAUSTED 并告警，等人工介入
//   - 瞬时类（可重试）：锁竞争、乐观锁冲突、唯一键竞态、存储不可用、超时。
//     整局事务已干净回滚，按退避重试
//
// 未知错误一律按瞬时处理：存储故障的表现形式多种多样，宁可多试几次
// 再走退款补偿，也不要把可恢复的失败直接判死

var (
	ErrInvalidJobInput = errors.New("结算任务参数不合法")
	ErrInvalidDice     = errors.New("骰子点数不合法")
)

// IsNonRetryable 判断错误是否为不可重试的校验类错误
func IsNonRetryable(err error) bool {
	switch {
	case errors.Is(err, repository.ErrOutcomeNotFound),
		errors.Is(err, ErrInvalidJobInput),
		errors.Is(err, ErrInvalidDice):
		return true
	}
	return false
}

// IsRetryable 判断错误是否应进入重试路径
// 列出的是已知的瞬时错误；未知错误同样返回 true（见包头说明）
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsNonRetryable(err) {
		return false
	}
	switch {
	case errors.Is(err, repository.ErrOptimisticLock),
		errors.Is(err, lock.ErrLockFailed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return true
	}
	return true
}
