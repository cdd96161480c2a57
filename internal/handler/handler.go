package handler

import (
	"errors"
	"strconv"

	"sicbosettle/internal/config"
	"sicbosettle/internal/repository"
	"sicbosettle/internal/service"
	"sicbosettle/pkg/clock"
	"sicbosettle/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService *service.AccountService
	jobService     *service.JobService
	statsService   *service.StatsService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, cfg *config.Config, clk clock.Clock) *Handler {
	return &Handler{
		accountService: service.NewAccountService(db),
		jobService:     service.NewJobService(db, cfg, clk),
		statsService:   service.NewStatsService(db),
	}
}

// ============================================================
// 账户相关接口
// ============================================================

// GetBalance 查询用户余额
// GET /api/v1/account/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"user_id": account.UserID,
		"balance": account.Balance,
	})
}

// DepositRequest 充值请求
type DepositRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	DepositNo string `json:"deposit_no" binding:"required"`
}

// Deposit 充值接口（幂等，deposit_no 为幂等键）
// POST /api/v1/account/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	change, err := h.accountService.Deposit(c.Request.Context(), req.UserID, req.Amount, req.DepositNo)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"user_id":        req.UserID,
		"balance_before": change.Before,
		"balance_after":  change.After,
		"applied":        change.Applied,
	})
}

// ============================================================
// 结算任务相关接口
// ============================================================

// EnqueueRequest 手工触发结算任务
type EnqueueRequest struct {
	RoundID string `json:"round_id" binding:"required"`
	TableID int64  `json:"table_id" binding:"required"`
}

// EnqueueSettleJob 手工入队结算任务（补录/运维用，与 Kafka 输入同样幂等）
// POST /api/v1/settle/enqueue
func (h *Handler) EnqueueSettleJob(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.jobService.Enqueue(c.Request.Context(), req.RoundID, req.TableID); err != nil {
		if errors.Is(err, service.ErrInvalidJobInput) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"round_id": req.RoundID})
}

// GetSettleJob 查询结算任务状态
// GET /api/v1/settle/job?round_id=xxx
func (h *Handler) GetSettleJob(c *gin.Context) {
	roundID := c.Query("round_id")
	if roundID == "" {
		response.ParamError(c, "round_id 参数错误")
		return
	}

	job, err := h.jobService.Get(c.Request.Context(), roundID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			response.BusinessError(c, response.CodeJobNotFound, "结算任务不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, job)
}

// CancelRequest 取消排队中的结算任务
type CancelRequest struct {
	RoundID string `json:"round_id" binding:"required"`
}

// CancelSettleJob 取消任务（仅限首次执行前，上游局作废时调用）
// POST /api/v1/settle/cancel
func (h *Handler) CancelSettleJob(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.jobService.Cancel(c.Request.Context(), req.RoundID); err != nil {
		if errors.Is(err, repository.ErrJobStatusInvalid) {
			response.BusinessError(c, response.CodeJobStatusInvalid, "任务已开始执行或已到终态，无法取消")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"round_id": req.RoundID})
}

// ============================================================
// 统计协作方只读接口
// ============================================================

// GetOutcome 查询一局开奖结果
// GET /api/v1/outcome?round_id=xxx&table_id=1
func (h *Handler) GetOutcome(c *gin.Context) {
	roundID := c.Query("round_id")
	tableID, err := strconv.ParseInt(c.Query("table_id"), 10, 64)
	if roundID == "" || err != nil {
		response.ParamError(c, "round_id/table_id 参数错误")
		return
	}

	outcome, err := h.statsService.GetOutcome(c.Request.Context(), roundID, tableID)
	if err != nil {
		if errors.Is(err, repository.ErrOutcomeNotFound) {
			response.BusinessError(c, response.CodeOutcomeNotFound, "开奖结果不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, outcome)
}

// ListRoundBets 查询一局全部注单
// GET /api/v1/round/bets?round_id=xxx
func (h *Handler) ListRoundBets(c *gin.Context) {
	roundID := c.Query("round_id")
	if roundID == "" {
		response.ParamError(c, "round_id 参数错误")
		return
	}

	bets, err := h.statsService.ListRoundBets(c.Request.Context(), roundID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"round_id": roundID,
		"total":    len(bets),
		"bets":     bets,
	})
}

// ListRoundLedger 查询一局全部账本流水（对账用）
// GET /api/v1/round/ledger?round_id=xxx
func (h *Handler) ListRoundLedger(c *gin.Context) {
	roundID := c.Query("round_id")
	if roundID == "" {
		response.ParamError(c, "round_id 参数错误")
		return
	}

	entries, err := h.statsService.ListRoundLedger(c.Request.Context(), roundID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"round_id": roundID,
		"total":    len(entries),
		"entries":  entries,
	})
}
