package handler

import (
	"net/http"

	"star_trade/service"
	"star_trade/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StarHandler 星体与资金处理器
type StarHandler struct {
	market *service.Market
}

// NewStarHandler 创建星体处理器
func NewStarHandler(market *service.Market) *StarHandler {
	return &StarHandler{market: market}
}

// MintReq 铸造请求
type MintReq struct {
	Name        string   `json:"name" binding:"required"`
	Collections []string `json:"collections"`
	Owner       string   `json:"owner"` // 仅促销铸造使用，为空时给调用者
}

// TransferReq 转账/授权请求
type TransferReq struct {
	From string `json:"from"` // 仅transfer_from使用
	To   string `json:"to"`
}

// MintPromo 铸造促销星体
func (h *StarHandler) MintPromo(c *gin.Context) {
	var req MintReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	owner, err := parseAddress(req.Owner)
	if err != nil {
		failErr(c, err)
		return
	}

	id, err := h.market.MintPromo(c.Request.Context(), callerOf(c), req.Name, req.Collections, owner)
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"star_id": id})
}

// CreateGen0 铸造并上架一级拍卖
func (h *StarHandler) CreateGen0(c *gin.Context) {
	var req MintReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.market.CreatePrimaryAuction(c.Request.Context(), callerOf(c), req.Name, req.Collections)
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"star_id": id})
}

// GetStar 查询星体
func (h *StarHandler) GetStar(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	star, err := h.market.Registry().GetStar(id)
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, star)
}

// OwnerOf 查询所有者与授权
func (h *StarHandler) OwnerOf(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	owner, err := h.market.Registry().OwnerOf(id)
	if err != nil {
		failErr(c, err)
		return
	}
	approved, err := h.market.Registry().GetApproved(id)
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"owner": owner, "approved": approved})
}

// Metadata 查询元数据，内容原样返回
func (h *StarHandler) Metadata(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	data, err := h.market.Registry().TokenMetadata(c.Request.Context(), id, c.Query("hint"))
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"metadata": string(data)})
}

// BalanceOf 查询持有数量
func (h *StarHandler) BalanceOf(c *gin.Context) {
	owner, err := parseAddress(c.Param("addr"))
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"balance": h.market.Registry().BalanceOf(owner)})
}

// TokensOf 查询持有的全部星体
func (h *StarHandler) TokensOf(c *gin.Context) {
	owner, err := parseAddress(c.Param("addr"))
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"stars": h.market.Registry().TokensOf(owner)})
}

// TotalSupply 查询总量
func (h *StarHandler) TotalSupply(c *gin.Context) {
	success(c, gin.H{"total_supply": h.market.Registry().TotalSupply()})
}

// Transfer 所有者转账
func (h *StarHandler) Transfer(c *gin.Context) {
	h.withTransferReq(c, func(id uint64, req TransferReq) error {
		to, err := parseAddress(req.To)
		if err != nil {
			return err
		}
		return h.market.Transfer(c.Request.Context(), callerOf(c), to, id)
	})
}

// Approve 授权，to为空时清除授权
func (h *StarHandler) Approve(c *gin.Context) {
	h.withTransferReq(c, func(id uint64, req TransferReq) error {
		to, err := parseAddress(req.To)
		if err != nil {
			return err
		}
		return h.market.Approve(c.Request.Context(), callerOf(c), to, id)
	})
}

// TransferFrom 被授权人代转
func (h *StarHandler) TransferFrom(c *gin.Context) {
	h.withTransferReq(c, func(id uint64, req TransferReq) error {
		from, err := parseAddress(req.From)
		if err != nil {
			return err
		}
		to, err := parseAddress(req.To)
		if err != nil {
			return err
		}
		return h.market.TransferFrom(c.Request.Context(), callerOf(c), from, to, id)
	})
}

func (h *StarHandler) withTransferReq(c *gin.Context, fn func(id uint64, req TransferReq) error) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	var req TransferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := fn(id, req); err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"star_id": id})
}

// PendingFunds 查询待提取资金
func (h *StarHandler) PendingFunds(c *gin.Context) {
	addr, err := parseAddress(c.Param("addr"))
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"amount": h.market.PendingFunds(addr).Dec()})
}

// DepositReq 入金请求，金额为十进制wei
type DepositReq struct {
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

// Deposit 确认到账后为用户入金（CFO）
func (h *StarHandler) Deposit(c *gin.Context) {
	var req DepositReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		failErr(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		failErr(c, err)
		return
	}

	if err := h.market.Deposit(c.Request.Context(), callerOf(c), to, amount); err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"to": to, "balance": h.market.PendingFunds(to).Dec()})
}

// Withdraw 提取调用者的待提取资金
func (h *StarHandler) Withdraw(c *gin.Context) {
	amount, err := h.market.Withdraw(c.Request.Context(), callerOf(c))
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"amount": amount.Dec()})
}

// WithdrawEarnings 提取平台分成（CFO）
func (h *StarHandler) WithdrawEarnings(c *gin.Context) {
	var req TransferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		failErr(c, err)
		return
	}
	amount, err := h.market.WithdrawEarnings(c.Request.Context(), callerOf(c), to)
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"amount": amount.Dec()})
}

// Pause 暂停
func (h *StarHandler) Pause(c *gin.Context) {
	if err := h.market.Pause(callerOf(c)); err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"paused": true})
}

// Unpause 恢复
func (h *StarHandler) Unpause(c *gin.Context) {
	if err := h.market.Unpause(callerOf(c)); err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"paused": false})
}
