package handler

import (
	"net/http"

	"star_trade/service"
	"star_trade/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuctionHandler 拍卖处理器
type AuctionHandler struct {
	market *service.Market
}

// NewAuctionHandler 创建拍卖处理器
func NewAuctionHandler(market *service.Market) *AuctionHandler {
	return &AuctionHandler{market: market}
}

// CreateAuctionReq 上架请求，价格为十进制wei
type CreateAuctionReq struct {
	StarID        uint64 `json:"star_id" binding:"required"`
	StartingPrice string `json:"starting_price" binding:"required"`
	EndingPrice   string `json:"ending_price" binding:"required"`
	Duration      uint64 `json:"duration"` // 秒，为0时直接按结束价出售
}

// BidReq 出价请求
type BidReq struct {
	Amount string `json:"amount" binding:"required"`
}

// CreateAuction 所有者上架拍卖
func (h *AuctionHandler) CreateAuction(c *gin.Context) {
	var req CreateAuctionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	startingPrice, err := parsePrice(req.StartingPrice)
	if err != nil {
		failErr(c, err)
		return
	}
	endingPrice, err := parsePrice(req.EndingPrice)
	if err != nil {
		failErr(c, err)
		return
	}

	if err := h.market.CreateSaleAuction(c.Request.Context(), callerOf(c), req.StarID, startingPrice, endingPrice, req.Duration); err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"star_id": req.StarID})
}

// GetAuction 查询拍卖与当前价格
func (h *AuctionHandler) GetAuction(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	view, err := h.market.GetAuction(id)
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, view)
}

// ListAuctions 查询全部进行中的拍卖
func (h *AuctionHandler) ListAuctions(c *gin.Context) {
	list := h.market.ListAuctions()
	success(c, gin.H{"list": list, "total": len(list)})
}

// Bid 出价，从出价人已入金的余额中扣款，多付部分退回余额
func (h *AuctionHandler) Bid(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	var req BidReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	paid, err := parseAmount(req.Amount)
	if err != nil {
		failErr(c, err)
		return
	}

	price, err := h.market.Bid(c.Request.Context(), callerOf(c), id, paid)
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"star_id": id, "price": price.Dec()})
}

// CancelAuction 取消拍卖
func (h *AuctionHandler) CancelAuction(c *gin.Context) {
	id, valid := parseID(c)
	if !valid {
		return
	}
	if err := h.market.CancelAuction(c.Request.Context(), callerOf(c), id); err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"star_id": id})
}

// AveragePrice 最近一级成交均价与下一次一级拍卖起拍价
func (h *AuctionHandler) AveragePrice(c *gin.Context) {
	average := "0"
	if stats := h.market.Auction().Stats(); stats != nil {
		average = stats.AveragePrice().Dec()
	}
	success(c, gin.H{
		"average":    average,
		"gen0_price": h.market.Gen0Price().Dec(),
	})
}
