package handler

import (
	"star_trade/service"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册路由，写接口经auth验签；tradeService或listEvents为空时对应查询接口返回503
func RegisterRoutes(r *gin.Engine, market *service.Market, tradeService service.TradeService, listEvents EventLister, auth gin.HandlerFunc) {
	stars := NewStarHandler(market)
	auctions := NewAuctionHandler(market)
	trades := NewTradeHandler(tradeService, listEvents)

	v1 := r.Group("/api/v1")
	signed := v1.Group("", auth)

	// 查询
	v1.GET("/stars/:id", stars.GetStar)
	v1.GET("/stars/:id/owner", stars.OwnerOf)
	v1.GET("/stars/:id/metadata", stars.Metadata)
	v1.GET("/stars/:id/events", trades.GetStarEvents)
	v1.GET("/owners/:addr/balance", stars.BalanceOf)
	v1.GET("/owners/:addr/stars", stars.TokensOf)
	v1.GET("/supply", stars.TotalSupply)
	v1.GET("/auctions", auctions.ListAuctions)
	v1.GET("/auctions/:id", auctions.GetAuction)
	v1.GET("/stats/average", auctions.AveragePrice)
	v1.GET("/funds/:addr", stars.PendingFunds)
	v1.GET("/trade/records", trades.GetTradeRecords)

	// 需签名
	signed.POST("/stars/promo", stars.MintPromo)
	signed.POST("/stars/gen0", stars.CreateGen0)
	signed.POST("/stars/:id/transfer", stars.Transfer)
	signed.POST("/stars/:id/approve", stars.Approve)
	signed.POST("/stars/:id/transfer_from", stars.TransferFrom)
	signed.POST("/auctions", auctions.CreateAuction)
	signed.POST("/auctions/:id/bid", auctions.Bid)
	signed.POST("/auctions/:id/cancel", auctions.CancelAuction)
	signed.POST("/funds/deposit", stars.Deposit)
	signed.POST("/funds/withdraw", stars.Withdraw)
	signed.POST("/funds/earnings", stars.WithdrawEarnings)
	signed.POST("/admin/pause", stars.Pause)
	signed.POST("/admin/unpause", stars.Unpause)
}
