package handler

import (
	"net/http"
	"strconv"

	"star_trade/model"
	"star_trade/service"

	"github.com/gin-gonic/gin"
)

// EventLister 按星体查询事件流水
type EventLister func(starID uint64, limit int) ([]model.EventLog, error)

// TradeHandler 成交记录与事件流水处理器
type TradeHandler struct {
	tradeService service.TradeService
	listEvents   EventLister
}

// NewTradeHandler 创建成交记录处理器，两个依赖均可为空
func NewTradeHandler(tradeService service.TradeService, listEvents EventLister) *TradeHandler {
	return &TradeHandler{
		tradeService: tradeService,
		listEvents:   listEvents,
	}
}

// GetTradeRecords 查询成交记录
func (h *TradeHandler) GetTradeRecords(c *gin.Context) {
	if h.tradeService == nil {
		fail(c, http.StatusServiceUnavailable, "trade records are not available")
		return
	}

	// 转换类型
	starID, _ := strconv.ParseUint(c.Query("star_id"), 10, 64)
	page, _ := strconv.Atoi(c.Query("page"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	if pageSize <= 0 {
		pageSize = 10
	}

	req := service.GetTradeRecordsReq{
		UserAddr: c.Query("user_addr"),
		StarID:   starID,
		Page:     page,
		PageSize: pageSize,
	}

	records, total, err := h.tradeService.GetTradeRecords(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}

	success(c, gin.H{
		"list":      records,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetStarEvents 查询星体的事件流水（按时间正序）
func (h *TradeHandler) GetStarEvents(c *gin.Context) {
	if h.listEvents == nil {
		fail(c, http.StatusServiceUnavailable, "event journal is not available")
		return
	}
	id, valid := parseID(c)
	if !valid {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	logs, err := h.listEvents(id, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"list": logs, "total": len(logs)})
}
