package service

import (
	"context"
	"encoding/json"
	"errors"

	"star_trade/model"
	"star_trade/utils"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TradeService 成交记录服务接口
type TradeService interface {
	Project(ctx context.Context, ev model.Event) error
	GetTradeRecords(ctx context.Context, req GetTradeRecordsReq) ([]model.SaleRecord, int64, error)
}

// tradeService 成交记录服务实现
type tradeService struct {
	db           *gorm.DB
	registryAddr common.Address
}

// NewTradeService 创建成交记录服务
func NewTradeService(db *gorm.DB, registryAddr common.Address) TradeService {
	return &tradeService{
		db:           db,
		registryAddr: registryAddr,
	}
}

// GetTradeRecordsReq 查询成交记录请求
type GetTradeRecordsReq struct {
	UserAddr string `json:"user_addr"` // 买家/卖家地址
	StarID   uint64 `json:"star_id"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// Project 将通知投影到星体表与成交表
func (s *tradeService) Project(ctx context.Context, ev model.Event) error {
	switch ev.Kind {
	case model.EventBirth:
		asset, err := newStarAsset(ev)
		if err != nil {
			return err
		}
		// 重放时保持幂等
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(asset).Error

	case model.EventTransfer:
		return s.db.WithContext(ctx).Model(&model.StarAsset{}).
			Where("id = ?", ev.StarID).
			Update("owner_addr", ev.To.Hex()).Error

	case model.EventAuctionSuccessful:
		record := newSaleRecord(ev, s.registryAddr, utils.GenerateTradeNo())
		if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
			utils.Logger.Error("写入成交记录失败", zap.Uint64("star_id", ev.StarID), zap.Error(err))
			return err
		}
		utils.Logger.Info("成交记录已写入", zap.String("trade_no", record.TradeNo), zap.Uint64("star_id", ev.StarID))
		return nil
	}
	return nil
}

// GetTradeRecords 查询成交记录
func (s *tradeService) GetTradeRecords(ctx context.Context, req GetTradeRecordsReq) ([]model.SaleRecord, int64, error) {
	var records []model.SaleRecord
	var total int64

	if req.Page <= 0 || req.PageSize <= 0 {
		return nil, 0, errors.New("page and page_size must be positive")
	}

	query := s.db.WithContext(ctx).Model(&model.SaleRecord{})
	if req.UserAddr != "" {
		addr := common.HexToAddress(req.UserAddr).Hex()
		query = query.Where("seller_addr = ? OR buyer_addr = ?", addr, addr)
	}
	if req.StarID > 0 {
		query = query.Where("star_id = ?", req.StarID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("trade_time DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func newStarAsset(ev model.Event) (*model.StarAsset, error) {
	collections, err := json.Marshal(ev.Collections)
	if err != nil {
		return nil, err
	}
	return &model.StarAsset{
		ID:          ev.StarID,
		Name:        ev.Name,
		Collections: string(collections),
		OwnerAddr:   ev.To.Hex(),
		BornAt:      ev.Time,
	}, nil
}

func newSaleRecord(ev model.Event, registryAddr common.Address, tradeNo string) *model.SaleRecord {
	return &model.SaleRecord{
		TradeNo:    tradeNo,
		StarID:     ev.StarID,
		SellerAddr: ev.From.Hex(),
		BuyerAddr:  ev.To.Hex(),
		Price:      ev.Price,
		Primary:    ev.From == registryAddr,
		TradeTime:  ev.Time,
	}
}
