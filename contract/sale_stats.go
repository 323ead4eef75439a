package contract

import (
	"sync"

	"github.com/holiman/uint256"
)

// saleWindow 统计窗口大小
const saleWindow = 5

// SaleStats 最近saleWindow笔成交价的环形缓冲
// 不足saleWindow笔时空槽按0计入，均价会被低估
type SaleStats struct {
	mu     sync.Mutex
	prices [saleWindow]uint256.Int
	count  uint64
}

// NewSaleStats 创建统计
func NewSaleStats() *SaleStats {
	return &SaleStats{}
}

// RecordSettlement 记录一笔成交价，覆盖最旧的槽位
func (s *SaleStats) RecordSettlement(price *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[s.count%saleWindow].Set(price)
	s.count++
}

// AveragePrice 窗口均价（整数除法）
func (s *SaleStats) AveragePrice() *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := new(uint256.Int)
	for i := range s.prices {
		sum.Add(sum, &s.prices[i])
	}
	return sum.Div(sum, uint256.NewInt(saleWindow))
}

// Count 累计成交笔数
func (s *SaleStats) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
