package model

import (
	"time"

	"gorm.io/gorm"
)

// StarAsset 星体资产投影表（由注册表通知驱动，只读查询用）
type StarAsset struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement:false;comment:星体ID"`
	Name        string         `gorm:"comment:名称"`
	Collections string         `gorm:"type:text;comment:收藏集引用（JSON数组）"`
	OwnerAddr   string         `gorm:"index;comment:当前持有者地址（托管中为拍卖合约地址）"`
	BornAt      time.Time      `gorm:"comment:星体创建时间"`
	CreatedAt   time.Time      `gorm:"comment:创建时间"`
	UpdatedAt   time.Time      `gorm:"comment:更新时间"`
	DeletedAt   gorm.DeletedAt `gorm:"index;comment:删除时间"`
}

// SaleRecord 拍卖成交记录（最终账本）
type SaleRecord struct {
	ID         uint64         `gorm:"primaryKey;comment:成交记录ID"`
	TradeNo    string         `gorm:"uniqueIndex;size:64;comment:成交编号"`
	StarID     uint64         `gorm:"index;comment:星体ID"`
	SellerAddr string         `gorm:"index;comment:卖家地址"`
	BuyerAddr  string         `gorm:"index;comment:买家地址"`
	Price      string         `gorm:"comment:成交价格（wei）"`
	Primary    bool           `gorm:"comment:是否一级市场（注册表自售）"`
	TradeTime  time.Time      `gorm:"comment:成交时间"`
	CreatedAt  time.Time      `gorm:"comment:创建时间"`
	UpdatedAt  time.Time      `gorm:"comment:更新时间"`
	DeletedAt  gorm.DeletedAt `gorm:"index;comment:删除时间"`
}
