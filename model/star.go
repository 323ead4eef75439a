package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Star 星体资产（不可分割，id从1开始顺序分配）
type Star struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Collections []string  `json:"collections"` // 外部收藏集引用，有序
	CreatedAt   time.Time `json:"created_at"`
}

// Auction 时钟拍卖（荷兰式），拍卖期间星体由拍卖引擎托管
type Auction struct {
	StarID        uint64
	Seller        common.Address
	StartingPrice *uint256.Int
	EndingPrice   *uint256.Int
	Duration      uint64 // 秒
	StartedAt     uint64 // unix秒
}

// EventKind 通知类型
type EventKind string

const (
	EventBirth             EventKind = "Birth"             // 星体创建
	EventTransfer          EventKind = "Transfer"          // 所有权变更
	EventAuctionCreated    EventKind = "AuctionCreated"    // 拍卖创建
	EventAuctionSuccessful EventKind = "AuctionSuccessful" // 拍卖成交
	EventAuctionCancelled  EventKind = "AuctionCancelled"  // 拍卖取消
)

// Event 所有权与拍卖通知
// Birth: To=所有者；Transfer: From->To；AuctionCreated/AuctionCancelled: From=卖家；AuctionSuccessful: From=卖家, To=买家
type Event struct {
	ID            string         `json:"id"` // 分发时分配，消费端据此去重
	Kind          EventKind      `json:"kind"`
	StarID        uint64         `json:"star_id"`
	From          common.Address `json:"from"`
	To            common.Address `json:"to"`
	Name          string         `json:"name,omitempty"`
	Collections   []string       `json:"collections,omitempty"`
	Price         string         `json:"price,omitempty"` // 十进制字符串（wei）
	StartingPrice string         `json:"starting_price,omitempty"`
	EndingPrice   string         `json:"ending_price,omitempty"`
	Duration      uint64         `json:"duration,omitempty"`
	Time          time.Time      `json:"time"`
}
