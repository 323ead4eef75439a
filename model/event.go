package model

import (
	"time"

	"github.com/jinzhu/gorm"
)

// EventLog 事件流水（MQ消费后落库，只追加）
type EventLog struct {
	ID        uint64    `gorm:"primary_key;column:id" json:"id"`
	EventID   string    `gorm:"column:event_id;type:varchar(64);unique_index" json:"event_id"` // 通知唯一ID，重复投递时去重
	Kind      string    `gorm:"column:kind;index" json:"kind"`
	StarID    uint64    `gorm:"column:star_id;index" json:"star_id"`
	FromAddr  string    `gorm:"column:from_addr" json:"from_addr"`
	ToAddr    string    `gorm:"column:to_addr" json:"to_addr"`
	Payload   string    `gorm:"column:payload;type:text" json:"payload"` // 原始JSON消息
	EventTime time.Time `gorm:"column:event_time" json:"event_time"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName 表名
func (e *EventLog) TableName() string {
	return "star_event_logs"
}

// BeforeCreate 创建前钩子（设置创建时间）
func (e *EventLog) BeforeCreate(scope *gorm.Scope) error {
	return scope.SetColumn("CreatedAt", time.Now())
}
