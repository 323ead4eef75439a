package dao

import (
	"encoding/json"
	"fmt"

	"star_trade/model"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jinzhu/gorm"
)

var db *gorm.DB

// InitMySQL 初始化事件流水库连接
func InitMySQL(dsn string) error {
	var err error
	db, err = gorm.Open("mysql", dsn)
	if err != nil {
		return err
	}
	// 自动迁移表
	return db.AutoMigrate(&model.EventLog{}).Error
}

// CloseMySQL 关闭连接
func CloseMySQL() {
	if db != nil {
		db.Close()
	}
}

// NewEventLog 由通知构建流水记录，payload为原始消息
func NewEventLog(ev model.Event, payload []byte) *model.EventLog {
	if payload == nil {
		payload, _ = json.Marshal(ev)
	}
	eventID := ev.ID
	if eventID == "" {
		eventID = fmt.Sprintf("%s-%d-%d", ev.Kind, ev.StarID, ev.Time.UnixNano())
	}
	return &model.EventLog{
		EventID:   eventID,
		Kind:      string(ev.Kind),
		StarID:    ev.StarID,
		FromAddr:  ev.From.Hex(),
		ToAddr:    ev.To.Hex(),
		Payload:   string(payload),
		EventTime: ev.Time,
	}
}

// SaveEvent 追加一条事件流水，event_id已存在时跳过
// return: 是否新写入
func SaveEvent(log *model.EventLog) (bool, error) {
	if db == nil {
		return false, fmt.Errorf("event db not initialized")
	}

	var count int
	if err := db.Model(&model.EventLog{}).Where("event_id = ?", log.EventID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check event failed: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if err := db.Create(log).Error; err != nil {
		return false, fmt.Errorf("save event failed: %w", err)
	}
	return true, nil
}

// ListEvents 查询某个星体的事件流水（按时间正序）
func ListEvents(starID uint64, limit int) ([]model.EventLog, error) {
	if db == nil {
		return nil, fmt.Errorf("event db not initialized")
	}
	var logs []model.EventLog
	if err := db.Where("star_id = ?", starID).Order("id ASC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list events failed: %w", err)
	}
	return logs, nil
}
