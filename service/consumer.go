package service

import (
	"context"

	"star_trade/model"
	"star_trade/utils"

	"go.uber.org/zap"
)

// Mirror 链上镜像
type Mirror interface {
	Apply(ctx context.Context, ev model.Event) (string, error)
}

// EventConsumer MQ通知消费者：写事件流水，并按需同步到链上
type EventConsumer struct {
	save   func(log *model.EventLog) (bool, error)
	newLog func(ev model.Event, raw []byte) *model.EventLog
	mirror Mirror
}

// NewEventConsumer 创建消费者，mirror可为空
// save返回false表示该通知已写过流水（重复投递）
func NewEventConsumer(save func(log *model.EventLog) (bool, error), newLog func(ev model.Event, raw []byte) *model.EventLog, mirror Mirror) *EventConsumer {
	return &EventConsumer{save: save, newLog: newLog, mirror: mirror}
}

// Handle 处理一条消息；流水写入失败时返回错误让消息重新入队
// 重复投递的消息直接确认，不再上链；链上镜像失败只记录日志，可根据流水人工补偿
func (c *EventConsumer) Handle(ev model.Event, raw []byte) error {
	created, err := c.save(c.newLog(ev, raw))
	if err != nil {
		return err
	}
	if !created {
		utils.Logger.Info("重复通知，跳过", zap.String("id", ev.ID), zap.String("kind", string(ev.Kind)), zap.Uint64("star_id", ev.StarID))
		return nil
	}
	if c.mirror == nil {
		return nil
	}

	txHash, err := c.mirror.Apply(context.Background(), ev)
	if err != nil {
		utils.Logger.Error("链上镜像失败", zap.String("kind", string(ev.Kind)), zap.Uint64("star_id", ev.StarID), zap.Error(err))
		return nil
	}
	if txHash != "" {
		utils.Logger.Info("链上镜像成功", zap.String("kind", string(ev.Kind)), zap.Uint64("star_id", ev.StarID), zap.String("tx_hash", txHash))
	}
	return nil
}
