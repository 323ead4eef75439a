package utils

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"star_trade/model"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	eventExchange   = "star_event_exchange"
	eventQueue      = "star_event_queue"
	eventRoutingKey = "star.event"
)

var RabbitMQConn *amqp.Connection
var RabbitMQChannel *amqp.Channel

// InitRabbitMQ 初始化RabbitMQ
func InitRabbitMQ(url string) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return err
	}
	RabbitMQConn = conn

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	RabbitMQChannel = ch

	return declareExchangeAndQueue()
}

// 声明交换机和队列（事件通知队列）
func declareExchangeAndQueue() error {
	err := RabbitMQChannel.ExchangeDeclare(
		eventExchange, // 交换机名
		"direct",      // 类型
		true,          // 持久化
		false,         // 自动删除
		false,         // 内部
		false,         // 等待
		nil,           // 参数
	)
	if err != nil {
		return err
	}

	_, err = RabbitMQChannel.QueueDeclare(
		eventQueue, // 队列名
		true,       // 持久化
		false,      // 自动删除
		false,      // 排他
		false,      // 等待
		nil,        // 参数
	)
	if err != nil {
		return err
	}

	return RabbitMQChannel.QueueBind(
		eventQueue,      // 队列名
		eventRoutingKey, // 路由键
		eventExchange,   // 交换机名
		false,
		nil,
	)
}

// PublishEvent 发布注册表/拍卖通知
func PublishEvent(ctx context.Context, ev model.Event) error {
	if RabbitMQChannel == nil {
		return errors.New("rabbitmq not initialized")
	}

	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return RabbitMQChannel.Publish(
		eventExchange,   // 交换机名
		eventRoutingKey, // 路由键
		false,           // 强制
		false,           // 立即
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         msg,
			DeliveryMode: amqp.Persistent, // 持久化
			Timestamp:    time.Now(),
			Type:         string(ev.Kind),
		},
	)
}

// ConsumeEvents 消费通知，handler返回错误时消息重新入队
func ConsumeEvents(handler func(ev model.Event, raw []byte) error) error {
	if RabbitMQChannel == nil {
		return errors.New("rabbitmq not initialized")
	}

	msgs, err := RabbitMQChannel.Consume(
		eventQueue, // 队列名
		"",         // 消费者标签
		false,      // 自动确认
		false,      // 排他
		false,      // 不本地
		false,      // 等待
		nil,        // 参数
	)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			var ev model.Event
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				Logger.Error("消息反序列化失败", zap.Error(err))
				d.Nack(false, false) // 拒绝消息，不重新入队
				continue
			}
			if ev.Kind == "" {
				Logger.Error("消息缺少kind", zap.ByteString("body", d.Body))
				d.Nack(false, false)
				continue
			}

			if err := handler(ev, d.Body); err != nil {
				Logger.Error("处理通知消息失败", zap.String("kind", string(ev.Kind)), zap.Uint64("star_id", ev.StarID), zap.Error(err))
				d.Nack(false, true) // 拒绝消息，重新入队
			} else {
				d.Ack(false)
			}
		}
	}()

	return nil
}

// CloseRabbitMQ 关闭RabbitMQ连接
func CloseRabbitMQ() {
	if RabbitMQChannel != nil {
		RabbitMQChannel.Close()
	}
	if RabbitMQConn != nil {
		RabbitMQConn.Close()
	}
}
