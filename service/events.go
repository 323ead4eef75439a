package service

import (
	"sync"

	"star_trade/model"
	"star_trade/utils"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const eventTopic = "star:event"

// EventHub 进程内通知分发，注册表与拍卖引擎的通知经此异步扇出到投影、MQ等订阅者
// Notify只入队不等待订阅者，注册表与拍卖引擎持锁调用也不会被慢订阅者拖住
type EventHub struct {
	bus evbus.Bus

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []model.Event
	closed  bool
	pending sync.WaitGroup
}

// NewEventHub 创建通知分发器并启动分发协程
func NewEventHub() *EventHub {
	h := &EventHub{bus: evbus.New()}
	h.cond = sync.NewCond(&h.mu)
	go h.dispatch()
	return h
}

// Notify 实现contract.Notifier，为通知分配唯一ID后入队
func (h *EventHub) Notify(ev model.Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		utils.Logger.Warn("通知分发器已关闭，丢弃通知", zap.String("kind", string(ev.Kind)), zap.Uint64("star_id", ev.StarID))
		return
	}
	h.pending.Add(1)
	h.queue = append(h.queue, ev)
	h.cond.Signal()
}

// dispatch 按入队顺序发布，同一订阅者串行处理
func (h *EventHub) dispatch() {
	for {
		h.mu.Lock()
		for len(h.queue) == 0 && !h.closed {
			h.cond.Wait()
		}
		if len(h.queue) == 0 {
			h.mu.Unlock()
			return
		}
		ev := h.queue[0]
		h.queue[0] = model.Event{}
		h.queue = h.queue[1:]
		h.mu.Unlock()

		h.bus.Publish(eventTopic, ev)
		h.pending.Done()
	}
}

// Subscribe 订阅通知，同一订阅者按发布顺序串行处理
func (h *EventHub) Subscribe(name string, fn func(ev model.Event) error) error {
	return h.bus.SubscribeAsync(eventTopic, func(ev model.Event) {
		if err := fn(ev); err != nil {
			utils.Logger.Error("通知处理失败",
				zap.String("subscriber", name),
				zap.String("kind", string(ev.Kind)),
				zap.Uint64("star_id", ev.StarID),
				zap.Error(err))
		}
	}, true)
}

// Wait 等待已入队的通知处理完毕
func (h *EventHub) Wait() {
	h.pending.Wait()
	h.bus.WaitAsync()
}

// Close 停止接收新通知，已入队的通知继续分发
func (h *EventHub) Close() {
	h.mu.Lock()
	h.closed = true
	h.cond.Broadcast()
	h.mu.Unlock()
}
