package contract

import "star_trade/model"

// Notifier 接收所有权与拍卖通知
// 注意：Notify在注册表/拍卖引擎的临界区内被调用，实现不得回调注册表或拍卖引擎，耗时操作应异步处理
type Notifier interface {
	Notify(ev model.Event)
}

// NotifierFunc 函数适配器
type NotifierFunc func(ev model.Event)

// Notify 实现Notifier
func (f NotifierFunc) Notify(ev model.Event) { f(ev) }

type nopNotifier struct{}

func (nopNotifier) Notify(model.Event) {}
