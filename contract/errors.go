package contract

import "errors"

// 注册表与拍卖引擎的错误分类，调用方用errors.Is判断
var (
	ErrNotFound            = errors.New("star not found")
	ErrNoOwner             = errors.New("star has no owner")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotOwner            = errors.New("from is not the owner")
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrNoActiveAuction     = errors.New("no active auction")
	ErrAlreadyInEscrow     = errors.New("star cannot be escrowed")
	ErrBoundsExceeded      = errors.New("value exceeds bounds")
	ErrPaused              = errors.New("contract is paused")
)
