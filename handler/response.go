package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"star_trade/contract"
	"star_trade/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"msg":  "success",
		"data": data,
	})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"code": status,
		"msg":  msg,
	})
}

// failErr 按错误类型映射HTTP状态码
func failErr(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		utils.Logger.Error("请求处理失败", zap.String("path", c.FullPath()), zap.Error(err))
	}
	fail(c, status, err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, contract.ErrNotFound),
		errors.Is(err, contract.ErrNoOwner),
		errors.Is(err, contract.ErrNoActiveAuction):
		return http.StatusNotFound
	case errors.Is(err, contract.ErrUnauthorized),
		errors.Is(err, contract.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, contract.ErrPaused),
		errors.Is(err, contract.ErrAlreadyInEscrow):
		return http.StatusConflict
	case errors.Is(err, contract.ErrInvalidRecipient),
		errors.Is(err, contract.ErrInsufficientPayment),
		errors.Is(err, contract.ErrBoundsExceeded):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// parseID 解析路径中的星体ID
func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid star id")
		return 0, false
	}
	return id, true
}

// parseAddress 解析地址参数，空串视为空地址
func parseAddress(value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: bad address %q", contract.ErrInvalidRecipient, value)
	}
	return common.HexToAddress(value), nil
}

// parseAmount 解析十进制金额（wei）
func parseAmount(value string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: bad amount %q", contract.ErrBoundsExceeded, value)
	}
	return amount, nil
}

// parsePrice 解析拍卖价格，不能超过MaxPrice
func parsePrice(value string) (*uint256.Int, error) {
	price, err := parseAmount(value)
	if err != nil {
		return nil, err
	}
	if price.Gt(contract.MaxPrice) {
		return nil, fmt.Errorf("%w: price %s", contract.ErrBoundsExceeded, value)
	}
	return price, nil
}
