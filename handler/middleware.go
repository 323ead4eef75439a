package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"star_trade/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerCaller    = "X-Caller"
	headerSignature = "X-Signature"
	headerTimestamp = "X-Timestamp" // unix秒
	headerNonce     = "X-Nonce"
	ctxCaller       = "caller"

	maxNonceLen = 64
)

// NonceStore 请求随机数登记，同一调用者的随机数只能使用一次
type NonceStore interface {
	Use(ctx context.Context, caller common.Address, nonce string, ttl time.Duration) (bool, error)
}

// SignatureConfig 签名校验配置
type SignatureConfig struct {
	Domain common.Address // 注册表地址，签名绑定到本部署
	Nonces NonceStore
	Window time.Duration // 时间戳允许偏差
	Now    func() time.Time
}

// SignatureAuth 校验调用者对请求的个人签名，通过后将调用者地址写入上下文
// 签名原文见utils.RequestMessage：方法、路径、请求体哈希、时间戳、随机数、注册表地址
func SignatureAuth(cfg SignatureConfig) gin.HandlerFunc {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}

	return func(c *gin.Context) {
		callerHex := c.GetHeader(headerCaller)
		signature := c.GetHeader(headerSignature)
		nonce := c.GetHeader(headerNonce)
		if !common.IsHexAddress(callerHex) || signature == "" || nonce == "" || len(nonce) > maxNonceLen {
			abort(c, http.StatusUnauthorized, "missing caller, signature or nonce")
			return
		}

		timestamp, err := strconv.ParseInt(c.GetHeader(headerTimestamp), 10, 64)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid timestamp")
			return
		}
		skew := cfg.Now().Sub(time.Unix(timestamp, 0))
		if skew > cfg.Window || skew < -cfg.Window {
			abort(c, http.StatusUnauthorized, "request expired")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}
		// 读取后回填，供后续绑定
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		message := utils.RequestMessage(c.Request.Method, c.Request.URL.Path, body, timestamp, nonce, cfg.Domain)
		if !utils.VerifySignature(callerHex, message, signature) {
			utils.Logger.Warn("签名校验失败", zap.String("caller", callerHex), zap.String("path", c.Request.URL.Path))
			abort(c, http.StatusUnauthorized, "invalid signature")
			return
		}

		// 验签通过后才登记随机数，伪造请求不能占用他人的随机数
		caller := common.HexToAddress(callerHex)
		fresh, err := cfg.Nonces.Use(c.Request.Context(), caller, nonce, 2*cfg.Window)
		if err != nil {
			utils.Logger.Error("登记请求随机数失败", zap.String("caller", callerHex), zap.Error(err))
			abort(c, http.StatusServiceUnavailable, "nonce store unavailable")
			return
		}
		if !fresh {
			utils.Logger.Warn("请求重放", zap.String("caller", callerHex), zap.String("nonce", nonce))
			abort(c, http.StatusUnauthorized, "nonce already used")
			return
		}

		c.Set(ctxCaller, caller)
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	fail(c, status, msg)
	c.Abort()
}

// callerOf 取出已验签的调用者
func callerOf(c *gin.Context) common.Address {
	if v, ok := c.Get(ctxCaller); ok {
		if addr, ok := v.(common.Address); ok {
			return addr
		}
	}
	return common.Address{}
}
