package utils

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifySignature 校验钱包签名（personal_sign格式）
// params: userAddr-用户地址, data-被签名原文, signature-十六进制签名（65字节，v可为0/1或27/28）
func VerifySignature(userAddr string, data []byte, signature string) bool {
	if !common.IsHexAddress(userAddr) {
		return false
	}
	sig := common.FromHex(signature)
	if len(sig) != crypto.SignatureLength {
		return false
	}

	// 兼容钱包返回的v=27/28
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(data), sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == common.HexToAddress(userAddr)
}

// SignData 使用私钥对原文做personal_sign签名，返回0x前缀十六进制
func SignData(key *ecdsa.PrivateKey, data []byte) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash(data), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// RequestMessage 请求签名原文，覆盖方法、路径、请求体哈希、时间戳、随机数和注册表地址
// 签名不能挪用到其他接口、其他星体或其他部署
func RequestMessage(method, path string, body []byte, timestamp int64, nonce string, domain common.Address) []byte {
	return []byte(fmt.Sprintf("star_trade request\nmethod:%s\npath:%s\nbody:%s\ntimestamp:%d\nnonce:%s\nregistry:%s",
		strings.ToUpper(method), path, crypto.Keccak256Hash(body).Hex(), timestamp, nonce, domain.Hex()))
}
