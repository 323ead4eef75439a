package contract

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"star_trade/model"
	"star_trade/utils"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// StarMirrorABI 链上镜像合约ABI（运营方代理转账）
const StarMirrorABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "from", "type": "address"},
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "tokenId", "type": "uint256"}
		],
		"name": "transferFrom",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "tokenId", "type": "uint256"}
		],
		"name": "mint",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// ChainMirror 把注册表的所有权变更同步到链上ERC721合约（可选组件）
// 链上合约须把operator设为全局授权者
type ChainMirror struct {
	client       *ethclient.Client
	abi          abi.ABI
	contractAddr common.Address
	chainID      *big.Int
	operator     *ecdsa.PrivateKey
}

// NewChainMirror 创建链上镜像
func NewChainMirror(rpcUrl, contractAddr, operatorKey string) (*ChainMirror, error) {
	// 解析运营方私钥（生产环境应改为KMS/钱包签名）
	key, err := crypto.HexToECDSA(strings.TrimPrefix(operatorKey, "0x"))
	if err != nil {
		utils.Logger.Error("解析运营方私钥失败", zap.Error(err))
		return nil, err
	}

	client, err := ethclient.Dial(rpcUrl)
	if err != nil {
		utils.Logger.Error("连接区块链节点失败", zap.String("rpcUrl", rpcUrl), zap.Error(err))
		return nil, err
	}

	abiObj, err := abi.JSON(strings.NewReader(StarMirrorABI))
	if err != nil {
		utils.Logger.Error("解析ABI失败", zap.Error(err))
		return nil, err
	}

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		utils.Logger.Error("获取链ID失败", zap.Error(err))
		return nil, err
	}

	return &ChainMirror{
		client:       client,
		abi:          abiObj,
		contractAddr: common.HexToAddress(contractAddr),
		chainID:      chainID,
		operator:     key,
	}, nil
}

// Apply 同步一条通知：Birth对应链上mint，Transfer对应transferFrom，其他类型忽略
// return: 交易哈希（忽略时为空）
func (m *ChainMirror) Apply(ctx context.Context, ev model.Event) (string, error) {
	tokenID := new(big.Int).SetUint64(ev.StarID)

	switch ev.Kind {
	case model.EventBirth:
		return m.transact(ctx, "mint", ev.To, tokenID)
	case model.EventTransfer:
		// 出生时的0地址转入已由mint覆盖
		if ev.From == (common.Address{}) {
			return "", nil
		}
		return m.transact(ctx, "transferFrom", ev.From, ev.To, tokenID)
	default:
		return "", nil
	}
}

func (m *ChainMirror) transact(ctx context.Context, method string, params ...interface{}) (string, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(m.operator, m.chainID)
	if err != nil {
		utils.Logger.Error("构建交易授权失败", zap.Error(err))
		return "", err
	}
	auth.Context = ctx

	contract := bind.NewBoundContract(m.contractAddr, m.abi, m.client, m.client, m.client)
	tx, err := contract.Transact(auth, method, params...)
	if err != nil {
		utils.Logger.Error("执行链上调用失败", zap.String("method", method), zap.Error(err))
		return "", err
	}

	receipt, err := bind.WaitMined(ctx, m.client, tx)
	if err != nil {
		utils.Logger.Error("等待交易上链失败", zap.String("txHash", tx.Hash().Hex()), zap.Error(err))
		return "", err
	}
	if receipt.Status == 0 {
		utils.Logger.Error("交易执行失败（状态为0）", zap.String("txHash", tx.Hash().Hex()))
		return "", fmt.Errorf("mirror %s reverted: %s", method, tx.Hash().Hex())
	}

	return tx.Hash().Hex(), nil
}

// Close 关闭节点连接
func (m *ChainMirror) Close() {
	m.client.Close()
}
