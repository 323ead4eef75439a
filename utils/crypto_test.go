package utils

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()
	body := []byte(`{"to":"0x0000000000000000000000000000000000000002"}`)

	sig, err := SignData(key, body)
	require.NoError(t, err)

	t.Run("正确签名通过校验", func(t *testing.T) {
		assert.True(t, VerifySignature(addr, body, sig))
	})

	t.Run("原文被篡改", func(t *testing.T) {
		assert.False(t, VerifySignature(addr, []byte(`{}`), sig))
	})

	t.Run("地址不匹配", func(t *testing.T) {
		other, err := crypto.GenerateKey()
		require.NoError(t, err)
		assert.False(t, VerifySignature(crypto.PubkeyToAddress(other.PublicKey).Hex(), body, sig))
	})

	t.Run("签名格式错误", func(t *testing.T) {
		assert.False(t, VerifySignature(addr, body, "0x1234"))
		assert.False(t, VerifySignature("not-an-address", body, sig))
	})
}

func TestRequestMessage(t *testing.T) {
	domain := common.HexToAddress("0x0000000000000000000000000000000000005a01")
	body := []byte(`{"to":"0x02"}`)
	base := RequestMessage("post", "/api/v1/stars/1/transfer", body, 1_700_000_000, "n1", domain)

	assert.Equal(t, base, RequestMessage("POST", "/api/v1/stars/1/transfer", body, 1_700_000_000, "n1", domain))
	assert.NotEqual(t, base, RequestMessage("POST", "/api/v1/stars/2/transfer", body, 1_700_000_000, "n1", domain))
	assert.NotEqual(t, base, RequestMessage("POST", "/api/v1/stars/1/approve", body, 1_700_000_000, "n1", domain))
	assert.NotEqual(t, base, RequestMessage("POST", "/api/v1/stars/1/transfer", []byte(`{}`), 1_700_000_000, "n1", domain))
	assert.NotEqual(t, base, RequestMessage("POST", "/api/v1/stars/1/transfer", body, 1_700_000_001, "n1", domain))
	assert.NotEqual(t, base, RequestMessage("POST", "/api/v1/stars/1/transfer", body, 1_700_000_000, "n2", domain))
	assert.NotEqual(t, base, RequestMessage("POST", "/api/v1/stars/1/transfer", body, 1_700_000_000, "n1", common.HexToAddress("0x01")))
}
