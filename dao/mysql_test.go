package dao

import (
	"testing"
	"time"

	"star_trade/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventLog(t *testing.T) {
	ev := model.Event{
		Kind:   model.EventTransfer,
		StarID: 7,
		From:   common.HexToAddress("0x01"),
		To:     common.HexToAddress("0x02"),
		Time:   time.Unix(1_700_000_000, 0),
	}

	t.Run("保留原始消息", func(t *testing.T) {
		log := NewEventLog(ev, []byte(`{"raw":true}`))
		assert.Equal(t, "Transfer", log.Kind)
		assert.Equal(t, uint64(7), log.StarID)
		assert.Equal(t, ev.From.Hex(), log.FromAddr)
		assert.Equal(t, ev.To.Hex(), log.ToAddr)
		assert.Equal(t, `{"raw":true}`, log.Payload)
	})

	t.Run("无原始消息时序列化通知", func(t *testing.T) {
		log := NewEventLog(ev, nil)
		assert.Contains(t, log.Payload, `"kind":"Transfer"`)
	})

	t.Run("事件ID", func(t *testing.T) {
		withID := ev
		withID.ID = "4f1c"
		assert.Equal(t, "4f1c", NewEventLog(withID, nil).EventID)
		// 旧消息没有ID时按内容生成，重复投递得到同一ID
		assert.Equal(t, NewEventLog(ev, nil).EventID, NewEventLog(ev, []byte("x")).EventID)
		assert.Equal(t, "Transfer-7-1700000000000000000", NewEventLog(ev, nil).EventID)
	})

	t.Run("未初始化时报错", func(t *testing.T) {
		_, err := SaveEvent(NewEventLog(ev, nil))
		require.Error(t, err)
	})
}

func TestMetadataKey(t *testing.T) {
	assert.Equal(t, "star:meta:3:ipfs", MetadataKey(3, "ipfs"))
	assert.Equal(t, "star:meta:3:default", MetadataKey(3, ""))
}

func TestNonceKey(t *testing.T) {
	caller := common.HexToAddress("0x000000000000000000000000000000000000a11c")
	assert.Equal(t, "star:nonce:"+caller.Hex()+":n1", NonceKey(caller, "n1"))
}
