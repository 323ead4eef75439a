package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"star_trade/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMirror struct {
	applied []model.Event
	err     error
}

func (m *fakeMirror) Apply(_ context.Context, ev model.Event) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.applied = append(m.applied, ev)
	return "0xabc", nil
}

func newTestLog(ev model.Event, raw []byte) *model.EventLog {
	return &model.EventLog{EventID: ev.ID, Kind: string(ev.Kind), StarID: ev.StarID, Payload: string(raw)}
}

// journal 按event_id去重的内存流水
type journal struct {
	logs map[string]*model.EventLog
	err  error
}

func newJournal() *journal {
	return &journal{logs: make(map[string]*model.EventLog)}
}

func (j *journal) save(log *model.EventLog) (bool, error) {
	if j.err != nil {
		return false, j.err
	}
	if _, ok := j.logs[log.EventID]; ok {
		return false, nil
	}
	j.logs[log.EventID] = log
	return true, nil
}

func TestEventConsumer(t *testing.T) {
	ev := model.Event{ID: "ev-1", Kind: model.EventTransfer, StarID: 3, From: alice, To: bob}

	t.Run("写流水并同步链上", func(t *testing.T) {
		j := newJournal()
		mirror := &fakeMirror{}
		c := NewEventConsumer(j.save, newTestLog, mirror)

		require.NoError(t, c.Handle(ev, []byte("raw")))
		require.Len(t, j.logs, 1)
		assert.Equal(t, "raw", j.logs["ev-1"].Payload)
		assert.Len(t, mirror.applied, 1)
	})

	t.Run("重复投递只记一次且不重复上链", func(t *testing.T) {
		j := newJournal()
		mirror := &fakeMirror{}
		c := NewEventConsumer(j.save, newTestLog, mirror)

		require.NoError(t, c.Handle(ev, []byte("raw")))
		require.NoError(t, c.Handle(ev, []byte("raw")))
		assert.Len(t, j.logs, 1)
		assert.Len(t, mirror.applied, 1)
	})

	t.Run("流水写入失败时重新入队", func(t *testing.T) {
		j := newJournal()
		j.err = errors.New("db down")
		mirror := &fakeMirror{}
		c := NewEventConsumer(j.save, newTestLog, mirror)

		assert.Error(t, c.Handle(ev, nil))
		assert.Empty(t, mirror.applied)
	})

	t.Run("链上失败不重新入队", func(t *testing.T) {
		c := NewEventConsumer(newJournal().save, newTestLog, &fakeMirror{err: errors.New("rpc")})
		assert.NoError(t, c.Handle(ev, nil))
	})

	t.Run("未配置链上镜像", func(t *testing.T) {
		c := NewEventConsumer(newJournal().save, newTestLog, nil)
		assert.NoError(t, c.Handle(ev, nil))
	})
}

func TestProjectionBuilders(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)

	t.Run("一级市场成交", func(t *testing.T) {
		record := newSaleRecord(model.Event{
			Kind:   model.EventAuctionSuccessful,
			StarID: 9,
			From:   registryAddr,
			To:     bob,
			Price:  "500",
			Time:   at,
		}, registryAddr, "t-1")

		assert.Equal(t, "t-1", record.TradeNo)
		assert.True(t, record.Primary)
		assert.Equal(t, bob.Hex(), record.BuyerAddr)
		assert.Equal(t, "500", record.Price)
		assert.Equal(t, at, record.TradeTime)
	})

	t.Run("二级市场成交", func(t *testing.T) {
		record := newSaleRecord(model.Event{From: alice, To: bob}, registryAddr, "t-2")
		assert.False(t, record.Primary)
	})

	t.Run("星体投影", func(t *testing.T) {
		asset, err := newStarAsset(model.Event{
			Kind:        model.EventBirth,
			StarID:      1,
			To:          alice,
			Name:        "sirius",
			Collections: []string{"a", "b"},
			Time:        at,
		})
		require.NoError(t, err)
		assert.Equal(t, `["a","b"]`, asset.Collections)
		assert.Equal(t, alice.Hex(), asset.OwnerAddr)
	})
}
