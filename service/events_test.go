package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"star_trade/contract"
	"star_trade/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHub(t *testing.T) {
	hub := NewEventHub()
	defer hub.Close()

	var mu sync.Mutex
	var got []model.Event
	require.NoError(t, hub.Subscribe("recorder", func(ev model.Event) error {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		return nil
	}))
	require.NoError(t, hub.Subscribe("failing", func(model.Event) error {
		return errors.New("boom")
	}))

	hub.Notify(model.Event{Kind: model.EventBirth, StarID: 1})
	hub.Notify(model.Event{Kind: model.EventTransfer, StarID: 1})
	hub.Notify(model.Event{ID: "fixed", Kind: model.EventTransfer, StarID: 2})
	hub.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, []model.EventKind{model.EventBirth, model.EventTransfer, model.EventTransfer},
		[]model.EventKind{got[0].Kind, got[1].Kind, got[2].Kind})
	assert.NotEmpty(t, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Equal(t, "fixed", got[2].ID)
}

func TestEventHub_SlowSubscriberDoesNotBlockRegistry(t *testing.T) {
	hub := NewEventHub()
	defer hub.Close()

	release := make(chan struct{})
	var handled sync.WaitGroup
	handled.Add(2) // Birth + Transfer
	require.NoError(t, hub.Subscribe("slow", func(model.Event) error {
		<-release
		handled.Done()
		return nil
	}))

	access, err := contract.NewRoleAccess(ceoAddr, cfoAddr, cooAddr)
	require.NoError(t, err)
	registry, err := contract.NewRegistry(registryAddr, access, contract.WithNotifier(hub))
	require.NoError(t, err)

	created := make(chan error, 1)
	go func() {
		_, err := registry.Create("slow", nil, alice)
		created <- err
	}()
	select {
	case err := <-created:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("创建星体被订阅者阻塞")
	}

	balance := make(chan uint64, 1)
	go func() { balance <- registry.BalanceOf(alice) }()
	select {
	case n := <-balance:
		assert.Equal(t, uint64(1), n)
	case <-time.After(time.Second):
		t.Fatal("查询被订阅者阻塞")
	}

	close(release)
	handled.Wait()
	hub.Wait()
}
