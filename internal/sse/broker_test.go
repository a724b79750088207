package sse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers published events to every subscriber", func(t *testing.T) {
		broker := NewBroker(nil)
		defer broker.Close()

		first := broker.Subscribe()
		second := broker.Subscribe()
		assert.Equal(t, 2, broker.ClientCount())

		require.NoError(t, broker.Publish(ctx, Event{Type: EventStatus, Data: json.RawMessage(`{"bot":"online"}`)}))

		for _, client := range []*Client{first, second} {
			select {
			case event := <-client.Events:
				assert.Equal(t, EventStatus, event.Type)
				assert.JSONEq(t, `{"bot":"online"}`, string(event.Data))
			case <-time.After(time.Second):
				t.Fatal("event not delivered")
			}
		}
	})

	t.Run("unsubscribe closes done and stops delivery", func(t *testing.T) {
		broker := NewBroker(nil)
		defer broker.Close()

		client := broker.Subscribe()
		broker.Unsubscribe(client)

		_, open := <-client.Done
		assert.False(t, open)
		assert.Equal(t, 0, broker.ClientCount())

		require.NoError(t, broker.Publish(ctx, Event{Type: EventStatus, Data: json.RawMessage(`{}`)}))
		assert.Empty(t, client.Events)
	})

	t.Run("full buffers drop events instead of blocking", func(t *testing.T) {
		broker := NewBroker(nil)
		defer broker.Close()

		client := broker.Subscribe()
		for i := 0; i < clientBufferSize+5; i++ {
			require.NoError(t, broker.Publish(ctx, Event{Type: EventStatus, Data: json.RawMessage(`{}`)}))
		}
		assert.Len(t, client.Events, clientBufferSize)
	})

	t.Run("close releases all clients", func(t *testing.T) {
		broker := NewBroker(nil)
		client := broker.Subscribe()

		broker.Close()

		_, open := <-client.Done
		assert.False(t, open)
		assert.Equal(t, 0, broker.ClientCount())
	})
}
