package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairlink/pairing-server/internal/model"
	"github.com/pairlink/pairing-server/internal/sse"
)

func TestBotState(t *testing.T) {
	t.Run("starts disconnected", func(t *testing.T) {
		state := NewBotState(3, nil)

		snapshot := state.Snapshot()
		assert.Equal(t, model.BotStatusDisconnected, snapshot.Status)
		assert.Equal(t, 3, snapshot.MaxAttempts)
		assert.False(t, snapshot.HasQR())
	})

	t.Run("attempts stop at the cap", func(t *testing.T) {
		state := NewBotState(2, nil)

		n, ok := state.IncrementAttempts()
		assert.True(t, ok)
		assert.Equal(t, 1, n)
		n, ok = state.IncrementAttempts()
		assert.True(t, ok)
		assert.Equal(t, 2, n)
		n, ok = state.IncrementAttempts()
		assert.False(t, ok)
		assert.Equal(t, 2, n)

		state.ResetAttempts()
		assert.Equal(t, 0, state.Snapshot().Attempts)
	})

	t.Run("going online clears the last error", func(t *testing.T) {
		state := NewBotState(3, nil)
		state.SetError(errors.New("dial tcp: timeout"))
		assert.Equal(t, "dial tcp: timeout", state.Snapshot().LastError)

		state.SetStatus(model.BotStatusOnline)
		assert.Empty(t, state.Snapshot().LastError)
	})

	t.Run("status since only moves on real changes", func(t *testing.T) {
		state := NewBotState(3, nil)
		state.SetStatus(model.BotStatusConnecting)
		since := state.Snapshot().StatusSince

		time.Sleep(5 * time.Millisecond)
		state.SetStatus(model.BotStatusConnecting)
		assert.Equal(t, since, state.Snapshot().StatusSince)
	})

	t.Run("publishes status changes to the broker", func(t *testing.T) {
		broker := sse.NewBroker(nil)
		defer broker.Close()
		client := broker.Subscribe()

		state := NewBotState(3, broker)
		state.SetStatus(model.BotStatusQRReady)

		select {
		case event := <-client.Events:
			assert.Equal(t, sse.EventStatus, event.Type)
			var payload map[string]any
			require.NoError(t, json.Unmarshal(event.Data, &payload))
			assert.Equal(t, "qr_ready", payload["bot"])
		case <-time.After(time.Second):
			t.Fatal("no status event published")
		}

		require.NoError(t, broker.Publish(context.Background(), sse.Event{Type: "noop", Data: json.RawMessage(`{}`)}))
	})
}
