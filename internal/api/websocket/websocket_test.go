package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-rollout/pkg/logger"
)

func TestHub_RegisterLimit(t *testing.T) {
	h := NewHub(2, logger.NewNop())
	a, b, c := h.NewClient(nil, "a"), h.NewClient(nil, "b"), h.NewClient(nil, "c")

	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))
	assert.ErrorIs(t, h.Register(c), ErrTooManyConnections)
	assert.Equal(t, 2, h.Count())

	h.Unregister(a)
	h.Unregister(a)
	assert.Equal(t, 1, h.Count())
	require.NoError(t, h.Register(c))
}

func TestClient_SendQueuesAndDropsSlowClients(t *testing.T) {
	h := NewHub(0, logger.NewNop())
	c := h.NewClient(nil, "slow")
	require.NoError(t, h.Register(c))

	require.True(t, c.Send(Message{Type: "analysis", Data: map[string]int{"n": 1}}))
	var got Message
	require.NoError(t, json.Unmarshal(<-c.send, &got))
	assert.Equal(t, "analysis", got.Type)
	assert.False(t, got.Timestamp.IsZero())

	for i := 0; i < sendBuffer; i++ {
		require.True(t, c.Send(Message{Type: "analysis"}))
	}
	assert.False(t, c.Send(Message{Type: "analysis"}))
	assert.Equal(t, 0, h.Count())

	// queue is closed now; further sends are dropped without panicking
	assert.False(t, c.Send(Message{Type: "analysis"}))
}
