package session

import (
	"context"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
)

func TestConnectionStateMachine(t *testing.T) {
	var entered []string
	cs := NewConnectionStateMachine(fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) { entered = append(entered, e.Dst) },
	})
	ctx := context.Background()

	assert.Equal(t, StateDisconnected, cs.CurrentState())
	assert.Error(t, cs.Bind(ctx), "bind requires CONNECTING")
	assert.Error(t, cs.Disconnect(ctx), "already disconnected")

	assert.NoError(t, cs.Connect(ctx))
	assert.NoError(t, cs.Disconnect(ctx), "a failed dial returns to DISCONNECTED")
	assert.NoError(t, cs.Connect(ctx))
	assert.NoError(t, cs.Bind(ctx))
	assert.True(t, cs.Is(StateConnected))
	assert.Error(t, cs.Connect(ctx))
	assert.NoError(t, cs.Disconnect(ctx))

	assert.Equal(t, []string{
		StateConnecting, StateDisconnected,
		StateConnecting, StateConnected, StateDisconnected,
	}, entered)
}

func TestTransitionsIgnoreCancellation(t *testing.T) {
	cs := NewConnectionStateMachine(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, cs.Connect(ctx))
	assert.NoError(t, cs.Disconnect(ctx))
	assert.Equal(t, StateDisconnected, cs.CurrentState())
}

func TestTimeoutsDefaults(t *testing.T) {
	to := NewTimeouts()
	assert.Equal(t, "1m0s", to.Keepalive().String())
	assert.Equal(t, "5s", to.ReconnectDelay().String())
	assert.Equal(t, "1s", to.AlarmInterval().String())
	assert.Equal(t, "30s", to.ConnectTimeout().String())

	to.SetKeepalive(-1)
	to.SetReconnectDelay(0)
	to.SetAlarmInterval(0)
	to.normalize()
	assert.Equal(t, "1m0s", to.Keepalive().String())
	assert.Zero(t, to.ReconnectDelay())
	assert.Equal(t, "1s", to.AlarmInterval().String())
}
