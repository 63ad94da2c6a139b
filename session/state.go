package session

import (
	"context"

	"github.com/looplab/fsm"
)

const (
	StateDisconnected = "DISCONNECTED"
	StateConnecting   = "CONNECTING"
	StateConnected    = "CONNECTED"
)

const (
	eventConnect    = "connect"
	eventBind       = "bind"
	eventDisconnect = "disconnect"
)

// ConnectionStateMachine tracks the session lifecycle.
//
//	DISCONNECTED --connect--> CONNECTING --bind--> CONNECTED
//	CONNECTING|CONNECTED --disconnect--> DISCONNECTED
//
// Callbacks use looplab/fsm names: enter_CONNECTED, leave_CONNECTING, ...
// Transitions ignore cancellation of ctx.
type ConnectionStateMachine struct {
	fsm *fsm.FSM
}

func NewConnectionStateMachine(callbacks fsm.Callbacks) *ConnectionStateMachine {
	if callbacks == nil {
		callbacks = fsm.Callbacks{}
	}
	return &ConnectionStateMachine{
		fsm: fsm.NewFSM(
			StateDisconnected,
			fsm.Events{
				{Name: eventConnect, Src: []string{StateDisconnected}, Dst: StateConnecting},
				{Name: eventBind, Src: []string{StateConnecting}, Dst: StateConnected},
				{Name: eventDisconnect, Src: []string{StateConnecting, StateConnected}, Dst: StateDisconnected},
			},
			callbacks,
		),
	}
}

func (cs *ConnectionStateMachine) CurrentState() string {
	return cs.fsm.Current()
}

func (cs *ConnectionStateMachine) Is(state string) bool {
	return cs.fsm.Is(state)
}

func (cs *ConnectionStateMachine) Connect(ctx context.Context) error {
	return cs.fsm.Event(context.WithoutCancel(ctx), eventConnect)
}

func (cs *ConnectionStateMachine) Bind(ctx context.Context) error {
	return cs.fsm.Event(context.WithoutCancel(ctx), eventBind)
}

func (cs *ConnectionStateMachine) Disconnect(ctx context.Context) error {
	return cs.fsm.Event(context.WithoutCancel(ctx), eventDisconnect)
}
