package netsync

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/timecoin/walletsync/ulogger"
)

// Session lifecycle states.
const (
	StateIdle          = "Idle"
	StateBootstrapping = "Bootstrapping"
	StateSynced        = "Synced"
	StateDisconnected  = "Disconnected"
)

// Session lifecycle events.
const (
	EventBootstrap  = "bootstrap"
	EventSynced     = "synced"
	EventDisconnect = "disconnect"
)

// NewFiniteStateMachine creates the session state machine.
// The finite state machine has the following states:
// - Idle
// - Bootstrapping
// - Synced
// - Disconnected
// The finite state machine has the following events:
// - bootstrap: Idle, Synced or Disconnected to Bootstrapping
// - synced: Bootstrapping or Disconnected to Synced
// - disconnect: Bootstrapping to Disconnected
func NewFiniteStateMachine(logger ulogger.Logger, opts ...func(*fsm.FSM)) *fsm.FSM {
	finiteStateMachine := fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{
				Name: EventBootstrap,
				Src: []string{
					StateIdle,
					StateSynced,
					StateDisconnected,
				},
				Dst: StateBootstrapping,
			},
			{
				Name: EventSynced,
				Src: []string{
					StateBootstrapping,
					StateDisconnected,
				},
				Dst: StateSynced,
			},
			{
				Name: EventDisconnect,
				Src: []string{
					StateBootstrapping,
				},
				Dst: StateDisconnected,
			},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debugf("[NetworkManager] state %s -> %s on %s", e.Src, e.Dst, e.Event)
			},
		},
	)

	// apply options
	for _, opt := range opts {
		opt(finiteStateMachine)
	}

	return finiteStateMachine
}
