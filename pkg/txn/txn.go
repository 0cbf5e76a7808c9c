// Package txn implements the per-connection MULTI/EXEC/DISCARD queueing
// state machine, grounded on the cmd/tx.rs Transaction type: a queue
// of already-parsed commands plus an active flag, with EXEC replaying the
// queue against the store and building one reply array before clearing it.
package txn

import (
	"github.com/nanokv/respd/pkg/command"
	"github.com/nanokv/respd/pkg/resp"
	"github.com/nanokv/respd/pkg/store"
)

// State is the Idle/Queueing state machine for one connection. It is owned
// exclusively by that connection's handler and is never shared.
type State struct {
	active bool
	queue  []command.Command
}

// New returns a State in Idle, matching the fresh-per-accept lifecycle.
func New() *State {
	return &State{}
}

// Active reports whether the connection is currently Queueing.
func (s *State) Active() bool {
	return s.active
}

// Dispatch routes cmd through the transaction state machine, implementing
// the table: MULTI/EXEC/DISCARD are intercepted here rather than reaching
// command.Apply directly; every other command is either applied immediately
// (Idle) or queued for later (Queueing).
func (s *State) Dispatch(cmd command.Command, st *store.Store) resp.Value {
	switch cmd.Kind {
	case command.Multi:
		if s.active {
			return resp.NewSimpleError("ERR MULTI calls cannot be nested")
		}
		s.active = true
		return resp.NewSimpleString("OK")

	case command.Exec:
		if !s.active {
			return resp.NewSimpleError("ERR EXEC without MULTI")
		}
		return s.exec(st)

	case command.Discard:
		if !s.active {
			return resp.NewSimpleError("ERR DISCARD without MULTI")
		}
		s.queue = nil
		s.active = false
		return resp.NewSimpleString("OK")

	default:
		if s.active {
			s.queue = append(s.queue, cmd)
			return resp.NewSimpleString("QUEUED")
		}
		return command.Apply(cmd, st)
	}
}

// exec applies every queued command in enqueue order, collecting one reply
// per command into an Array reply. The queue is built into the reply first
// and discarded afterward, per the source's execute-then-discard ordering.
func (s *State) exec(st *store.Store) resp.Value {
	replies := make([]resp.Value, len(s.queue))
	for i, cmd := range s.queue {
		replies[i] = command.Apply(cmd, st)
	}
	s.queue = nil
	s.active = false
	return resp.NewArray(replies)
}

// ResetOnParseError clears any queued commands and returns to Idle. Called
// by the connection handler when a frame received while Queueing fails to
// parse into a Command: the malformed frame must not silently become part
// of the pending transaction.
func (s *State) ResetOnParseError() {
	s.queue = nil
	s.active = false
}
