// Package command parses a decoded RESP frame into a typed Command and
// applies that command against a store.Store, splitting parse from apply
// so the transaction layer can hold a queue of parsed Commands rather
// than raw frames.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nanokv/respd/pkg/resp"
	"github.com/nanokv/respd/pkg/store"
)

// Kind tags which Command variant a value holds.
type Kind int

const (
	Ping Kind = iota
	Set
	Get
	LPush
	RPush
	LRange
	Multi
	Exec
	Discard
)

// Command is a closed tagged union over the nine recognized operations.
// Values are immutable once parsed: Apply never mutates a Command.
type Command struct {
	Kind Kind

	// Ping
	Msg    string
	HasMsg bool

	// Set / Get / LPush / RPush / LRange
	Key string

	// Set
	Value string

	// LPush / RPush
	Values []string

	// LRange
	Start int64
	Stop  int64
}

// ErrorKind distinguishes the CommandError variants from §4.4/§7.
type ErrorKind int

const (
	InvalidFormat ErrorKind = iota
	UnknownCommand
	Other
)

// CommandError reports a parse failure. Cmd is populated for UnknownCommand.
type CommandError struct {
	Kind ErrorKind
	Cmd  string
	Msg  string
}

func (e *CommandError) Error() string {
	switch e.Kind {
	case InvalidFormat:
		return "ERR invalid command format"
	case UnknownCommand:
		return fmt.Sprintf("ERR unknown command '%s'", e.Cmd)
	default:
		return "ERR " + e.Msg
	}
}

func errInvalidFormat() error { return &CommandError{Kind: InvalidFormat} }
func errOther(msg string) error { return &CommandError{Kind: Other, Msg: msg} }
func errUnknown(cmd string) error { return &CommandError{Kind: UnknownCommand, Cmd: cmd} }

// Parse turns a decoded frame into a Command, or a *CommandError when the
// frame is empty, names an unrecognized command, or carries the wrong
// number or shape of arguments for the command it names.
func Parse(frame resp.Frame) (Command, error) {
	if len(frame) == 0 {
		return Command{}, errInvalidFormat()
	}

	name := strings.ToLower(frame[0])
	args := frame[1:]

	switch name {
	case "ping":
		return parsePing(args)
	case "set":
		return parseSet(args)
	case "get":
		return parseGet(args)
	case "lpush":
		return parseLPush(args)
	case "rpush":
		return parseRPush(args)
	case "lrange":
		return parseLRange(args)
	case "multi":
		return parseNoArg(Multi, "MULTI", args)
	case "exec":
		return parseNoArg(Exec, "EXEC", args)
	case "discard":
		return parseNoArg(Discard, "DISCARD", args)
	default:
		return Command{}, errUnknown(frame[0])
	}
}

func parsePing(args []string) (Command, error) {
	switch len(args) {
	case 0:
		return Command{Kind: Ping}, nil
	case 1:
		return Command{Kind: Ping, Msg: args[0], HasMsg: true}, nil
	default:
		return Command{}, errInvalidFormat()
	}
}

func parseSet(args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, errOther("wrong number of arguments for 'SET' command")
	}
	return Command{Kind: Set, Key: args[0], Value: args[1]}, nil
}

func parseGet(args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, errOther("wrong number of arguments for 'GET' command")
	}
	return Command{Kind: Get, Key: args[0]}, nil
}

func parseLPush(args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, errOther("wrong number of arguments for 'LPUSH' command")
	}
	return Command{Kind: LPush, Key: args[0], Values: append([]string(nil), args[1:]...)}, nil
}

func parseRPush(args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, errOther("wrong number of arguments for 'RPUSH' command")
	}
	return Command{Kind: RPush, Key: args[0], Values: append([]string(nil), args[1:]...)}, nil
}

func parseLRange(args []string) (Command, error) {
	if len(args) != 3 {
		return Command{}, errInvalidFormat()
	}
	start, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return Command{}, errOther("index should be an integer")
	}
	stop, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return Command{}, errOther("index should be an integer")
	}
	return Command{Kind: LRange, Key: args[0], Start: start, Stop: stop}, nil
}

func parseNoArg(kind Kind, name string, args []string) (Command, error) {
	if len(args) != 0 {
		return Command{}, errOther(fmt.Sprintf("wrong number of arguments for '%s' command", name))
	}
	return Command{Kind: kind}, nil
}

// Apply executes cmd against s, returning the RESP reply value. MULTI, EXEC,
// and DISCARD are given their default (non-transactional) replies here; the
// transaction layer intercepts those three kinds before they reach Apply in
// the normal request path.
func Apply(cmd Command, s *store.Store) resp.Value {
	switch cmd.Kind {
	case Ping:
		if cmd.HasMsg {
			return resp.NewBulkString(cmd.Msg)
		}
		return resp.NewSimpleString("PONG")

	case Set:
		s.Set(cmd.Key, cmd.Value)
		return resp.NewBulkString("OK")

	case Get:
		val, ok, err := s.Get(cmd.Key)
		if err != nil {
			return errToReply(err)
		}
		if !ok {
			return resp.NewNullBulkString()
		}
		return resp.NewBulkString(val)

	case LPush:
		n, err := s.LPush(cmd.Key, cmd.Values)
		if err != nil {
			return errToReply(err)
		}
		return resp.NewInteger(int64(n))

	case RPush:
		n, err := s.RPush(cmd.Key, cmd.Values)
		if err != nil {
			return errToReply(err)
		}
		return resp.NewInteger(int64(n))

	case LRange:
		items, err := s.LRange(cmd.Key, cmd.Start, cmd.Stop)
		if err != nil {
			return errToReply(err)
		}
		vals := make([]resp.Value, len(items))
		for i, it := range items {
			vals[i] = resp.NewBulkString(it)
		}
		return resp.NewArray(vals)

	case Multi:
		return resp.NewSimpleString("OK")
	case Exec:
		return resp.NewNullBulkString()
	case Discard:
		return resp.NewSimpleString("OK")

	default:
		return resp.NewSimpleError(fmt.Sprintf("ERR unhandled command kind %d", cmd.Kind))
	}
}

func errToReply(err error) resp.Value {
	if errors.Is(err, store.ErrWrongType) {
		return resp.NewSimpleError(err.Error())
	}
	return resp.NewSimpleError("ERR " + err.Error())
}
