package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanokv/respd/pkg/command"
	"github.com/nanokv/respd/pkg/resp"
	"github.com/nanokv/respd/pkg/store"
)

func TestIdleAppliesImmediately(t *testing.T) {
	s := New()
	st := store.New()

	got := s.Dispatch(command.Command{Kind: command.Set, Key: "k", Value: "v"}, st)
	assert.Equal(t, resp.NewBulkString("OK"), got)

	got = s.Dispatch(command.Command{Kind: command.Get, Key: "k"}, st)
	assert.Equal(t, resp.NewBulkString("v"), got)
	assert.False(t, s.Active())
}

func TestMultiEntersQueueing(t *testing.T) {
	s := New()
	st := store.New()

	got := s.Dispatch(command.Command{Kind: command.Multi}, st)
	assert.Equal(t, resp.NewSimpleString("OK"), got)
	assert.True(t, s.Active())
}

func TestExecWithoutMulti(t *testing.T) {
	s := New()
	st := store.New()

	got := s.Dispatch(command.Command{Kind: command.Exec}, st)
	require.Equal(t, resp.SimpleError, got.Kind)
	assert.False(t, s.Active())
}

func TestDiscardWithoutMulti(t *testing.T) {
	s := New()
	st := store.New()

	got := s.Dispatch(command.Command{Kind: command.Discard}, st)
	require.Equal(t, resp.SimpleError, got.Kind)
}

func TestNestedMulti(t *testing.T) {
	s := New()
	st := store.New()

	s.Dispatch(command.Command{Kind: command.Multi}, st)
	got := s.Dispatch(command.Command{Kind: command.Multi}, st)
	require.Equal(t, resp.SimpleError, got.Kind)
	assert.True(t, s.Active(), "connection remains in Queueing after a rejected nested MULTI")
}

func TestQueueingQueuesAndReturnsQueued(t *testing.T) {
	s := New()
	st := store.New()

	s.Dispatch(command.Command{Kind: command.Multi}, st)
	got := s.Dispatch(command.Command{Kind: command.Set, Key: "k", Value: "1"}, st)
	assert.Equal(t, resp.NewSimpleString("QUEUED"), got)

	// Nothing applied yet.
	_, ok, err := st.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecRunsQueuedCommandsInOrderAndClearsQueue(t *testing.T) {
	s := New()
	st := store.New()

	s.Dispatch(command.Command{Kind: command.Multi}, st)
	s.Dispatch(command.Command{Kind: command.Set, Key: "k", Value: "1"}, st)
	s.Dispatch(command.Command{Kind: command.RPush, Key: "L", Values: []string{"x"}}, st)

	got := s.Dispatch(command.Command{Kind: command.Exec}, st)
	require.Equal(t, resp.Array, got.Kind)
	require.Len(t, got.Items, 2)
	assert.Equal(t, resp.NewBulkString("OK"), got.Items[0])
	assert.Equal(t, resp.NewInteger(1), got.Items[1])

	assert.False(t, s.Active())

	// A further EXEC is "EXEC without MULTI" again.
	again := s.Dispatch(command.Command{Kind: command.Exec}, st)
	require.Equal(t, resp.SimpleError, again.Kind)
}

func TestExecMidErrorDoesNotAbort(t *testing.T) {
	s := New()
	st := store.New()
	st.Set("k", "x")

	s.Dispatch(command.Command{Kind: command.Multi}, st)
	s.Dispatch(command.Command{Kind: command.LPush, Key: "k", Values: []string{"z"}}, st) // WrongType
	s.Dispatch(command.Command{Kind: command.Get, Key: "k"}, st)

	got := s.Dispatch(command.Command{Kind: command.Exec}, st)
	require.Equal(t, resp.Array, got.Kind)
	require.Len(t, got.Items, 2)
	assert.Equal(t, resp.SimpleError, got.Items[0].Kind)
	assert.Equal(t, resp.NewBulkString("x"), got.Items[1])
}

func TestDiscardClearsQueueAndState(t *testing.T) {
	s := New()
	st := store.New()

	s.Dispatch(command.Command{Kind: command.Multi}, st)
	s.Dispatch(command.Command{Kind: command.Set, Key: "k", Value: "v"}, st)
	got := s.Dispatch(command.Command{Kind: command.Discard}, st)
	assert.Equal(t, resp.NewSimpleString("OK"), got)
	assert.False(t, s.Active())

	val := s.Dispatch(command.Command{Kind: command.Get, Key: "k"}, st)
	assert.Equal(t, resp.NewNullBulkString(), val)
}

func TestResetOnParseErrorClearsQueueing(t *testing.T) {
	s := New()
	st := store.New()

	s.Dispatch(command.Command{Kind: command.Multi}, st)
	s.Dispatch(command.Command{Kind: command.Set, Key: "k", Value: "v"}, st)

	s.ResetOnParseError()
	assert.False(t, s.Active())

	val := s.Dispatch(command.Command{Kind: command.Get, Key: "k"}, st)
	assert.Equal(t, resp.NewNullBulkString(), val)
}
