package resp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToBytesSimpleString(t *testing.T) {
	assert.Equal(t, []byte("+OK\r\n"), ToBytes(nil, NewSimpleString("OK")))
}

func TestToBytesSimpleError(t *testing.T) {
	assert.Equal(t, []byte("-ERR boom\r\n"), ToBytes(nil, NewSimpleError("ERR boom")))
}

func TestToBytesInteger(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected []byte
	}{
		{"zero", 0, []byte(":0\r\n")},
		{"positive", 123, []byte(":123\r\n")},
		{"negative", -456, []byte(":-456\r\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToBytes(nil, NewInteger(tt.input)))
		})
	}
}

func TestToBytesBulkString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []byte
	}{
		{"empty", "", []byte("$0\r\n\r\n")},
		{"simple", "hello", []byte("$5\r\nhello\r\n")},
		{"unicode", "你好", []byte("$6\r\n你好\r\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToBytes(nil, NewBulkString(tt.input)))
		})
	}
}

func TestToBytesNullBulkString(t *testing.T) {
	assert.Equal(t, []byte("$-1\r\n"), ToBytes(nil, NewNullBulkString()))
	assert.NotEqual(t, ToBytes(nil, NewNullBulkString()), ToBytes(nil, NewBulkString("")))
}

func TestToBytesArray(t *testing.T) {
	v := NewArray([]Value{NewBulkString("foo"), NewBulkString("bar")})
	assert.Equal(t, []byte("*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"), ToBytes(nil, v))
}

func TestToBytesEmptyArray(t *testing.T) {
	assert.Equal(t, []byte("*0\r\n"), ToBytes(nil, NewArray(nil)))
}

func TestToBytesNestedArray(t *testing.T) {
	v := NewArray([]Value{
		NewBulkString("OK"),
		NewInteger(1),
		NewArray([]Value{NewBulkString("a"), NewBulkString("b")}),
	})
	expected := "*3\r\n$2\r\nOK\r\n:1\r\n*2\r\n$1\r\na\r\n$1\r\nb\r\n"
	assert.Equal(t, expected, string(ToBytes(nil, v)))
}

func TestSimpleStringOK(t *testing.T) {
	assert.Equal(t, []byte("+OK\r\n"), ToBytes(nil, NewSimpleString("OK")))
}

// Length exactness and round-trip for BulkString: each encoded bulk string,
// wrapped in a one-element command frame, decodes back to the same text
// through ReadFrames. Only BulkString is covered here, because ReadFrames
// accepts nothing but Array-of-BulkString frames.
func TestBulkStringLengthExactness(t *testing.T) {
	for _, s := range []string{"", "a", "hello world", "你好, world"} {
		encoded := ToBytes(nil, NewBulkString(s))
		frame := append([]byte("*1\r\n"), encoded...)
		frames, leftover, err := ReadFrames(frame)
		assert.NoError(t, err)
		assert.Empty(t, leftover)
		assert.Equal(t, []string{s}, []string(frames[0]))
	}
}
