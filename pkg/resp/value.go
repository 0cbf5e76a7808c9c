// Package resp implements the RESP2 (REdis Serialization Protocol, version 2)
// wire format: a tagged value model with a canonical byte encoding, and an
// incremental decoder that turns a growing byte buffer into command frames
// without requiring a full frame to arrive in a single read.
package resp

import "strconv"

// Kind identifies which RESP2 variant a Value holds.
type Kind byte

const (
	SimpleString Kind = '+'
	SimpleError  Kind = '-'
	Integer      Kind = ':'
	BulkString   Kind = '$'
	// NullBulkString is the wire marker "$-1\r\n". It is distinct from
	// BulkString with an empty payload.
	NullBulkString Kind = 'n'
	Array          Kind = '*'
)

// Value is a closed tagged union over the six RESP2 types used by this
// server. Only the fields relevant to Kind are meaningful:
//
//	SimpleString/SimpleError: Str
//	Integer:                  Int
//	BulkString:                Str
//	NullBulkString:            (no payload)
//	Array:                     Items
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Items []Value
}

// Constructors, named so callers don't have to remember which field a Kind
// reads from.

func NewSimpleString(s string) Value { return Value{Kind: SimpleString, Str: s} }
func NewSimpleError(s string) Value  { return Value{Kind: SimpleError, Str: s} }
func NewInteger(n int64) Value       { return Value{Kind: Integer, Int: n} }
func NewBulkString(s string) Value   { return Value{Kind: BulkString, Str: s} }
func NewNullBulkString() Value       { return Value{Kind: NullBulkString} }
func NewArray(items []Value) Value   { return Value{Kind: Array, Items: items} }

// ToBytes renders v to its canonical RESP2 encoding, appending to dst and
// returning the grown slice.
func ToBytes(dst []byte, v Value) []byte {
	switch v.Kind {
	case SimpleString:
		dst = append(dst, '+')
		dst = append(dst, v.Str...)
		return append(dst, '\r', '\n')
	case SimpleError:
		dst = append(dst, '-')
		dst = append(dst, v.Str...)
		return append(dst, '\r', '\n')
	case Integer:
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, v.Int, 10)
		return append(dst, '\r', '\n')
	case BulkString:
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(v.Str)), 10)
		dst = append(dst, '\r', '\n')
		dst = append(dst, v.Str...)
		return append(dst, '\r', '\n')
	case NullBulkString:
		return append(dst, '$', '-', '1', '\r', '\n')
	case Array:
		dst = append(dst, '*')
		dst = strconv.AppendInt(dst, int64(len(v.Items)), 10)
		dst = append(dst, '\r', '\n')
		for _, item := range v.Items {
			dst = ToBytes(dst, item)
		}
		return dst
	default:
		// Unreachable for values built through the constructors above.
		return dst
	}
}
