// Package respcodec implements a bidirectional codec for RESP, the Redis
// serialization protocol. It converts typed in-memory values into RESP wire
// bytes and parses RESP wire bytes into typed values, supporting incremental
// zero-copy decoding of pipelined input.
//
// Decoded Text payloads alias the input buffer. They are valid only as long
// as the buffer is, and must not be held across a mutation of the buffer;
// use Value.Copy for data that needs to outlive the input.
package respcodec

// Kind identifies a RESP value type. The values of the constants are the
// single-byte wire tags, except Null, which is the canonicalized form of a
// bulk string or array with the -1 length sentinel.
type Kind byte

const (
	Null         Kind = 0
	SimpleString Kind = '+'
	Error        Kind = '-'
	Integer      Kind = ':'
	BulkString   Kind = '$'
	Array        Kind = '*'
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case SimpleString:
		return "simple string"
	case Error:
		return "error"
	case Integer:
		return "integer"
	case BulkString:
		return "bulk string"
	case Array:
		return "array"
	default:
		return "invalid"
	}
}

// Value is a dynamically typed RESP value. Exactly one of Int, Text and
// Array is meaningful, selected by Kind. A BulkString with nil Text encodes
// as the null sentinel.
type Value struct {
	Kind Kind

	Int   int64
	Text  []byte
	Array []Value
}

func NewSimpleString(s string) Value {
	return Value{Kind: SimpleString, Text: []byte(s)}
}

func NewError(s string) Value {
	return Value{Kind: Error, Text: []byte(s)}
}

func NewInteger(i int64) Value {
	return Value{Kind: Integer, Int: i}
}

func NewBulkString(s string) Value {
	return Value{Kind: BulkString, Text: []byte(s)}
}

func NewBulkBytes(b []byte) Value {
	return Value{Kind: BulkString, Text: b}
}

func NewArray(array []Value) Value {
	return Value{Kind: Array, Array: array}
}

func NewNull() Value {
	return Value{Kind: Null}
}

// IsNull reports whether the value is the canonical null, or a bulk string
// or array carrying the nil payload the encoder maps to the null sentinel.
func (v Value) IsNull() bool {
	switch v.Kind {
	case Null:
		return true
	case BulkString:
		return v.Text == nil
	case Array:
		return v.Array == nil
	default:
		return false
	}
}

// Copy returns a deep copy of v that does not alias the buffer the value
// was decoded from.
func (v Value) Copy() Value {
	c := Value{Kind: v.Kind, Int: v.Int}
	if v.Text != nil {
		c.Text = append([]byte(nil), v.Text...)
	}
	if v.Array != nil {
		c.Array = make([]Value, len(v.Array))
		for i := range v.Array {
			c.Array[i] = v.Array[i].Copy()
		}
	}
	return c
}

// Equal reports whether two values are structurally identical. Null and a
// nil-payload bulk string or array are distinct kinds and compare unequal;
// use IsNull to test nullness across kinds.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case Integer:
		return v.Int == o.Int
	case SimpleString, Error, BulkString:
		return string(v.Text) == string(o.Text)
	case Array:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Result is the two-armed reply convention: a reply is either a payload
// value or a server-reported error. Err is a *RedisError when the wire
// carried an error reply and nil otherwise. A bare "+OK\r\n" success decodes
// with Value set to the simple string "OK".
type Result struct {
	Value Value
	Err   error
}

// OK reports whether the result carries a payload rather than an error.
func (r Result) OK() bool {
	return r.Err == nil
}
