package respcodec

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// eventVisitor records every callback as a readable event string.
type eventVisitor struct {
	events []string
}

func (v *eventVisitor) VisitNull() error {
	v.events = append(v.events, "null")
	return nil
}

func (v *eventVisitor) VisitInteger(n int64) error {
	v.events = append(v.events, fmt.Sprintf("int:%d", n))
	return nil
}

func (v *eventVisitor) VisitBytes(b []byte) error {
	v.events = append(v.events, "bytes:"+string(b))
	return nil
}

func (v *eventVisitor) VisitArray(a *ArrayDecoder) error {
	v.events = append(v.events, fmt.Sprintf("array:%d", a.Len()))
	for {
		ok, err := a.Next(v)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

func (v *eventVisitor) VisitBool(b bool) error {
	v.events = append(v.events, fmt.Sprintf("bool:%v", b))
	return nil
}

func (v *eventVisitor) VisitOK() error {
	v.events = append(v.events, "ok")
	return nil
}

func (v *eventVisitor) VisitErr(msg []byte) error {
	v.events = append(v.events, "err:"+string(msg))
	return nil
}

func decodeEvents(t *testing.T, in string) []string {
	v := new(eventVisitor)
	assert.Nil(t, Unmarshal([]byte(in), v), in)
	return v.events
}

func TestDecodeScalars(t *testing.T) {
	assert.Equal(t, []string{"bytes:PONG"}, decodeEvents(t, "+PONG\r\n"))
	assert.Equal(t, []string{"int:42"}, decodeEvents(t, ":42\r\n"))
	assert.Equal(t, []string{"bytes:hello"}, decodeEvents(t, "$5\r\nhello\r\n"))
	assert.Equal(t, []string{"bytes:"}, decodeEvents(t, "$0\r\n\r\n"))
	assert.Equal(t, []string{"null"}, decodeEvents(t, "$-1\r\n"))
	assert.Equal(t, []string{"null"}, decodeEvents(t, "*-1\r\n"))
	assert.Equal(t, []string{"null"}, decodeEvents(t, "$-001\r\n"))
}

func TestDecodeArray(t *testing.T) {
	events := decodeEvents(t, "*2\r\n$5\r\nhello\r\n$5\r\nworld\r\n")
	assert.Equal(t, []string{"array:2", "bytes:hello", "bytes:world"}, events)
}

func TestDecodeHeterogeneousArray(t *testing.T) {
	events := decodeEvents(t, "*3\r\n:1\r\n$2\r\nhi\r\n$-1\r\n")
	assert.Equal(t, []string{"array:3", "int:1", "bytes:hi", "null"}, events)
}

func TestDecodeNestedArray(t *testing.T) {
	events := decodeEvents(t, "*2\r\n*1\r\n:7\r\n*0\r\n")
	assert.Equal(t, []string{"array:2", "array:1", "int:7", "array:0"}, events)
}

func TestDecodeWireErrorIsFailure(t *testing.T) {
	v := new(eventVisitor)
	err := Unmarshal([]byte("-ERR bad\r\n"), v)
	var re *RedisError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, "ERR bad", string(re.Message))
	assert.Equal(t, "redis: ERR bad", re.Error())
	assert.Empty(t, v.events)
}

func TestDecodeBoolReinterpretsZeroAndOne(t *testing.T) {
	for in, want := range map[string]string{
		":0\r\n": "bool:false",
		":1\r\n": "bool:true",
	} {
		v := new(eventVisitor)
		d := NewDecoder([]byte(in))
		assert.Nil(t, d.DecodeBool(v))
		assert.Equal(t, []string{want}, v.events)
	}
}

func TestDecodeBoolPassesOtherShapesThrough(t *testing.T) {
	v := new(eventVisitor)
	d := NewDecoder([]byte(":2\r\n$4\r\ntrue\r\n"))
	assert.Nil(t, d.DecodeBool(v))
	assert.Nil(t, d.DecodeBool(v))
	assert.Equal(t, []string{"int:2", "bytes:true"}, v.events)
}

func TestGenericDecodeNeverMakesBooleans(t *testing.T) {
	assert.Equal(t, []string{"int:1"}, decodeEvents(t, ":1\r\n"))
	assert.Equal(t, []string{"int:0"}, decodeEvents(t, ":0\r\n"))
}

func TestDecodeOption(t *testing.T) {
	v := new(eventVisitor)
	d := NewDecoder([]byte("$-1\r\n$5\r\nhello\r\n"))

	present, err := d.DecodeOption(v)
	assert.Nil(t, err)
	assert.False(t, present)
	assert.Empty(t, v.events)

	present, err = d.DecodeOption(v)
	assert.Nil(t, err)
	assert.True(t, present)
	assert.Equal(t, []string{"bytes:hello"}, v.events)
	assert.False(t, d.More())
}

func TestDecodeResult(t *testing.T) {
	v := new(eventVisitor)
	d := NewDecoder([]byte("+OK\r\n-ERR bad\r\n:5\r\n+PONG\r\n"))
	for i := 0; i < 4; i++ {
		assert.Nil(t, d.DecodeResult(v))
	}
	assert.Equal(t, []string{"ok", "err:ERR bad", "int:5", "bytes:PONG"}, v.events)
}

func TestDecodePipelining(t *testing.T) {
	d := NewDecoder([]byte("+first\r\n:2\r\n"))

	v1, err := d.DecodeValue()
	assert.Nil(t, err)
	assert.Equal(t, "first", string(v1.Text))
	assert.True(t, d.More())

	v2, err := d.DecodeValue()
	assert.Nil(t, err)
	assert.Equal(t, int64(2), v2.Int)
	assert.False(t, d.More())
	assert.Empty(t, d.Rest())
}

func TestUnmarshalTrailingData(t *testing.T) {
	err := Unmarshal([]byte("+OK\r\n+extra\r\n"), new(eventVisitor))
	assert.Equal(t, ErrTrailingData, err)

	_, err = UnmarshalValue([]byte(":1\r\nx"))
	assert.Equal(t, ErrTrailingData, err)
}

func TestDecodeTruncatedPrefixRetry(t *testing.T) {
	full := []byte("*2\r\n$5\r\nhello\r\n$5\r\nworld\r\n")
	for cut := 0; cut < len(full); cut++ {
		d := NewDecoder(full[:cut])
		_, err := d.DecodeValue()
		var eof *EOFError
		assert.True(t, errors.As(err, &eof), "cut=%d err=%v", cut, err)
		assert.True(t, eof.Needed > 0, "cut=%d", cut)

		// retrying from the start once the buffer is complete succeeds
		v, err := NewDecoder(full).DecodeValue()
		assert.Nil(t, err)
		assert.Equal(t, 2, len(v.Array))
	}
}

func TestDecodeArrayEOFEnlargement(t *testing.T) {
	_, err := NewDecoder([]byte("*2\r\n")).DecodeValue()
	eof, ok := err.(*EOFError)
	assert.True(t, ok)
	// bare header for the first element plus 3 bytes for the second plus
	// the closing terminator allowance
	assert.Equal(t, 8, eof.Needed)
}

func TestDecodeLengthCeiling(t *testing.T) {
	_, err := NewDecoder([]byte("$536870913\r\n")).DecodeValue()
	assert.Equal(t, ErrLength, err)

	_, err = NewDecoder([]byte("*536870913\r\n")).DecodeValue()
	assert.Equal(t, ErrLength, err)

	_, err = NewDecoder([]byte("$-2\r\n")).DecodeValue()
	assert.Equal(t, ErrLength, err)

	// the ceiling itself is legal; it fails later on missing payload bytes
	_, err = NewDecoder([]byte("$536870912\r\n")).DecodeValue()
	var eof *EOFError
	assert.True(t, errors.As(err, &eof))
}

type lazyVisitor struct {
	eventVisitor
	consume int
}

func (v *lazyVisitor) VisitArray(a *ArrayDecoder) error {
	for i := 0; i < v.consume; i++ {
		if _, err := a.Next(&v.eventVisitor); err != nil {
			return err
		}
	}
	return nil
}

func TestDecodeUnfinishedArray(t *testing.T) {
	d := NewDecoder([]byte("*2\r\n:1\r\n:2\r\n"))
	err := d.Decode(&lazyVisitor{consume: 1})
	assert.Equal(t, ErrUnfinishedArray, err)
}

func TestArrayDecoderExhaustion(t *testing.T) {
	d := NewDecoder([]byte("*1\r\n:9\r\n:10\r\n"))
	err := d.Decode(&lazyVisitor{consume: 5})
	assert.Nil(t, err)

	// the trailing value was not consumed by the array
	v, err := d.DecodeValue()
	assert.Nil(t, err)
	assert.Equal(t, int64(10), v.Int)
}

func TestDecodeValueKindsPreserved(t *testing.T) {
	v, err := UnmarshalValue([]byte("+OK\r\n"))
	assert.Nil(t, err)
	assert.Equal(t, SimpleString, v.Kind)

	v, err = UnmarshalValue([]byte("$2\r\nOK\r\n"))
	assert.Nil(t, err)
	assert.Equal(t, BulkString, v.Kind)

	v, err = UnmarshalValue([]byte("*2\r\n$3\r\nfoo\r\n:7\r\n"))
	assert.Nil(t, err)
	assert.Equal(t, Array, v.Kind)
	assert.Equal(t, BulkString, v.Array[0].Kind)
	assert.Equal(t, "foo", string(v.Array[0].Text))
	assert.Equal(t, int64(7), v.Array[1].Int)
}

func TestUnmarshalResult(t *testing.T) {
	r, err := UnmarshalResult([]byte("+OK\r\n"))
	assert.Nil(t, err)
	assert.True(t, r.OK())
	assert.Equal(t, "OK", string(r.Value.Text))

	r, err = UnmarshalResult([]byte("-ERR bad\r\n"))
	assert.Nil(t, err)
	assert.False(t, r.OK())
	var re *RedisError
	assert.True(t, errors.As(r.Err, &re))
	assert.Equal(t, "ERR bad", string(re.Message))

	r, err = UnmarshalResult([]byte(":3\r\n"))
	assert.Nil(t, err)
	assert.True(t, r.OK())
	assert.Equal(t, int64(3), r.Value.Int)
}

func TestVisitorErrorPropagatesVerbatim(t *testing.T) {
	custom := errors.New("stop here")
	err := Unmarshal([]byte(":1\r\n"), &failingVisitor{err: custom})
	assert.Equal(t, custom, err)
}

type failingVisitor struct {
	err error
}

func (v *failingVisitor) VisitNull() error               { return v.err }
func (v *failingVisitor) VisitInteger(int64) error       { return v.err }
func (v *failingVisitor) VisitBytes([]byte) error        { return v.err }
func (v *failingVisitor) VisitArray(*ArrayDecoder) error { return v.err }

func TestDecoderReset(t *testing.T) {
	d := NewDecoder([]byte(":1\r\n"))
	_, err := d.DecodeValue()
	assert.Nil(t, err)

	d.Reset([]byte(":2\r\n"))
	v, err := d.DecodeValue()
	assert.Nil(t, err)
	assert.Equal(t, int64(2), v.Int)
}
