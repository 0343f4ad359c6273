package respcodec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
)

var (
	// ErrNumberOutOfRange is returned for numeric values outside the signed
	// 64-bit range RESP integers are guaranteed to fit.
	ErrNumberOutOfRange = errors.New("number outside the range of a signed 64-bit integer")

	// ErrUnknownSeqLength is returned when a sequence is encoded without a
	// known length. RESP arrays are length-prefixed; materialize the count
	// first, or use components.Command for command argument lists.
	ErrUnknownSeqLength = errors.New("sequence of unknown length")

	// ErrBadSeqLength is returned when the number of encoded elements
	// differs from the declared array length.
	ErrBadSeqLength = errors.New("encoded element count differs from declared array length")

	// ErrBadSimpleString is returned when a simple string or error payload
	// contains a CR or LF byte.
	ErrBadSimpleString = errors.New("simple string payload contains \\r or \\n")

	// ErrInvalidErrorPayload is returned when an error-arm payload is not
	// text or bytes.
	ErrInvalidErrorPayload = errors.New("invalid error payload, must be text or bytes")
)

// UnsupportedTypeError is returned when a value has no RESP representation,
// such as floats, maps and structs. Key-value shapes can be flattened with
// the components package.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return "can't encode " + e.Type
}

// Marshaler is implemented by types that control their own wire form.
type Marshaler interface {
	MarshalRESP(e *Encoder) error
}

const (
	nullPayload = "$-1\r\n"
	okPayload   = "+OK\r\n"
)

// Encoder writes RESP values to an Output sink. A bare unit encodes as the
// null sentinel by default; inside the Ok arm of a Result it encodes as
// "+OK\r\n" instead. The policy is fixed per Encoder and switched once when
// the Ok arm is entered, never by inspecting values. An Encoder must not be
// shared between concurrent calls. On error the sink may already hold a
// prefix of the value; there is no rollback.
type Encoder struct {
	out  Output
	unit string
	buf  []byte
}

func NewEncoder(out Output) *Encoder {
	return &Encoder{out: out, unit: nullPayload}
}

// okArm returns the encoder configuration used inside a Result Ok arm.
func (e *Encoder) okArm() *Encoder {
	return &Encoder{out: e.out, unit: okPayload, buf: e.buf}
}

// writeHeader emits one TAG NUMBER \r\n header, reserving room for the
// header plus suffixReserve upcoming payload bytes.
func (e *Encoder) writeHeader(tag byte, n int64, suffixReserve int) error {
	s := itoa(n)
	e.out.Reserve(len(s) + 3 + suffixReserve)
	e.buf = append(e.buf[:0], tag)
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, cr, lf)
	return e.out.WriteBytes(e.buf)
}

func (e *Encoder) EncodeBool(v bool) error {
	if v {
		return e.EncodeInt(1)
	}
	return e.EncodeInt(0)
}

func (e *Encoder) EncodeInt(v int64) error {
	return e.writeHeader(byte(Integer), v, 0)
}

func (e *Encoder) EncodeUint(v uint64) error {
	if v > math.MaxInt64 {
		return ErrNumberOutOfRange
	}
	return e.EncodeInt(int64(v))
}

// EncodeString writes s as a length-prefixed bulk string.
func (e *Encoder) EncodeString(s string) error {
	if err := e.writeHeader(byte(BulkString), int64(len(s)), len(s)+2); err != nil {
		return err
	}
	if err := e.out.WriteString(s); err != nil {
		return err
	}
	return e.out.WriteBytes(crlf)
}

// EncodeBytes writes b as a bulk string. A nil slice encodes as the null
// sentinel.
func (e *Encoder) EncodeBytes(b []byte) error {
	if b == nil {
		return e.EncodeNull()
	}
	if err := e.writeHeader(byte(BulkString), int64(len(b)), len(b)+2); err != nil {
		return err
	}
	if err := e.out.WriteBytes(b); err != nil {
		return err
	}
	return e.out.WriteBytes(crlf)
}

// EncodeNull writes the bulk string null sentinel, the encoding of an
// absent optional.
func (e *Encoder) EncodeNull() error {
	return e.out.WriteString(nullPayload)
}

// EncodeUnit writes a bare unit under the encoder's unit policy.
func (e *Encoder) EncodeUnit() error {
	return e.out.WriteString(e.unit)
}

// EncodeOK writes the bare "+OK\r\n" success reply.
func (e *Encoder) EncodeOK() error {
	return e.out.WriteString(okPayload)
}

// EncodeSimpleString writes s as a single-line simple string. The payload
// must not contain CR or LF.
func (e *Encoder) EncodeSimpleString(s string) error {
	if strings.ContainsAny(s, "\r\n") {
		return ErrBadSimpleString
	}
	e.out.Reserve(len(s) + 3)
	if err := e.out.WriteString("+"); err != nil {
		return err
	}
	if err := e.out.WriteString(s); err != nil {
		return err
	}
	return e.out.WriteBytes(crlf)
}

// EncodeError writes msg as a wire error reply. The payload must not
// contain CR or LF.
func (e *Encoder) EncodeError(msg []byte) error {
	if bytes.ContainsAny(msg, "\r\n") {
		return ErrBadSimpleString
	}
	e.out.Reserve(len(msg) + 3)
	if err := e.out.WriteString("-"); err != nil {
		return err
	}
	if err := e.out.WriteBytes(msg); err != nil {
		return err
	}
	return e.out.WriteBytes(crlf)
}

func (e *Encoder) EncodeErrorString(msg string) error {
	return e.EncodeError([]byte(msg))
}

// estimateArrayReservation sizes the output hint for an n-element array.
// The smallest bulk string is 6 bytes, by far the most common element.
func estimateArrayReservation(n int) int {
	return n * 6
}

// EncodeArray writes an n-element array header and runs f to emit exactly n
// elements. Emitting more or fewer than n elements fails with
// ErrBadSeqLength. Elements are encoded in the default unit mode.
func (e *Encoder) EncodeArray(n int, f func(*ArrayEncoder) error) error {
	if n < 0 {
		return ErrBadSeqLength
	}
	if err := e.writeHeader(byte(Array), int64(n), estimateArrayReservation(n)); err != nil {
		return err
	}
	a := &ArrayEncoder{e: NewEncoder(e.out), remaining: n}
	if err := f(a); err != nil {
		return err
	}
	if a.remaining != 0 {
		return ErrBadSeqLength
	}
	return nil
}

// EncodeValue writes a dynamic Value. A nil Array encodes as the array null
// sentinel; a Null kind follows the encoder's unit policy.
func (e *Encoder) EncodeValue(v Value) error {
	switch v.Kind {
	case Null:
		return e.EncodeUnit()
	case SimpleString:
		if bytes.ContainsAny(v.Text, "\r\n") {
			return ErrBadSimpleString
		}
		e.out.Reserve(len(v.Text) + 3)
		if err := e.out.WriteString("+"); err != nil {
			return err
		}
		if err := e.out.WriteBytes(v.Text); err != nil {
			return err
		}
		return e.out.WriteBytes(crlf)
	case Error:
		return e.EncodeError(v.Text)
	case Integer:
		return e.EncodeInt(v.Int)
	case BulkString:
		return e.EncodeBytes(v.Text)
	case Array:
		if v.Array == nil {
			return e.writeHeader(byte(Array), -1, 0)
		}
		return e.EncodeArray(len(v.Array), func(a *ArrayEncoder) error {
			for i := range v.Array {
				if err := a.EncodeValue(v.Array[i]); err != nil {
					return err
				}
			}
			return nil
		})
	default:
		return &UnsupportedTypeError{Type: fmt.Sprintf("value of kind %#x", byte(v.Kind))}
	}
}

// EncodeResult writes a Result. The error arm emits a wire error; the Ok
// arm re-enters encoding with the unit-means-OK policy, so Ok carrying a
// unit emits the bare "+OK\r\n".
func (e *Encoder) EncodeResult(r Result) error {
	if r.Err != nil {
		if re, ok := r.Err.(*RedisError); ok {
			return e.EncodeError(re.Message)
		}
		return e.EncodeErrorString(r.Err.Error())
	}
	return e.okArm().EncodeValue(r.Value)
}

// EncodeResultOK runs f with the Ok-arm encoder configuration, in which a
// bare unit encodes as "+OK\r\n".
func (e *Encoder) EncodeResultOK(f func(*Encoder) error) error {
	return f(e.okArm())
}

// EncodeResultErr writes the failure arm of a reply. The payload must be
// text or bytes.
func (e *Encoder) EncodeResultErr(payload interface{}) error {
	switch x := payload.(type) {
	case string:
		return e.EncodeErrorString(x)
	case []byte:
		return e.EncodeError(x)
	case error:
		return e.EncodeErrorString(x.Error())
	default:
		return ErrInvalidErrorPayload
	}
}

// Encode writes an arbitrary Go value. Booleans become integers 0/1,
// strings and byte slices become bulk strings, nil pointers become the null
// sentinel and non-nil pointers encode their element, and slices and arrays
// become length-prefixed arrays. Floats, maps, structs and other shapes
// with no wire representation fail with *UnsupportedTypeError; channels
// fail with ErrUnknownSeqLength.
func (e *Encoder) Encode(v interface{}) error {
	switch x := v.(type) {
	case nil:
		return e.EncodeUnit()
	case Marshaler:
		return x.MarshalRESP(e)
	case Value:
		return e.EncodeValue(x)
	case Result:
		return e.EncodeResult(x)
	case bool:
		return e.EncodeBool(x)
	case int:
		return e.EncodeInt(int64(x))
	case int8:
		return e.EncodeInt(int64(x))
	case int16:
		return e.EncodeInt(int64(x))
	case int32:
		return e.EncodeInt(int64(x))
	case int64:
		return e.EncodeInt(x)
	case uint:
		return e.EncodeUint(uint64(x))
	case uint8:
		return e.EncodeUint(uint64(x))
	case uint16:
		return e.EncodeUint(uint64(x))
	case uint32:
		return e.EncodeUint(uint64(x))
	case uint64:
		return e.EncodeUint(x)
	case float32:
		return &UnsupportedTypeError{Type: "float32"}
	case float64:
		return &UnsupportedTypeError{Type: "float64"}
	case string:
		return e.EncodeString(x)
	case []byte:
		return e.EncodeBytes(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return e.EncodeNull()
		}
		return e.Encode(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return e.writeHeader(byte(Array), -1, 0)
		}
		fallthrough
	case reflect.Array:
		return e.EncodeArray(rv.Len(), func(a *ArrayEncoder) error {
			for i := 0; i < rv.Len(); i++ {
				if err := a.Encode(rv.Index(i).Interface()); err != nil {
					return err
				}
			}
			return nil
		})
	case reflect.Chan:
		return ErrUnknownSeqLength
	default:
		return &UnsupportedTypeError{Type: rv.Type().String()}
	}
}

// ArrayEncoder emits the elements of one length-prefixed array. Emitting
// past the declared count fails with ErrBadSeqLength immediately.
type ArrayEncoder struct {
	e         *Encoder
	remaining int
}

// Remaining returns the number of elements still owed to the array header.
func (a *ArrayEncoder) Remaining() int {
	return a.remaining
}

func (a *ArrayEncoder) element() (*Encoder, error) {
	if a.remaining == 0 {
		return nil, ErrBadSeqLength
	}
	a.remaining--
	return a.e, nil
}

func (a *ArrayEncoder) Encode(v interface{}) error {
	e, err := a.element()
	if err != nil {
		return err
	}
	return e.Encode(v)
}

func (a *ArrayEncoder) EncodeBool(v bool) error {
	e, err := a.element()
	if err != nil {
		return err
	}
	return e.EncodeBool(v)
}

func (a *ArrayEncoder) EncodeInt(v int64) error {
	e, err := a.element()
	if err != nil {
		return err
	}
	return e.EncodeInt(v)
}

func (a *ArrayEncoder) EncodeUint(v uint64) error {
	e, err := a.element()
	if err != nil {
		return err
	}
	return e.EncodeUint(v)
}

func (a *ArrayEncoder) EncodeString(s string) error {
	e, err := a.element()
	if err != nil {
		return err
	}
	return e.EncodeString(s)
}

func (a *ArrayEncoder) EncodeBytes(b []byte) error {
	e, err := a.element()
	if err != nil {
		return err
	}
	return e.EncodeBytes(b)
}

func (a *ArrayEncoder) EncodeNull() error {
	e, err := a.element()
	if err != nil {
		return err
	}
	return e.EncodeNull()
}

func (a *ArrayEncoder) EncodeValue(v Value) error {
	e, err := a.element()
	if err != nil {
		return err
	}
	return e.EncodeValue(v)
}

func (a *ArrayEncoder) EncodeResult(r Result) error {
	e, err := a.element()
	if err != nil {
		return err
	}
	return e.EncodeResult(r)
}

func (a *ArrayEncoder) EncodeArray(n int, f func(*ArrayEncoder) error) error {
	e, err := a.element()
	if err != nil {
		return err
	}
	return e.EncodeArray(n, f)
}

// Marshal encodes v as a RESP byte buffer.
func Marshal(v interface{}) ([]byte, error) {
	var b Buffer
	if err := NewEncoder(&b).Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// MarshalString encodes v as RESP data in a string. RESP is a binary
// protocol; non-UTF-8 payloads fail with ErrUTF8Encode.
func MarshalString(v interface{}) (string, error) {
	var b StringBuffer
	if err := NewEncoder(&b).Encode(v); err != nil {
		return "", err
	}
	return b.String(), nil
}

// MarshalWriter encodes v as RESP data written to w.
func MarshalWriter(v interface{}, w io.Writer) error {
	return NewEncoder(NewWriterOutput(w)).Encode(v)
}

const (
	minItoa = -128
	maxItoa = 32768
)

var (
	itoaOffset [maxItoa - minItoa + 1]uint32
	itoaBuffer string
)

func init() {
	// make itoa buffer to speed up conversion
	var b bytes.Buffer
	for i := range itoaOffset {
		itoaOffset[i] = uint32(b.Len())
		b.WriteString(strconv.Itoa(i + minItoa))
	}
	itoaBuffer = b.String()
}

func itoa(i int64) string {
	if i >= minItoa && i <= maxItoa {
		beg := itoaOffset[i-minItoa]
		if i == maxItoa {
			return itoaBuffer[beg:]
		}
		end := itoaOffset[i-minItoa+1]
		return itoaBuffer[beg:end]
	}
	return strconv.FormatInt(i, 10)
}
