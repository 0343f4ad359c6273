package respcodec

import "errors"

var (
	// ErrLength is returned when a bulk string or array header declares a
	// negative length other than the -1 null sentinel, or a length above
	// MaxBulkLength.
	ErrLength = errors.New("array or bulk string length out of bounds")

	// ErrUnfinishedArray is returned when a visitor returns from VisitArray
	// without consuming the declared number of elements.
	ErrUnfinishedArray = errors.New("visitor did not consume the entire array")

	// ErrTrailingData is returned by Unmarshal when input bytes remain after
	// one complete value has been decoded. Decoder itself tolerates trailing
	// bytes to support pipelining.
	ErrTrailingData = errors.New("decode completed without consuming the entire input")
)

// RedisError is a server-reported error decoded from the wire. Decoding a
// wire error as anything but a Result surfaces it as a *RedisError failure,
// so typed decoding never silently swallows a reply error.
type RedisError struct {
	Message []byte
}

func (e *RedisError) Error() string {
	return "redis: " + string(e.Message)
}

// Visitor receives the concrete shape of one decoded RESP value. Byte slices
// passed to VisitBytes alias the input buffer and are only valid for the
// duration of the call unless copied.
type Visitor interface {
	VisitNull() error
	VisitInteger(n int64) error
	VisitBytes(b []byte) error
	VisitArray(a *ArrayDecoder) error
}

// BoolVisitor additionally accepts booleans. DecodeBool reinterprets a wire
// integer of exactly 0 or 1 as a boolean; any other shape is passed through
// to the embedded Visitor unmodified.
type BoolVisitor interface {
	Visitor
	VisitBool(v bool) error
}

// ResultVisitor additionally accepts the two-armed reply convention. A bare
// "+OK\r\n" is delivered to VisitOK, a wire error to VisitErr, and any other
// reply inline through the embedded Visitor as the success payload.
type ResultVisitor interface {
	Visitor
	VisitOK() error
	VisitErr(msg []byte) error
}

// Decoder decodes RESP values from a byte slice. The slice is a cursor: each
// successful decode advances it past exactly the bytes consumed, so repeated
// calls decode a pipelined stream in order. A Decoder must not be shared
// between concurrent calls, and the underlying buffer must not be mutated
// while a decode is in progress.
//
// After a failed decode the cursor position is unspecified; reset the
// Decoder, or construct a new one, before retrying.
type Decoder struct {
	rest []byte
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{rest: data}
}

// Reset makes the Decoder read from data, discarding any previous state.
func (d *Decoder) Reset(data []byte) {
	d.rest = data
}

// Rest returns the unconsumed remainder of the input.
func (d *Decoder) Rest() []byte {
	return d.rest
}

// More reports whether unconsumed input remains.
func (d *Decoder) More() bool {
	return len(d.rest) > 0
}

func (d *Decoder) readHeader() (Header, error) {
	h, rest, err := ReadHeader(d.rest)
	if err != nil {
		return Header{}, err
	}
	d.rest = rest
	return h, nil
}

// Decode decodes the next value and delivers it to v. A wire error is
// returned as a *RedisError; use DecodeResult to receive it as data instead.
func (d *Decoder) Decode(v Visitor) error {
	h, err := d.readHeader()
	if err != nil {
		return err
	}
	return d.decodeHeader(h, v)
}

// decodeHeader dispatches an already-parsed header. Option and result
// decoding rely on this to re-deliver a peeked header without re-reading
// bytes.
func (d *Decoder) decodeHeader(h Header, v Visitor) error {
	switch h.Kind {
	case SimpleString:
		return v.VisitBytes(h.Text)
	case Error:
		return &RedisError{Message: append([]byte(nil), h.Text...)}
	case Integer:
		return v.VisitInteger(h.Int)
	case BulkString:
		payload, err := d.readBulkPayload(h.Int)
		if err != nil {
			return err
		}
		return v.VisitBytes(payload)
	case Array:
		if h.Int < 0 || h.Int > MaxBulkLength {
			return ErrLength
		}
		return d.decodeArray(int(h.Int), v.VisitArray)
	case Null:
		return v.VisitNull()
	default:
		return &BadTagError{Tag: byte(h.Kind)}
	}
}

func (d *Decoder) readBulkPayload(length int64) ([]byte, error) {
	if length < 0 || length > MaxBulkLength {
		return nil, ErrLength
	}
	payload, rest, err := ReadExact(int(length), d.rest)
	if err != nil {
		return nil, err
	}
	d.rest = rest
	return payload, nil
}

// decodeArray runs f over a fresh element decoder bound to count elements
// and enforces that f consumed all of them. A truncation error escaping f
// is enlarged by a conservative 3 bytes per unconsumed element plus the
// 2-byte terminator allowance, so streaming callers get a usable retry
// threshold.
func (d *Decoder) decodeArray(count int, f func(*ArrayDecoder) error) error {
	a := &ArrayDecoder{d: d, remaining: count}
	err := f(a)
	if err == nil {
		if a.remaining > 0 {
			return ErrUnfinishedArray
		}
		return nil
	}
	var eof *EOFError
	if errors.As(err, &eof) {
		return &EOFError{Needed: eof.Needed + a.remaining*3 + 2}
	}
	return err
}

// DecodeBool decodes the next value, reinterpreting a wire integer of
// exactly 0 or 1 as false or true. Everything else reaches v unmodified, so
// callers wanting strict booleans reject other shapes themselves.
func (d *Decoder) DecodeBool(v BoolVisitor) error {
	return d.Decode(&boolAdapter{inner: v})
}

type boolAdapter struct {
	inner BoolVisitor
}

func (a *boolAdapter) VisitNull() error            { return a.inner.VisitNull() }
func (a *boolAdapter) VisitBytes(b []byte) error   { return a.inner.VisitBytes(b) }
func (a *boolAdapter) VisitArray(ad *ArrayDecoder) error { return a.inner.VisitArray(ad) }

func (a *boolAdapter) VisitInteger(n int64) error {
	switch n {
	case 0:
		return a.inner.VisitBool(false)
	case 1:
		return a.inner.VisitBool(true)
	default:
		return a.inner.VisitInteger(n)
	}
}

// DecodeOption decodes the next value as an optional. A null reports
// present == false without delivering anything; any other value is
// delivered to v from the already-parsed header.
func (d *Decoder) DecodeOption(v Visitor) (present bool, err error) {
	h, err := d.readHeader()
	if err != nil {
		return false, err
	}
	if h.Kind == Null {
		return false, nil
	}
	return true, d.decodeHeader(h, v)
}

// DecodeResult decodes the next value under the Ok/Err reply convention.
func (d *Decoder) DecodeResult(v ResultVisitor) error {
	h, err := d.readHeader()
	if err != nil {
		return err
	}
	switch {
	case h.Kind == SimpleString && string(h.Text) == "OK":
		return v.VisitOK()
	case h.Kind == Error:
		return v.VisitErr(h.Text)
	default:
		return d.decodeHeader(h, v)
	}
}

// DecodeValue decodes the next value into the dynamic Value form.
// SimpleString and BulkString kinds are preserved. Text payloads alias the
// input buffer; use Value.Copy to keep them past it.
func (d *Decoder) DecodeValue() (Value, error) {
	h, err := d.readHeader()
	if err != nil {
		return Value{}, err
	}
	return d.valueFromHeader(h)
}

func (d *Decoder) valueFromHeader(h Header) (Value, error) {
	switch h.Kind {
	case SimpleString:
		return Value{Kind: SimpleString, Text: h.Text}, nil
	case Error:
		return Value{}, &RedisError{Message: append([]byte(nil), h.Text...)}
	case Integer:
		return Value{Kind: Integer, Int: h.Int}, nil
	case BulkString:
		payload, err := d.readBulkPayload(h.Int)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: BulkString, Text: payload}, nil
	case Array:
		if h.Int < 0 || h.Int > MaxBulkLength {
			return Value{}, ErrLength
		}
		var elems []Value
		err := d.decodeArray(int(h.Int), func(a *ArrayDecoder) error {
			elems = make([]Value, 0, boundedCap(a.Len()))
			for a.More() {
				e, _, err := a.NextValue()
				if err != nil {
					return err
				}
				elems = append(elems, e)
			}
			return nil
		})
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: Array, Array: elems}, nil
	default:
		return Value{Kind: Null}, nil
	}
}

// boundedCap limits preallocation for declared array counts so a hostile
// header cannot force a huge allocation before any elements are read.
func boundedCap(n int) int {
	const max = 1024
	if n > max {
		return max
	}
	return n
}

// DecodeResultValue decodes the next value under the Ok/Err reply
// convention into the dynamic Result form.
func (d *Decoder) DecodeResultValue() (Result, error) {
	h, err := d.readHeader()
	if err != nil {
		return Result{}, err
	}
	switch {
	case h.Kind == SimpleString && string(h.Text) == "OK":
		return Result{Value: Value{Kind: SimpleString, Text: h.Text}}, nil
	case h.Kind == Error:
		return Result{Err: &RedisError{Message: append([]byte(nil), h.Text...)}}, nil
	default:
		v, err := d.valueFromHeader(h)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: v}, nil
	}
}

// ArrayDecoder decodes the elements of one RESP array in order. Each Next*
// call decodes one element with a fresh recursive decode sharing the outer
// cursor; once the declared count is consumed, further calls report no more
// elements without touching the cursor.
type ArrayDecoder struct {
	d         *Decoder
	remaining int
}

// Len returns the number of elements not yet consumed.
func (a *ArrayDecoder) Len() int {
	return a.remaining
}

// More reports whether elements remain.
func (a *ArrayDecoder) More() bool {
	return a.remaining > 0
}

func (a *ArrayDecoder) take() bool {
	if a.remaining == 0 {
		return false
	}
	a.remaining--
	return true
}

// Next decodes the next element into v. It returns false when the array is
// exhausted.
func (a *ArrayDecoder) Next(v Visitor) (bool, error) {
	if !a.take() {
		return false, nil
	}
	return true, a.d.Decode(v)
}

// NextBool decodes the next element with boolean reinterpretation.
func (a *ArrayDecoder) NextBool(v BoolVisitor) (bool, error) {
	if !a.take() {
		return false, nil
	}
	return true, a.d.DecodeBool(v)
}

// NextOption decodes the next element as an optional. ok reports whether an
// element remained; present whether it was non-null.
func (a *ArrayDecoder) NextOption(v Visitor) (ok, present bool, err error) {
	if !a.take() {
		return false, false, nil
	}
	present, err = a.d.DecodeOption(v)
	return true, present, err
}

// NextResult decodes the next element under the Ok/Err reply convention.
func (a *ArrayDecoder) NextResult(v ResultVisitor) (bool, error) {
	if !a.take() {
		return false, nil
	}
	return true, a.d.DecodeResult(v)
}

// NextValue decodes the next element into the dynamic Value form.
func (a *ArrayDecoder) NextValue() (Value, bool, error) {
	if !a.take() {
		return Value{}, false, nil
	}
	v, err := a.d.DecodeValue()
	return v, true, err
}

// Unmarshal decodes exactly one RESP value from data into v, failing with
// ErrTrailingData if input remains afterwards. For pipelined buffers use a
// Decoder directly.
func Unmarshal(data []byte, v Visitor) error {
	d := NewDecoder(data)
	if err := d.Decode(v); err != nil {
		return err
	}
	if d.More() {
		return ErrTrailingData
	}
	return nil
}

// UnmarshalValue decodes exactly one RESP value from data into the dynamic
// Value form.
func UnmarshalValue(data []byte) (Value, error) {
	d := NewDecoder(data)
	v, err := d.DecodeValue()
	if err != nil {
		return Value{}, err
	}
	if d.More() {
		return Value{}, ErrTrailingData
	}
	return v, nil
}

// UnmarshalResult decodes exactly one RESP value from data under the Ok/Err
// reply convention.
func UnmarshalResult(data []byte) (Result, error) {
	d := NewDecoder(data)
	r, err := d.DecodeResultValue()
	if err != nil {
		return Result{}, err
	}
	if d.More() {
		return Result{}, ErrTrailingData
	}
	return r, nil
}
