package components

import (
	"fmt"
	"strconv"

	"github.com/kirk91/respcodec"
)

// RedisString adapts a primitive so it rides the wire as a bulk string,
// the decimal-text form numeric command arguments and replies use. Floats
// are accepted here: they never appear on the wire as a RESP type, only as
// text.
type RedisString struct {
	Value interface{}
}

func (s RedisString) MarshalRESP(e *respcodec.Encoder) error {
	text, err := scalarText(s.Value)
	if err != nil {
		return err
	}
	return e.EncodeString(text)
}

func scalarText(v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case RedisString:
		return scalarText(x.Value)
	case respcodec.Value:
		switch x.Kind {
		case respcodec.BulkString, respcodec.SimpleString:
			return string(x.Text), nil
		case respcodec.Integer:
			return strconv.FormatInt(x.Int, 10), nil
		default:
			return "", &InvalidTypeError{Type: x.Kind.String()}
		}
	default:
		return "", &InvalidTypeError{Type: fmt.Sprintf("%T", v)}
	}
}

// Int64 parses a string-kinded value as a decimal integer.
func Int64(v respcodec.Value) (int64, error) {
	b, err := stringPayload(v)
	if err != nil {
		return 0, err
	}
	return respcodec.ParseNumber(b)
}

// Uint64 parses a string-kinded value as an unsigned decimal integer.
func Uint64(v respcodec.Value) (uint64, error) {
	b, err := stringPayload(v)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(b), 10, 64)
}

// Float64 parses a string-kinded value as a floating point number.
func Float64(v respcodec.Value) (float64, error) {
	b, err := stringPayload(v)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(string(b), 64)
}

func stringPayload(v respcodec.Value) ([]byte, error) {
	switch v.Kind {
	case respcodec.BulkString, respcodec.SimpleString:
		return v.Text, nil
	default:
		return nil, &InvalidTypeError{Type: v.Kind.String()}
	}
}
