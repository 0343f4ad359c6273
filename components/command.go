// Package components implements the client conventions layered on top of
// the core codec: flat command argument lists, key/value pair flattening and
// the decimal-string form of numbers.
package components

import (
	"errors"
	"math"
	"reflect"
	"strconv"

	"github.com/kirk91/respcodec"
)

// ErrTooManyArgs is returned when a command's flattened argument count
// overflows the array header.
var ErrTooManyArgs = errors.New("command argument count overflow")

// InvalidTypeError reports a value outside the flat shapes the command and
// key/value conventions accept.
type InvalidTypeError struct {
	Type string
}

func (e *InvalidTypeError) Error() string {
	return "invalid argument type " + e.Type
}

// Command is the flat argument-list form of a Redis command: an array of
// bulk strings holding the command name followed by its arguments.
//
// Arguments follow the client conventions. Strings and byte slices pass
// through, integers are written in decimal, nil arguments and unset Flag
// values contribute nothing, non-nil pointers contribute their element,
// slices flatten one level, Pair and KeyValuePairs flatten to alternating
// key/value elements, and RedisString wraps any remaining scalar. Anything
// else fails with *InvalidTypeError.
type Command struct {
	Name string
	Args []interface{}
}

// Flag is a bare optional command flag such as NX. When Set it contributes
// its name as one argument, otherwise nothing.
type Flag struct {
	Name string
	Set  bool
}

// MarshalRESP encodes the command in two passes sharing one decomposition
// of the argument conventions: a counting dry run fixes the array header,
// then the emission pass writes the same elements in the same order.
func (c Command) MarshalRESP(e *respcodec.Encoder) error {
	n := 1
	for _, arg := range c.Args {
		cnt, err := countArg(arg, false)
		if err != nil {
			return err
		}
		if cnt > math.MaxInt32-n {
			return ErrTooManyArgs
		}
		n += cnt
	}
	return e.EncodeArray(n, func(a *respcodec.ArrayEncoder) error {
		if err := a.EncodeString(c.Name); err != nil {
			return err
		}
		for _, arg := range c.Args {
			if err := emitArg(a, arg, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// countArg and emitArg must stay in step: every shape countArg admits,
// emitArg writes exactly that many elements for.
func countArg(arg interface{}, nested bool) (int, error) {
	switch x := arg.(type) {
	case nil:
		return 0, nil
	case string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		RedisString:
		return 1, nil
	case bool:
		return 0, &InvalidTypeError{Type: "bool"}
	case float32:
		return 0, &InvalidTypeError{Type: "float32"}
	case float64:
		return 0, &InvalidTypeError{Type: "float64"}
	case Flag:
		if x.Set {
			return 1, nil
		}
		return 0, nil
	case Pair:
		return 2, nil
	case KeyValuePairs:
		if len(x) > math.MaxInt32/2 {
			return 0, ErrTooManyArgs
		}
		return 2 * len(x), nil
	}

	rv := reflect.ValueOf(arg)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return 0, nil
		}
		return countArg(rv.Elem().Interface(), nested)
	case reflect.Slice, reflect.Array:
		if nested {
			return 0, &InvalidTypeError{Type: rv.Type().String()}
		}
		n := 0
		for i := 0; i < rv.Len(); i++ {
			cnt, err := countArg(rv.Index(i).Interface(), true)
			if err != nil {
				return 0, err
			}
			if cnt > math.MaxInt32-n {
				return 0, ErrTooManyArgs
			}
			n += cnt
		}
		return n, nil
	default:
		return 0, &InvalidTypeError{Type: rv.Type().String()}
	}
}

func emitArg(a *respcodec.ArrayEncoder, arg interface{}, nested bool) error {
	switch x := arg.(type) {
	case nil:
		return nil
	case string:
		return a.EncodeString(x)
	case []byte:
		if x == nil {
			return a.EncodeString("")
		}
		return a.EncodeBytes(x)
	case int:
		return a.EncodeString(strconv.FormatInt(int64(x), 10))
	case int8:
		return a.EncodeString(strconv.FormatInt(int64(x), 10))
	case int16:
		return a.EncodeString(strconv.FormatInt(int64(x), 10))
	case int32:
		return a.EncodeString(strconv.FormatInt(int64(x), 10))
	case int64:
		return a.EncodeString(strconv.FormatInt(x, 10))
	case uint:
		return a.EncodeString(strconv.FormatUint(uint64(x), 10))
	case uint8:
		return a.EncodeString(strconv.FormatUint(uint64(x), 10))
	case uint16:
		return a.EncodeString(strconv.FormatUint(uint64(x), 10))
	case uint32:
		return a.EncodeString(strconv.FormatUint(uint64(x), 10))
	case uint64:
		return a.EncodeString(strconv.FormatUint(x, 10))
	case RedisString:
		text, err := scalarText(x.Value)
		if err != nil {
			return err
		}
		return a.EncodeString(text)
	case bool:
		return &InvalidTypeError{Type: "bool"}
	case float32:
		return &InvalidTypeError{Type: "float32"}
	case float64:
		return &InvalidTypeError{Type: "float64"}
	case Flag:
		if x.Set {
			return a.EncodeString(x.Name)
		}
		return nil
	case Pair:
		return emitPair(a, x)
	case KeyValuePairs:
		for _, p := range x {
			if err := emitPair(a, p); err != nil {
				return err
			}
		}
		return nil
	}

	rv := reflect.ValueOf(arg)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return emitArg(a, rv.Elem().Interface(), nested)
	case reflect.Slice, reflect.Array:
		if nested {
			return &InvalidTypeError{Type: rv.Type().String()}
		}
		for i := 0; i < rv.Len(); i++ {
			if err := emitArg(a, rv.Index(i).Interface(), true); err != nil {
				return err
			}
		}
		return nil
	default:
		return &InvalidTypeError{Type: rv.Type().String()}
	}
}

func emitPair(a *respcodec.ArrayEncoder, p Pair) error {
	if err := a.EncodeString(p.Key); err != nil {
		return err
	}
	text, err := scalarText(p.Value)
	if err != nil {
		return err
	}
	return a.EncodeString(text)
}
