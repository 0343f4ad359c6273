package components

import (
	"errors"
	"math"
	"sort"

	"github.com/kirk91/respcodec"
)

// ErrOddPairCount is returned when a key/value stream does not hold an even
// number of elements.
var ErrOddPairCount = errors.New("key/value stream has an odd number of elements")

// Pair is one key/value entry. On encode the value may be any scalar the
// decimal-string convention accepts; DecodeKeyValuePairs fills it with a
// respcodec.Value.
type Pair struct {
	Key   string
	Value interface{}
}

// KeyValuePairs is a pair list that travels as a flat 2N-element sequence
// alternating key and value, the shape MSET and HSET use. On its own it
// marshals as a 2N array; as a Command argument it flattens into the
// enclosing command array instead.
type KeyValuePairs []Pair

func (kv KeyValuePairs) MarshalRESP(e *respcodec.Encoder) error {
	if len(kv) > math.MaxInt32/2 {
		return ErrTooManyArgs
	}
	return e.EncodeArray(2*len(kv), func(a *respcodec.ArrayEncoder) error {
		for _, p := range kv {
			if err := emitPair(a, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// FromMap builds pairs from m in sorted key order, so the encoding of a map
// is deterministic.
func FromMap(m map[string]interface{}) KeyValuePairs {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kv := make(KeyValuePairs, 0, len(keys))
	for _, k := range keys {
		kv = append(kv, Pair{Key: k, Value: m[k]})
	}
	return kv
}

// DecodeKeyValuePairs reinterprets a decoded array as alternating key/value
// elements. Keys must be simple or bulk strings.
func DecodeKeyValuePairs(v respcodec.Value) (KeyValuePairs, error) {
	if v.Kind != respcodec.Array {
		return nil, &InvalidTypeError{Type: v.Kind.String()}
	}
	if len(v.Array)%2 != 0 {
		return nil, ErrOddPairCount
	}
	kv := make(KeyValuePairs, 0, len(v.Array)/2)
	for i := 0; i < len(v.Array); i += 2 {
		k := v.Array[i]
		if k.Kind != respcodec.BulkString && k.Kind != respcodec.SimpleString {
			return nil, &InvalidTypeError{Type: k.Kind.String()}
		}
		kv = append(kv, Pair{Key: string(k.Text), Value: v.Array[i+1]})
	}
	return kv, nil
}
