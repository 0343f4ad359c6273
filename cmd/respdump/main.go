// Command respdump converts between RESP wire data and a line-oriented JSON
// form, for inspecting protocol captures and crafting test payloads.
//
// The default mode reads RESP from a file or stdin, decodes the pipelined
// values in order and prints one JSON document per value. With -encode it
// reads one JSON document per line and writes the RESP encoding of each.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/kirk91/stats"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"k8s.io/klog"

	"github.com/kirk91/respcodec"
)

var (
	encodeMode bool
	inputPath  string
)

func init() {
	flag.BoolVar(&encodeMode, "encode", false, "Convert JSON documents to RESP instead of RESP to JSON")
	flag.StringVar(&inputPath, "in", "", "Input file, defaults to stdin")
	flag.Parse()
}

func main() {
	data, err := readInput()
	if err != nil {
		klog.Fatal(err)
	}

	store := stats.NewStore(stats.NewStoreOption())
	go store.FlushingLoop(context.Background())
	ds := newDumpStats(store.CreateScope("respdump"))

	out := bufio.NewWriter(os.Stdout)
	if encodeMode {
		err = encodeJSON(data, out, ds)
	} else {
		err = dumpRESP(data, out, ds)
	}
	if err != nil {
		klog.Fatal(err)
	}
	if err := out.Flush(); err != nil {
		klog.Fatal(err)
	}
}

func readInput() ([]byte, error) {
	if inputPath == "" {
		return ioutil.ReadAll(os.Stdin)
	}
	return ioutil.ReadFile(inputPath)
}

type dumpStats struct {
	Total      *stats.Counter
	Errors     *stats.Counter
	ValueBytes *stats.Histogram

	kinds *stats.Scope
}

func newDumpStats(scope *stats.Scope) *dumpStats {
	return &dumpStats{
		Total:      scope.Counter("total"),
		Errors:     scope.Counter("error"),
		ValueBytes: scope.Histogram("value_bytes"),
		kinds:      scope.NewChild("kind"),
	}
}

func (s *dumpStats) record(kind respcodec.Kind, size int) {
	s.Total.Inc()
	s.kinds.Counter(kindName(kind)).Inc()
	s.ValueBytes.Record(uint64(size))
}

func kindName(k respcodec.Kind) string {
	return strings.ReplaceAll(k.String(), " ", "_")
}

// dumpRESP cursor-decodes the pipelined values in data and prints one JSON
// document per value. Wire errors are data here, not decode failures.
func dumpRESP(data []byte, out *bufio.Writer, ds *dumpStats) error {
	d := respcodec.NewDecoder(data)
	n := 0
	for d.More() {
		before := len(d.Rest())
		r, err := d.DecodeResultValue()
		if err != nil {
			return fmt.Errorf("value %d: %v", n+1, err)
		}

		var doc string
		if r.OK() {
			ds.record(r.Value.Kind, before-len(d.Rest()))
			doc, err = valueJSON(r.Value)
		} else {
			re := r.Err.(*respcodec.RedisError)
			ds.Total.Inc()
			ds.Errors.Inc()
			doc, err = sjson.Set(`{"type":"error"}`, "value", string(re.Message))
		}
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, doc); err != nil {
			return err
		}
		n++
	}
	klog.Infof("decoded %d values from %d bytes", n, len(data))
	return nil
}

func valueJSON(v respcodec.Value) (string, error) {
	doc, err := sjson.Set(`{}`, "type", v.Kind.String())
	if err != nil {
		return "", err
	}
	switch v.Kind {
	case respcodec.Integer:
		return sjson.Set(doc, "value", v.Int)
	case respcodec.SimpleString, respcodec.Error, respcodec.BulkString:
		return sjson.Set(doc, "value", string(v.Text))
	case respcodec.Array:
		doc, err = sjson.SetRaw(doc, "value", `[]`)
		if err != nil {
			return "", err
		}
		for i := range v.Array {
			sub, err := valueJSON(v.Array[i])
			if err != nil {
				return "", err
			}
			doc, err = sjson.SetRaw(doc, "value.-1", sub)
			if err != nil {
				return "", err
			}
		}
		return doc, nil
	default:
		return sjson.Set(doc, "value", nil)
	}
}

// encodeJSON reads one JSON document per line and writes the RESP encoding
// of each to out.
func encodeJSON(data []byte, out *bufio.Writer, ds *dumpStats) error {
	enc := respcodec.NewEncoder(respcodec.NewWriterOutput(out))
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	n := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if !gjson.Valid(text) {
			return fmt.Errorf("line %d: invalid JSON", line)
		}
		v, err := valueFromJSON(gjson.Parse(text))
		if err != nil {
			return fmt.Errorf("line %d: %v", line, err)
		}
		if err := enc.EncodeValue(v); err != nil {
			return fmt.Errorf("line %d: %v", line, err)
		}
		ds.record(v.Kind, len(text))
		n++
	}
	if err := sc.Err(); err != nil {
		return err
	}
	klog.Infof("encoded %d values", n)
	return nil
}

// valueFromJSON accepts the {"type","value"} documents dumpRESP emits, or
// plain JSON scalars and arrays as a shorthand: strings become bulk strings,
// numbers integers, booleans integers 0/1 and null the null value.
func valueFromJSON(j gjson.Result) (respcodec.Value, error) {
	if j.IsObject() {
		return typedValueFromJSON(j)
	}
	switch j.Type {
	case gjson.Null:
		return respcodec.NewNull(), nil
	case gjson.Number:
		return respcodec.NewInteger(j.Int()), nil
	case gjson.String:
		return respcodec.NewBulkString(j.String()), nil
	case gjson.True:
		return respcodec.NewInteger(1), nil
	case gjson.False:
		return respcodec.NewInteger(0), nil
	default:
		if j.IsArray() {
			return arrayFromJSON(j.Array())
		}
		return respcodec.Value{}, fmt.Errorf("unsupported JSON value: %s", j.Raw)
	}
}

func typedValueFromJSON(j gjson.Result) (respcodec.Value, error) {
	value := j.Get("value")
	switch typ := j.Get("type").String(); typ {
	case "null":
		return respcodec.NewNull(), nil
	case "integer":
		return respcodec.NewInteger(value.Int()), nil
	case "simple string":
		return respcodec.NewSimpleString(value.String()), nil
	case "error":
		return respcodec.NewError(value.String()), nil
	case "bulk string":
		if value.Type == gjson.Null {
			return respcodec.NewBulkBytes(nil), nil
		}
		return respcodec.NewBulkString(value.String()), nil
	case "array":
		if value.Type == gjson.Null {
			return respcodec.NewArray(nil), nil
		}
		return arrayFromJSON(value.Array())
	default:
		return respcodec.Value{}, fmt.Errorf("unknown value type %q", typ)
	}
}

func arrayFromJSON(elems []gjson.Result) (respcodec.Value, error) {
	array := make([]respcodec.Value, 0, len(elems))
	for _, el := range elems {
		v, err := valueFromJSON(el)
		if err != nil {
			return respcodec.Value{}, err
		}
		array = append(array, v)
	}
	return respcodec.NewArray(array), nil
}
