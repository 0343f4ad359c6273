package respcodec

import (
	"bytes"
	"errors"
	"fmt"
	"math"
)

// MaxBulkLength is the protocol ceiling on bulk string lengths and array
// counts: 512 MiB.
const MaxBulkLength = 512 * 1024 * 1024

const (
	cr byte = '\r'
	lf byte = '\n'
)

var crlf = []byte{cr, lf}

var (
	// ErrMalformedNewline is returned when a CR is not immediately followed
	// by a LF, or a LF appears with no preceding CR. All RESP newlines are
	// \r\n.
	ErrMalformedNewline = errors.New("malformed newline, all RESP newlines are \\r\\n")

	// ErrBadNumber is returned when a decimal integer payload is empty,
	// contains a non-digit byte, or overflows an int64.
	ErrBadNumber = errors.New("bad decimal integer")
)

// EOFError reports that the input ended before a parse could structurally
// complete. Needed is the minimum number of additional bytes a caller must
// read before retrying the parse from the start of the unconsumed buffer.
type EOFError struct {
	Needed int
}

func (e *EOFError) Error() string {
	return fmt.Sprintf("unexpected end of input, read at least %d more bytes and try again", e.Needed)
}

// BadTagError reports a leading byte that is not one of the five RESP tags.
type BadTagError struct {
	Tag byte
}

func (e *BadTagError) Error() string {
	return fmt.Sprintf("unrecognized tag byte %#x", e.Tag)
}

// Header is the parsed but not yet interpreted prefix of one RESP value.
// For Integer it carries the value itself; for BulkString and Array it
// carries the declared length or count in Int; for SimpleString and Error
// it carries the payload bytes, borrowed from the input, in Text. A bulk
// string or array declaring length -1 is canonicalized to Null.
type Header struct {
	Kind Kind

	Int  int64
	Text []byte
}

var (
	fastOK   = []byte("+OK\r\n")
	fastNull = []byte("$-1\r\n")
)

// readEndline consumes a single \r\n.
func readEndline(b []byte) ([]byte, error) {
	switch {
	case len(b) >= 2 && b[0] == cr && b[1] == lf:
		return b[2:], nil
	case len(b) == 1 && b[0] == cr:
		return nil, &EOFError{Needed: 1}
	case len(b) == 0:
		return nil, &EOFError{Needed: 2}
	default:
		return nil, ErrMalformedNewline
	}
}

// ReadHeader parses one RESP header from b and returns it along with the
// unconsumed remainder. No bytes are copied; Text payloads alias b.
func ReadHeader(b []byte) (Header, []byte, error) {
	// Fast path for the two most common 5-byte replies.
	if len(b) >= 5 {
		if bytes.Equal(b[:5], fastOK) {
			return Header{Kind: SimpleString, Text: b[1:3]}, b[5:], nil
		}
		if bytes.Equal(b[:5], fastNull) {
			return Header{Kind: Null}, b[5:], nil
		}
	}

	if len(b) == 0 {
		return Header{}, nil, &EOFError{Needed: 3}
	}
	tag, rest := b[0], b[1:]

	idx := bytes.IndexAny(rest, "\r\n")
	if idx < 0 {
		return Header{}, nil, &EOFError{Needed: 2}
	}
	payload := rest[:idx]
	rest, err := readEndline(rest[idx:])
	if err != nil {
		return Header{}, nil, err
	}

	var h Header
	switch Kind(tag) {
	case SimpleString:
		h = Header{Kind: SimpleString, Text: payload}
	case Error:
		h = Header{Kind: Error, Text: payload}
	case Integer:
		n, err := ParseNumber(payload)
		if err != nil {
			return Header{}, nil, err
		}
		h = Header{Kind: Integer, Int: n}
	case BulkString, Array:
		n, err := ParseNumber(payload)
		if err != nil {
			return Header{}, nil, err
		}
		if n == -1 {
			h = Header{Kind: Null}
		} else {
			h = Header{Kind: Kind(tag), Int: n}
		}
	default:
		return Header{}, nil, &BadTagError{Tag: tag}
	}
	return h, rest, nil
}

// ReadExact slices exactly n bytes from b, requires the \r\n terminator
// immediately after, and returns the slice along with the remainder past
// the terminator.
func ReadExact(n int, b []byte) ([]byte, []byte, error) {
	if n > len(b) {
		return nil, nil, &EOFError{Needed: n - len(b) + 2}
	}
	payload := b[:n]
	rest, err := readEndline(b[n:])
	if err != nil {
		return nil, nil, err
	}
	return payload, rest, nil
}

// ParseNumber parses an optionally signed run of ASCII digits as an int64,
// checking for overflow at each digit. There is no whitespace tolerance and
// leading zeroes carry no meaning, so -001 parses to -1.
func ParseNumber(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, ErrBadNumber
	}
	i, neg := 0, false
	switch b[0] {
	case '-':
		neg = true
		i++
	case '+':
		i++
	}
	if i == len(b) {
		return 0, ErrBadNumber
	}

	var n int64
	for ; i < len(b); i++ {
		c := b[i]
		if c < '0' || c > '9' {
			return 0, ErrBadNumber
		}
		d := int64(c - '0')
		if neg {
			if n < (math.MinInt64+d)/10 {
				return 0, ErrBadNumber
			}
			n = n*10 - d
		} else {
			if n > (math.MaxInt64-d)/10 {
				return 0, ErrBadNumber
			}
			n = n*10 + d
		}
	}
	return n, nil
}
