package values

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// String is a mutable byte buffer, the simplest of the five variants.
type String struct {
	Data []byte
}

func NewString(data []byte) *String { return &String{Data: data} }

func (s *String) Kind() Kind { return KindString }

func (s *String) Len() int { return len(s.Data) }

// Append grows the buffer and returns the new length.
func (s *String) Append(suffix []byte) int64 {
	s.Data = append(s.Data, suffix...)
	return int64(len(s.Data))
}

var errNegativeOffset = errors.New("ERR offset is out of range")

// SetRange zero-fills any gap up to offset then overwrites from offset with
// b, returning the new length. A negative offset is an error.
func (s *String) SetRange(offset int, b []byte) (int64, error) {
	if offset < 0 {
		return 0, errNegativeOffset
	}
	newSize := offset + len(b)
	if len(s.Data) < newSize {
		grown := make([]byte, newSize)
		copy(grown, s.Data)
		s.Data = grown
	}
	copy(s.Data[offset:], b)
	return int64(len(s.Data)), nil
}

// GetRange returns the inclusive-bounded, negative-from-end, clipped slice
// [start, end] of the buffer.
func (s *String) GetRange(start, end int) []byte {
	n := len(s.Data)
	start = normalizeIndex(start, n)
	end = normalizeIndex(end, n)
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if n == 0 || start > end || start >= n {
		return []byte{}
	}
	out := make([]byte, end-start+1)
	copy(out, s.Data[start:end+1])
	return out
}

// normalizeIndex converts a possibly-negative, possibly-out-of-range index
// into a plain index counted from the end when negative. It is shared by
// string and list range commands.
func normalizeIndex(idx, n int) int {
	if idx < 0 {
		idx = n + idx
	}
	return idx
}

var errNotInteger = errors.New("ERR value is not an integer or out of range")

// IncrBy parses the buffer as a signed base-10 integer, adds delta, and
// rewrites the buffer with the result. Overflow past int64 is an error.
func (s *String) IncrBy(delta int64) (int64, error) {
	cur, err := s.asInt()
	if err != nil {
		return 0, err
	}
	if (delta > 0 && cur > math.MaxInt64-delta) || (delta < 0 && cur < math.MinInt64-delta) {
		return 0, errNotInteger
	}
	next := cur + delta
	s.Data = []byte(strconv.FormatInt(next, 10))
	return next, nil
}

func (s *String) asInt() (int64, error) {
	if len(s.Data) == 0 {
		return 0, nil
	}
	v, err := strconv.ParseInt(string(s.Data), 10, 64)
	if err != nil {
		return 0, errNotInteger
	}
	return v, nil
}

var errNotFloat = errors.New("ERR value is not a valid float")
var errNanOrInf = errors.New("ERR increment would produce NaN or Infinity")

// IncrByFloat parses the buffer as a float, adds delta, and rewrites the
// buffer with the %.17g-formatted result. NaN/Inf results are errors.
func (s *String) IncrByFloat(delta float64) (float64, error) {
	cur := 0.0
	if len(s.Data) > 0 {
		v, err := strconv.ParseFloat(strings.TrimSpace(string(s.Data)), 64)
		if err != nil {
			return 0, errNotFloat
		}
		cur = v
	}
	next := cur + delta
	if math.IsNaN(next) || math.IsInf(next, 0) {
		return 0, errNanOrInf
	}
	s.Data = []byte(formatFloat(next))
	return next, nil
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.17g", f)
}
