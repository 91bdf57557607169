// Package snapshot implements the binary keyspace codec used by SAVE/LOAD
// and DUMP/RESTORE (spec.md §4.8), grounded on original_source's
// serialize.cpp and crc64.cpp.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/k0kubun/redisd/internal/store"
	"github.com/k0kubun/redisd/internal/util"
	"github.com/k0kubun/redisd/internal/values"
)

const (
	header        = "REDIS"
	formatVersion = 6

	opSelectDB = 0xFE
	opExpireMS = 0xFC
	opEOF      = 0xFF

	typeString = 0x00
	typeList   = 0x01
	typeSet    = 0x02
	typeZSet   = 0x03
	typeHash   = 0x04

	doubleNaN  = 253
	doublePInf = 254
	doubleNInf = 255
)

var ErrCorrupt = errors.New("ERR snapshot data is corrupt")

func writeLen(w io.Writer, n int) error {
	switch {
	case n < 1<<6:
		_, err := w.Write([]byte{byte(n)})
		return err
	case n < 1<<14:
		return binary.Write(w, binary.BigEndian, [2]byte{byte(0x40 | (n >> 8)), byte(n)})
	default:
		if _, err := w.Write([]byte{0x80}); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, uint32(n))
	}
}

func readLen(r io.Reader) (int, error) {
	var head [1]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, err
	}
	switch head[0] & 0xC0 {
	case 0x00:
		return int(head[0] & 0x3F), nil
	case 0x40:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		return int(head[0]&0x3F)<<8 | int(b[0]), nil
	case 0x80:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint32(b[:])), nil
	default:
		return 0, ErrCorrupt
	}
}

func writeString(w io.Writer, s string) error {
	if err := writeLen(w, len(s)); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readLen(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeDouble(w io.Writer, f float64) error {
	switch {
	case math.IsNaN(f):
		_, err := w.Write([]byte{doubleNaN})
		return err
	case math.IsInf(f, 1):
		_, err := w.Write([]byte{doublePInf})
		return err
	case math.IsInf(f, -1):
		_, err := w.Write([]byte{doubleNInf})
		return err
	default:
		s := strconv.FormatFloat(f, 'g', 17, 64)
		if _, err := w.Write([]byte{byte(len(s))}); err != nil {
			return err
		}
		_, err := io.WriteString(w, s)
		return err
	}
}

func readDouble(r io.Reader) (float64, error) {
	var head [1]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, err
	}
	switch head[0] {
	case doubleNaN:
		return math.NaN(), nil
	case doublePInf:
		return math.Inf(1), nil
	case doubleNInf:
		return math.Inf(-1), nil
	}
	buf := make([]byte, head[0])
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(string(buf), 64)
}

// writeValue appends value's type tag and type-specific payload.
func writeValue(w io.Writer, v values.Value) error {
	switch t := v.(type) {
	case *values.String:
		if _, err := w.Write([]byte{typeString}); err != nil {
			return err
		}
		return writeString(w, string(t.Data))
	case *values.List:
		if _, err := w.Write([]byte{typeList}); err != nil {
			return err
		}
		elems := t.All()
		if err := writeLen(w, len(elems)); err != nil {
			return err
		}
		for _, e := range elems {
			if err := writeString(w, e); err != nil {
				return err
			}
		}
		return nil
	case *values.Set:
		if _, err := w.Write([]byte{typeSet}); err != nil {
			return err
		}
		members := t.Members()
		if err := writeLen(w, len(members)); err != nil {
			return err
		}
		for _, m := range members {
			if err := writeString(w, m); err != nil {
				return err
			}
		}
		return nil
	case *values.ZSet:
		if _, err := w.Write([]byte{typeZSet}); err != nil {
			return err
		}
		members := t.All()
		if err := writeLen(w, len(members)); err != nil {
			return err
		}
		for _, m := range members {
			if err := writeString(w, m.Name); err != nil {
				return err
			}
			if err := writeDouble(w, m.Score); err != nil {
				return err
			}
		}
		return nil
	case *values.Hash:
		if _, err := w.Write([]byte{typeHash}); err != nil {
			return err
		}
		fields := t.Keys()
		if err := writeLen(w, len(fields)); err != nil {
			return err
		}
		for _, f := range fields {
			val, _ := t.Get(f)
			if err := writeString(w, f); err != nil {
				return err
			}
			if err := writeString(w, val); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("snapshot: unsupported value type %T", v)
	}
}

// readValue reads one type-tagged value payload, given the already-consumed
// type tag.
func readValue(r io.Reader, tag byte) (values.Value, error) {
	switch tag {
	case typeString:
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		return values.NewString([]byte(s)), nil
	case typeList:
		n, err := readLen(r)
		if err != nil {
			return nil, err
		}
		l := values.NewList()
		for i := 0; i < n; i++ {
			s, err := readString(r)
			if err != nil {
				return nil, err
			}
			l.RPush(s)
		}
		return l, nil
	case typeSet:
		n, err := readLen(r)
		if err != nil {
			return nil, err
		}
		s := values.NewSet()
		for i := 0; i < n; i++ {
			m, err := readString(r)
			if err != nil {
				return nil, err
			}
			s.Add(m)
		}
		return s, nil
	case typeZSet:
		n, err := readLen(r)
		if err != nil {
			return nil, err
		}
		z := values.NewZSet()
		for i := 0; i < n; i++ {
			m, err := readString(r)
			if err != nil {
				return nil, err
			}
			score, err := readDouble(r)
			if err != nil {
				return nil, err
			}
			z.Add(m, score)
		}
		return z, nil
	case typeHash:
		n, err := readLen(r)
		if err != nil {
			return nil, err
		}
		h := values.NewHash()
		for i := 0; i < n; i++ {
			f, err := readString(r)
			if err != nil {
				return nil, err
			}
			v, err := readString(r)
			if err != nil {
				return nil, err
			}
			h.Set(f, v)
		}
		return h, nil
	default:
		return nil, ErrCorrupt
	}
}

// crcWriter tees every write into a running CRC64, used for the snapshot
// and DUMP trailers.
type crcWriter struct {
	w   io.Writer
	crc uint64
}

func (c *crcWriter) Write(p []byte) (int, error) {
	c.crc = UpdateCRC64(c.crc, p)
	return c.w.Write(p)
}

// Save writes every unexpired key across all of st's databases to w, in the
// §4.8 wire format. now is the instant the snapshot's consistent cut is
// taken at. Each database is encoded into its own buffer concurrently (the
// way database/concurrent.go's ConcurrentMapFuncWithError fans work out
// across inputs), then the buffers are written to w in ascending database
// order so the result is byte-identical to a sequential encode.
func Save(w io.Writer, st *store.Store, now time.Time) error {
	indices := make([]int, st.Count())
	for i := range indices {
		indices[i] = i
	}
	buffers, err := util.ConcurrentMapFuncWithError(indices, 0, func(i int) ([]byte, error) {
		return encodeDatabase(st.DB(i), i, now)
	})
	if err != nil {
		return err
	}

	cw := &crcWriter{w: w}
	if _, err := fmt.Fprintf(cw, "%s%04d", header, formatVersion); err != nil {
		return err
	}
	for _, buf := range buffers {
		if len(buf) == 0 {
			continue
		}
		if _, err := cw.Write(buf); err != nil {
			return err
		}
	}
	if _, err := cw.Write([]byte{opEOF}); err != nil {
		return err
	}
	var trailer [8]byte
	binary.LittleEndian.PutUint64(trailer[:], cw.crc)
	_, err = w.Write(trailer[:])
	return err
}

// encodeDatabase renders one database's opSelectDB-prefixed record stream,
// or an empty slice if its map holds no entries. A database whose entries
// have all expired but not yet been evicted still gets its opSelectDB.
func encodeDatabase(db *store.Database, index int, now time.Time) ([]byte, error) {
	db.RLock()
	defer db.RUnlock()
	if db.Len() == 0 {
		return nil, nil
	}

	var buf []byte
	sw := &sliceWriter{&buf}
	if _, err := sw.Write([]byte{opSelectDB}); err != nil {
		return nil, err
	}
	if err := writeLen(sw, index); err != nil {
		return nil, err
	}

	var rangeErr error
	db.Range(now, func(key string, expireAt time.Time, value values.Value) {
		if rangeErr != nil {
			return
		}
		if !expireAt.IsZero() {
			if _, err := sw.Write([]byte{opExpireMS}); err != nil {
				rangeErr = err
				return
			}
			var expireBuf [8]byte
			binary.BigEndian.PutUint64(expireBuf[:], uint64(expireAt.UnixMilli()))
			if _, err := sw.Write(expireBuf[:]); err != nil {
				rangeErr = err
				return
			}
		}
		// A record is type tag, key, payload: writeValue emits tag+payload,
		// so the key goes in after its first byte.
		var rec []byte
		if err := writeValue(&sliceWriter{&rec}, value); err != nil {
			rangeErr = err
			return
		}
		sw.Write(rec[:1])
		if err := writeString(sw, key); err != nil {
			rangeErr = err
			return
		}
		sw.Write(rec[1:])
	})
	if rangeErr != nil {
		return nil, rangeErr
	}
	return buf, nil
}

// Load replaces st's contents with the keyspace encoded in r, as of now.
// Every database is cleared first, matching the original's full-flush
// semantics for LOAD (serialize.cpp's server_type::load).
func Load(r io.Reader, st *store.Store, now time.Time) error {
	br := bufio.NewReader(r)

	var magic [9]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return err
	}
	if string(magic[:5]) != header {
		return fmt.Errorf("%w: missing REDIS header", ErrCorrupt)
	}
	ver, err := strconv.Atoi(string(magic[5:]))
	if err != nil || ver < 0 || ver > formatVersion {
		return fmt.Errorf("%w: unsupported snapshot version", ErrCorrupt)
	}

	st.FlushAll()

	dbIndex := 0
	db := st.DB(0)
	var expireAt time.Time
	crc := UpdateCRC64(0, magic[:])
	tee := io.TeeReader(br, crcAccumulator{&crc})

	for {
		var op [1]byte
		if _, err := io.ReadFull(tee, op[:]); err != nil {
			return err
		}
		switch op[0] {
		case opEOF:
			var trailer [8]byte
			if _, err := io.ReadFull(br, trailer[:]); err != nil {
				return err
			}
			if binary.LittleEndian.Uint64(trailer[:]) != crc {
				return fmt.Errorf("%w: crc mismatch", ErrCorrupt)
			}
			return nil
		case opSelectDB:
			n, err := readLen(tee)
			if err != nil {
				return err
			}
			if st.DB(n) == nil {
				return fmt.Errorf("%w: db index out of range", ErrCorrupt)
			}
			dbIndex = n
			db = st.DB(dbIndex)
		case opExpireMS:
			var buf [8]byte
			if _, err := io.ReadFull(tee, buf[:]); err != nil {
				return err
			}
			ms := int64(binary.BigEndian.Uint64(buf[:]))
			expireAt = time.UnixMilli(ms)
		default:
			key, err := readString(tee)
			if err != nil {
				return err
			}
			val, err := readValue(tee, op[0])
			if err != nil {
				return err
			}
			db.Replace(key, expireAt, val, now)
			expireAt = time.Time{}
		}
	}
}

// crcAccumulator lets Load fold bytes into a running CRC64 as it reads
// through a TeeReader, without needing to re-buffer the whole file.
type crcAccumulator struct{ crc *uint64 }

func (c crcAccumulator) Write(p []byte) (int, error) {
	*c.crc = UpdateCRC64(*c.crc, p)
	return len(p), nil
}

// Dump encodes a single value in the DUMP wire format: type tag, payload,
// 2-byte little-endian format version, 8-byte CRC64 over payload+version
// (spec.md §4.8).
func Dump(v values.Value) ([]byte, error) {
	var buf []byte
	w := &sliceWriter{&buf}
	if err := writeValue(w, v); err != nil {
		return nil, err
	}
	buf = append(buf, byte(formatVersion), byte(formatVersion>>8))
	crc := UpdateCRC64(0, buf)
	var trailer [8]byte
	binary.LittleEndian.PutUint64(trailer[:], crc)
	return append(buf, trailer[:]...), nil
}

// Restore decodes the output of Dump back into a Value.
func Restore(payload []byte) (values.Value, error) {
	if len(payload) < 1+2+8 {
		return nil, ErrCorrupt
	}
	body, suffix := payload[:len(payload)-10], payload[len(payload)-10:]
	ver := int(suffix[0]) | int(suffix[1])<<8
	if ver > formatVersion {
		return nil, fmt.Errorf("%w: unsupported DUMP version", ErrCorrupt)
	}
	wantCRC := binary.LittleEndian.Uint64(suffix[2:])
	gotCRC := UpdateCRC64(0, payload[:len(payload)-8])
	if wantCRC != gotCRC {
		return nil, fmt.Errorf("%w: crc mismatch", ErrCorrupt)
	}
	r := io.Reader(bytesReader(body))
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, err
	}
	return readValue(r, tag[0])
}

type sliceWriter struct{ buf *[]byte }

func (s *sliceWriter) Write(p []byte) (int, error) {
	*s.buf = append(*s.buf, p...)
	return len(p), nil
}

func bytesReader(b []byte) io.Reader { return &byteSliceReader{b: b} }

type byteSliceReader struct {
	b []byte
	i int
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}
