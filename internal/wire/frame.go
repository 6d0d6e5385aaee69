// Package wire implements the length-prefixed blocking framing used on
// both ends of the parent<->child pipe pair, and the tagged request/reply
// schemas layered on top of it (spec.md §4.1, §4.2).
//
// There is no framing beyond length prefixes: every string is preceded by
// its length int, every request by its tag int. Both sides must agree on
// the schema per tag; this package only provides the primitives, not
// stream resynchronization.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// Status is the wire-local error space, distinct from host return codes.
// Only Success continues a request loop; ReadEOF at the start of a
// request ends the parent loop cleanly.
type Status int

const (
	Success   Status = 0
	ReadEOF   Status = 1
	ReadErr   Status = 2
	WriteErr  Status = 3
	MallocErr Status = 4
)

func (s Status) Error() string {
	switch s {
	case Success:
		return "wire: success"
	case ReadEOF:
		return "wire: eof"
	case ReadErr:
		return "wire: read error"
	case WriteErr:
		return "wire: write error"
	case MallocErr:
		return "wire: allocation error"
	default:
		return "wire: unknown status"
	}
}

// intSize is the fixed width of every wire integer: both pipe endpoints
// are the same process lineage after spawn, so there is no cross-machine
// endianness concern, but a width and order still have to be picked and
// held fixed. Little-endian, 4 bytes.
const intSize = 4

var byteOrder = binary.LittleEndian

// WriteBytes writes exactly n bytes from buf to w, or returns WriteErr.
// A short write is an error, never a partial success.
func WriteBytes(w io.Writer, buf []byte) error {
	n, err := w.Write(buf)
	if err != nil || n != len(buf) {
		return WriteErr
	}
	return nil
}

// WriteInt writes a single fixed-width signed integer.
func WriteInt(w io.Writer, n int) error {
	var buf [intSize]byte
	byteOrder.PutUint32(buf[:], uint32(int32(n)))
	if _, err := w.Write(buf[:]); err != nil {
		return WriteErr
	}
	return nil
}

// WriteString writes the raw bytes of s (the caller is responsible for
// having already written the length prefix via WriteInt, per the per-tag
// schemas in protocol.go).
func WriteString(w io.Writer, s []byte) error {
	return WriteBytes(w, s)
}

// ReadBytes loops until n bytes are read into a freshly allocated slice,
// or returns ReadEOF if the peer closed before any bytes were read for
// this call, or ReadErr on I/O failure or premature EOF mid-frame.
func ReadBytes(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, ReadErr
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	read := 0
	for read < n {
		k, err := r.Read(buf[read:])
		if k > 0 {
			read += k
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if read == 0 {
					return nil, ReadEOF
				}
				return nil, ReadErr
			}
			return nil, ReadErr
		}
		if k == 0 && err == nil {
			return nil, ReadErr
		}
	}
	return buf, nil
}

// ReadInt reads one fixed-width signed integer.
func ReadInt(r io.Reader) (int, error) {
	buf, err := ReadBytes(r, intSize)
	if err != nil {
		return 0, err
	}
	return int(int32(byteOrder.Uint32(buf))), nil
}

// ReadString reads exactly n bytes and returns them as a string; the
// conceptual trailing NUL of the C original is implicit in Go's string
// representation, so callers do not need to allocate n+1 bytes.
func ReadString(r io.Reader, n int) (string, error) {
	buf, err := ReadBytes(r, n)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
