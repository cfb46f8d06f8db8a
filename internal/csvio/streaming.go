package csvio

// streaming.go provides the io.Reader wrappers used to read inputs in
// constant memory:
//
//   - BOMSkippingReader: drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - UTF8Validator: fails on the first invalid UTF-8 sequence
//   - UTF8Sanitizer: replaces invalid UTF-8 bytes with '?'
//   - CountingReader: tracks bytes consumed for reporting

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrInvalidUTF8 is matched by errors.Is for every *InvalidUTF8Error.
var ErrInvalidUTF8 = errors.New("encoding error: invalid UTF-8")

// InvalidUTF8Error reports the byte offset (after any BOM) of the first
// invalid sequence.
type InvalidUTF8Error struct {
	Offset int64
}

func (e *InvalidUTF8Error) Error() string {
	return fmt.Sprintf("encoding error: invalid UTF-8 at byte %d", e.Offset)
}

// Is makes errors.Is(err, ErrInvalidUTF8) true.
func (e *InvalidUTF8Error) Is(target error) bool {
	return target == ErrInvalidUTF8
}

// BOMSkippingReader removes a UTF-8 BOM from the start of the stream.
type BOMSkippingReader struct {
	reader  io.Reader
	checked bool
	head    []byte
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. The first call inspects up to three bytes.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true

		var buf [3]byte
		n, err := io.ReadFull(r.reader, buf[:])
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		if n == len(utf8BOM) && buf[0] == utf8BOM[0] && buf[1] == utf8BOM[1] && buf[2] == utf8BOM[2] {
			n = 0
		}
		r.head = append(r.head[:0], buf[:n]...)
	}

	if len(r.head) > 0 {
		n := copy(p, r.head)
		r.head = r.head[n:]
		return n, nil
	}
	return r.reader.Read(p)
}

// UTF8Validator passes valid UTF-8 through unchanged and fails with an
// *InvalidUTF8Error at the first invalid sequence. Bytes before the bad
// sequence are still delivered.
type UTF8Validator struct {
	reader  io.Reader
	pending []byte
	offset  int64
	err     error
}

// NewUTF8Validator creates a strict UTF-8 reader.
func NewUTF8Validator(r io.Reader) *UTF8Validator {
	return &UTF8Validator{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (v *UTF8Validator) Read(p []byte) (int, error) {
	if v.err != nil {
		return 0, v.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	for {
		n := copy(p, v.pending)
		rest := copy(v.pending, v.pending[n:])
		v.pending = v.pending[:rest]

		var err error
		if n < len(p) && len(v.pending) == 0 {
			var m int
			m, err = v.reader.Read(p[n:])
			n += m
		}

		data := p[:n]
		complete := n
		if err == nil {
			complete -= incompleteTrailingBytes(data)
		}

		if i := firstInvalid(data[:complete]); i >= 0 {
			v.offset += int64(i)
			v.err = &InvalidUTF8Error{Offset: v.offset}
			if i == 0 {
				return 0, v.err
			}
			return i, nil
		}

		v.pending = append(v.pending, data[complete:]...)
		v.offset += int64(complete)

		if complete == 0 && err == nil {
			continue
		}
		if err != nil && err != io.EOF {
			v.err = err
		}
		return complete, err
	}
}

// UTF8Sanitizer replaces invalid UTF-8 bytes with '?' on the fly. The
// replacement is a single byte so the data never grows and can be fixed up
// in place.
type UTF8Sanitizer struct {
	reader  io.Reader
	pending []byte
}

// NewUTF8Sanitizer creates a repairing UTF-8 reader.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		n := copy(p, s.pending)
		rest := copy(s.pending, s.pending[n:])
		s.pending = s.pending[:rest]

		var err error
		if n < len(p) && len(s.pending) == 0 {
			var m int
			m, err = s.reader.Read(p[n:])
			n += m
		}

		data := p[:n]
		complete := n
		if err == nil {
			complete -= incompleteTrailingBytes(data)
		}
		s.pending = append(s.pending, data[complete:]...)

		written := repairInPlace(data[:complete])
		if written == 0 && err == nil {
			continue
		}
		return written, err
	}
}

// repairInPlace rewrites data so every invalid byte becomes '?', returning
// the new length (which never exceeds the old one).
func repairInPlace(data []byte) int {
	if isAllASCII(data) || utf8.Valid(data) {
		return len(data)
	}
	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// firstInvalid returns the index of the first invalid sequence, or -1.
func firstInvalid(data []byte) int {
	if isAllASCII(data) || utf8.Valid(data) {
		return -1
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}

func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// incompleteTrailingBytes returns how many bytes at the end of data start a
// multi-byte sequence that has not been fully read yet.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the sequence length announced by a UTF-8 lead byte.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// CountingReader tracks how many bytes have been read through it.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}
