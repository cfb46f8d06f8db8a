package csvio

import (
	"errors"
	"fmt"
	"unicode/utf16"

	"golang.org/x/text/transform"
)

// ErrInvalidUTF16 is matched by errors.Is for every *InvalidUTF16Error.
var ErrInvalidUTF16 = errors.New("encoding error: invalid UTF-16")

// InvalidUTF16Error reports the byte offset of the first code unit that
// cannot be decoded.
type InvalidUTF16Error struct {
	Offset int64
	Reason string
}

func (e *InvalidUTF16Error) Error() string {
	return fmt.Sprintf("encoding error: invalid UTF-16 at byte %d: %s", e.Offset, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidUTF16) true.
func (e *InvalidUTF16Error) Is(target error) bool {
	return target == ErrInvalidUTF16
}

// utf16Validator is a transform.Transformer that copies UTF-16 bytes
// unchanged and fails on an odd trailing byte or an unpaired surrogate.
// A leading BOM overrides the declared byte order, as it does for the
// x/text decoder behind it.
type utf16Validator struct {
	declaredBE bool
	bigEndian  bool
	started    bool
	offset     int64
}

func newUTF16Validator(bigEndian bool) *utf16Validator {
	return &utf16Validator{declaredBE: bigEndian, bigEndian: bigEndian}
}

// Reset implements transform.Transformer.
func (v *utf16Validator) Reset() {
	v.bigEndian = v.declaredBE
	v.started = false
	v.offset = 0
}

func (v *utf16Validator) unit(b []byte) uint16 {
	if v.bigEndian {
		return uint16(b[0])<<8 | uint16(b[1])
	}
	return uint16(b[1])<<8 | uint16(b[0])
}

func (v *utf16Validator) invalid(at int, reason string) error {
	return &InvalidUTF16Error{Offset: v.offset + int64(at), Reason: reason}
}

// Transform implements transform.Transformer.
func (v *utf16Validator) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	defer func() { v.offset += int64(nSrc) }()

	if !v.started {
		if len(src) < 2 && !atEOF {
			if len(src) == 0 {
				return 0, 0, nil
			}
			return 0, 0, transform.ErrShortSrc
		}
		v.started = true
		if len(src) >= 2 {
			switch {
			case src[0] == 0xFF && src[1] == 0xFE:
				v.bigEndian = false
			case src[0] == 0xFE && src[1] == 0xFF:
				v.bigEndian = true
			}
		}
	}

	for nSrc < len(src) {
		rest := src[nSrc:]
		if len(rest) < 2 {
			if atEOF {
				return nDst, nSrc, v.invalid(nSrc, "odd trailing byte")
			}
			return nDst, nSrc, transform.ErrShortSrc
		}

		size := 2
		u := rune(v.unit(rest))
		switch {
		case u >= 0xDC00 && u <= 0xDFFF:
			return nDst, nSrc, v.invalid(nSrc, "unpaired low surrogate")
		case utf16.IsSurrogate(u):
			if len(rest) < 4 {
				if atEOF {
					return nDst, nSrc, v.invalid(nSrc, "unpaired high surrogate")
				}
				return nDst, nSrc, transform.ErrShortSrc
			}
			if lo := rune(v.unit(rest[2:])); lo < 0xDC00 || lo > 0xDFFF {
				return nDst, nSrc, v.invalid(nSrc, "unpaired high surrogate")
			}
			size = 4
		}

		if len(dst)-nDst < size {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], rest[:size])
		nSrc += size
	}
	return nDst, nSrc, nil
}
