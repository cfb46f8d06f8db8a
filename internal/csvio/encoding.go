// Package csvio provides the text plumbing underneath the merger: encoding
// names, streaming decoders that turn any supported input encoding into UTF-8,
// and the matching encoders for the output side.
package csvio

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names a supported text encoding. The zero value means "detect".
type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingUTF8BOM     Encoding = "utf-8-bom"
	EncodingUTF16LE     Encoding = "utf-16le"
	EncodingUTF16BE     Encoding = "utf-16be"
	EncodingLatin1      Encoding = "latin1"
	EncodingWindows1252 Encoding = "windows-1252"
)

// utf8BOM is the byte order mark Excel and other Windows tools prepend.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var encodingAliases = map[string]Encoding{
	"utf-8":        EncodingUTF8,
	"utf8":         EncodingUTF8,
	"utf-8-bom":    EncodingUTF8BOM,
	"utf8-bom":     EncodingUTF8BOM,
	"utf-8-sig":    EncodingUTF8BOM,
	"utf-16le":     EncodingUTF16LE,
	"utf16le":      EncodingUTF16LE,
	"utf-16be":     EncodingUTF16BE,
	"utf16be":      EncodingUTF16BE,
	"latin1":       EncodingLatin1,
	"latin-1":      EncodingLatin1,
	"iso-8859-1":   EncodingLatin1,
	"iso8859-1":    EncodingLatin1,
	"windows-1252": EncodingWindows1252,
	"cp1252":       EncodingWindows1252,
}

// ParseEncoding resolves a user-supplied encoding name. An empty name or
// "auto" returns the zero Encoding, which callers treat as "detect".
func ParseEncoding(name string) (Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || key == "auto" {
		return "", nil
	}
	enc, ok := encodingAliases[key]
	if !ok {
		return "", fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}

// String implements fmt.Stringer.
func (e Encoding) String() string {
	if e == "" {
		return "auto"
	}
	return string(e)
}

// IsUTF8 reports whether e is one of the UTF-8 variants.
func (e Encoding) IsUTF8() bool {
	return e == EncodingUTF8 || e == EncodingUTF8BOM
}

// codec returns the x/text encoding for non-UTF-8 encodings.
func (e Encoding) codec() (encoding.Encoding, error) {
	switch e {
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	case EncodingLatin1:
		return charmap.ISO8859_1, nil
	case EncodingWindows1252:
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", string(e))
	}
}

// InvalidPolicy controls what a decoder does with bytes its encoding cannot
// decode. It applies to UTF-8 and UTF-16 input; the single-byte charsets
// decode every byte.
type InvalidPolicy string

const (
	// InvalidError fails the read with an *InvalidUTF8Error or
	// *InvalidUTF16Error.
	InvalidError InvalidPolicy = "error"
	// InvalidReplace replaces each invalid UTF-8 byte with '?' and each
	// undecodable UTF-16 unit with U+FFFD.
	InvalidReplace InvalidPolicy = "replace"
)

// ParseInvalidPolicy resolves a policy name; empty means InvalidError.
func ParseInvalidPolicy(name string) (InvalidPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "error":
		return InvalidError, nil
	case "replace":
		return InvalidReplace, nil
	default:
		return "", fmt.Errorf("invalid UTF-8 policy %q must be one of: error, replace", name)
	}
}

// NewDecoder wraps r so that reads yield UTF-8 text. UTF-8 input has its BOM
// removed and is validated (or repaired) according to policy; other encodings
// are transcoded through golang.org/x/text, with UTF-16 validated first
// unless policy is InvalidReplace.
func NewDecoder(r io.Reader, enc Encoding, policy InvalidPolicy) (io.Reader, error) {
	if enc == "" || enc.IsUTF8() {
		r = NewBOMSkippingReader(r)
		if policy == InvalidReplace {
			return NewUTF8Sanitizer(r), nil
		}
		return NewUTF8Validator(r), nil
	}
	codec, err := enc.codec()
	if err != nil {
		return nil, err
	}
	if policy != InvalidReplace && (enc == EncodingUTF16LE || enc == EncodingUTF16BE) {
		v := newUTF16Validator(enc == EncodingUTF16BE)
		return transform.NewReader(r, transform.Chain(v, codec.NewDecoder())), nil
	}
	return transform.NewReader(r, codec.NewDecoder()), nil
}

// NewEncoder wraps w so that UTF-8 text written to it is stored in enc.
// Close must be called to flush any buffered output; it does not close w.
func NewEncoder(w io.Writer, enc Encoding) (io.WriteCloser, error) {
	switch {
	case enc == "" || enc == EncodingUTF8:
		return nopWriteCloser{w}, nil
	case enc == EncodingUTF8BOM:
		return &bomWriter{w: w}, nil
	}
	codec, err := enc.codec()
	if err != nil {
		return nil, err
	}
	return transform.NewWriter(w, codec.NewEncoder()), nil
}

// DecodeSample converts a raw sample to text for inspection. It is lenient:
// a truncated trailing sequence or undecodable byte never fails the call.
func DecodeSample(sample []byte, enc Encoding) string {
	if enc == "" || enc.IsUTF8() {
		return string(bytes.TrimPrefix(sample, utf8BOM))
	}
	codec, err := enc.codec()
	if err != nil {
		return string(sample)
	}
	if enc == EncodingUTF16LE || enc == EncodingUTF16BE {
		sample = sample[:len(sample)&^1]
	}
	out, err := codec.NewDecoder().Bytes(sample)
	if err != nil {
		return string(sample)
	}
	return string(out)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// bomWriter emits the UTF-8 BOM ahead of the first write.
type bomWriter struct {
	w     io.Writer
	wrote bool
}

func (b *bomWriter) Write(p []byte) (int, error) {
	if !b.wrote {
		b.wrote = true
		if _, err := b.w.Write(utf8BOM); err != nil {
			return 0, err
		}
	}
	return b.w.Write(p)
}

func (b *bomWriter) Close() error {
	if !b.wrote {
		b.wrote = true
		_, err := b.w.Write(utf8BOM)
		return err
	}
	return nil
}
