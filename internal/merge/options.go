package merge

import (
	"github.com/JonMunkholm/csvmerge/internal/csvio"
	"github.com/JonMunkholm/csvmerge/internal/headers"
)

// ContextCheckInterval is how often (in rows) a merge checks for cancellation.
var ContextCheckInterval = 100

// MaxMismatchSamples bounds Report.MismatchSamples.
const MaxMismatchSamples = 20

// Options tune one merge. The zero value is a plain union merge with an
// empty fill value and detected delimiters and encodings.
type Options struct {
	// FillValue is written for columns a row does not have.
	FillValue string

	// StrictHeader fails the merge when an input's header is not a subset of
	// the first non-empty input's header.
	StrictHeader bool

	// Delimiter and Encoding apply to every input that does not set its own.
	// Zero values mean detect.
	Delimiter rune
	Encoding  csvio.Encoding

	// SkipLines records are discarded before the header of every input.
	SkipLines int

	// HeaderMap renames header aliases to standard names.
	HeaderMap *headers.Mapping

	// NormalizeHeaders lowercases headers and removes spaces.
	NormalizeHeaders bool

	// SkipBlankRows drops rows whose fields are all whitespace.
	SkipBlankRows bool

	// InvalidUTF8 decides whether invalid UTF-8 fails the merge (default) or
	// is replaced with '?'.
	InvalidUTF8 csvio.InvalidPolicy
}

// Validate reports option values the merger cannot honour.
func (o Options) Validate() error {
	if o.SkipLines < 0 {
		return invalidOptions("skip lines must be non-negative, got %d", o.SkipLines)
	}
	if o.Delimiter != 0 && !validDelimiter(o.Delimiter) {
		return invalidOptions("invalid delimiter %q", o.Delimiter)
	}
	switch o.InvalidUTF8 {
	case "", csvio.InvalidError, csvio.InvalidReplace:
	default:
		return invalidOptions("invalid UTF-8 policy %q", o.InvalidUTF8)
	}
	return nil
}

func (o Options) resolver() headers.Resolver {
	return headers.Resolver{Mapping: o.HeaderMap, Normalize: o.NormalizeHeaders}
}

// validDelimiter mirrors encoding/csv's own rules.
func validDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && r != 0xFFFD
}
