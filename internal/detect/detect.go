// Package detect guesses the text encoding and field delimiter of a
// delimited file from a sample of its leading bytes.
//
// Detection is best effort. The encoding comes from byte-order-mark sniffing
// with a UTF-8 fallback; the delimiter is the candidate that occurs most often
// in the header line, counting only occurrences outside double quotes. Data
// lines are never consulted, so a single-column file whose values happen to
// contain a candidate keeps the default delimiter.
package detect

import (
	"bytes"
	"strings"

	"github.com/JonMunkholm/csvmerge/internal/csvio"
)

// SampleSize is how many leading bytes callers should hand to a Detector.
const SampleSize = 64 * 1024

// DefaultDelimiter is used when the header line has no candidate.
const DefaultDelimiter = ','

// DefaultCandidates are the delimiters considered, in tie-break order.
var DefaultCandidates = []rune{',', '\t', ';'}

// Result is the outcome of one detection.
type Result struct {
	Encoding  csvio.Encoding
	Delimiter rune
	// BOM is true when the encoding was taken from a byte order mark.
	BOM bool
}

// Detector inspects a sample of raw bytes.
type Detector interface {
	Detect(sample []byte) (Result, error)
}

// Skipper is implemented by detectors that need to know how many records
// precede the header.
type Skipper interface {
	WithSkip(n int) Detector
}

// Func adapts a plain function to the Detector interface.
type Func func(sample []byte) (Result, error)

// Detect implements Detector.
func (f Func) Detect(sample []byte) (Result, error) { return f(sample) }

// Sniffer is the default Detector.
type Sniffer struct {
	// Candidates overrides DefaultCandidates when non-empty.
	Candidates []rune
	// Skip is the number of records before the header line.
	Skip int
}

// WithSkip implements Skipper.
func (s Sniffer) WithSkip(n int) Detector {
	s.Skip = n
	return s
}

// Detect implements Detector. It never fails; the error return exists so
// other implementations can.
func (s Sniffer) Detect(sample []byte) (Result, error) {
	enc, bom := Encoding(sample)
	text := csvio.DecodeSample(sample, enc)

	candidates := s.Candidates
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	return Result{
		Encoding:  enc,
		Delimiter: Delimiter(text, candidates, s.Skip),
		BOM:       bom,
	}, nil
}

// Encoding sniffs a byte order mark and falls back to UTF-8.
func Encoding(sample []byte) (csvio.Encoding, bool) {
	switch {
	case bytes.HasPrefix(sample, []byte{0xEF, 0xBB, 0xBF}):
		return csvio.EncodingUTF8, true
	case bytes.HasPrefix(sample, []byte{0xFF, 0xFE}):
		return csvio.EncodingUTF16LE, true
	case bytes.HasPrefix(sample, []byte{0xFE, 0xFF}):
		return csvio.EncodingUTF16BE, true
	default:
		return csvio.EncodingUTF8, false
	}
}

// Delimiter returns the most frequent candidate in the header line, the
// first non-blank line after skip others. Ties go to the earlier candidate.
func Delimiter(text string, candidates []rune, skip int) rune {
	if skip < 0 {
		skip = 0
	}
	lines := splitLines(text, skip+1)
	if len(lines) <= skip {
		return DefaultDelimiter
	}

	counts := countOutsideQuotes(lines[skip], candidates)
	best, bestCount := rune(DefaultDelimiter), 0
	for _, c := range candidates {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

// splitLines returns up to max logical lines; a newline inside quotes does
// not end a line.
func splitLines(text string, max int) []string {
	var lines []string
	var b strings.Builder
	inQuotes := false
	for _, r := range text {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case (r == '\n' || r == '\r') && !inQuotes:
			if b.Len() > 0 {
				lines = append(lines, b.String())
				b.Reset()
				if len(lines) == max {
					return lines
				}
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 && len(lines) < max {
		lines = append(lines, b.String())
	}
	return lines
}

func countOutsideQuotes(line string, candidates []rune) map[rune]int {
	counts := make(map[rune]int, len(candidates))
	inQuotes := false
	for _, r := range line {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		for _, c := range candidates {
			if r == c {
				counts[c]++
			}
		}
	}
	return counts
}

// ParseDelimiter resolves a user-supplied delimiter. "" and "auto" return 0
// (detect); "tab" and `\t` mean a tab character.
func ParseDelimiter(s string) (rune, bool) {
	switch strings.ToLower(s) {
	case "", "auto":
		return 0, true
	case "tab", `\t`, "\t":
		return '\t', true
	case "comma":
		return ',', true
	case "semicolon":
		return ';', true
	case "pipe":
		return '|', true
	}
	r := []rune(s)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, false
	}
	return r[0], true
}
