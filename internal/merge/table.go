package merge

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/csvmerge/internal/csvio"
	"github.com/JonMunkholm/csvmerge/internal/detect"
)

// table is one open input positioned at its first record.
type table struct {
	name    string
	rc      io.ReadCloser
	counter *csvio.CountingReader
	r       *csv.Reader

	encoding  csvio.Encoding
	delimiter rune
}

// dialect is what a table is opened with. Zero fields are detected.
type dialect struct {
	encoding  csvio.Encoding
	delimiter rune
}

// dialectFor layers per-source settings over the merge-wide ones.
func dialectFor(src Source, opts Options) dialect {
	d := dialect{encoding: src.Encoding, delimiter: src.Delimiter}
	if d.encoding == "" {
		d.encoding = opts.Encoding
	}
	if d.delimiter == 0 {
		d.delimiter = opts.Delimiter
	}
	return d
}

// openTable opens src and resolves its dialect. skip is the number of
// records before the header, which the detector needs to find it.
func (m *Merger) openTable(src Source, d dialect, skip int, policy csvio.InvalidPolicy) (*table, error) {
	if src.Open == nil {
		return nil, unreadable(src.Name, errors.New("source has no opener"))
	}
	rc, err := src.Open()
	if err != nil {
		return nil, unreadable(src.Name, err)
	}

	counter := csvio.NewCountingReader(rc)
	br := bufio.NewReaderSize(counter, detect.SampleSize)

	if d.encoding == "" || d.delimiter == 0 {
		sample, err := br.Peek(detect.SampleSize)
		if err != nil && !errors.Is(err, io.EOF) {
			rc.Close()
			return nil, unreadable(src.Name, err)
		}
		detector := m.detector
		if s, ok := detector.(detect.Skipper); ok {
			detector = s.WithSkip(skip)
		}
		res, err := detector.Detect(sample)
		if err != nil {
			rc.Close()
			return nil, unreadable(src.Name, fmt.Errorf("detect: %w", err))
		}
		if d.encoding == "" {
			d.encoding = res.Encoding
		}
		if d.delimiter == 0 {
			d.delimiter = res.Delimiter
		}
	}
	if d.encoding == "" {
		d.encoding = csvio.EncodingUTF8
	}
	if d.delimiter == 0 {
		d.delimiter = detect.DefaultDelimiter
	}
	if !validDelimiter(d.delimiter) {
		rc.Close()
		return nil, &Error{Kind: KindInvalidOptions, Source: src.Name, Err: fmt.Errorf("invalid delimiter %q", d.delimiter)}
	}

	dec, err := csvio.NewDecoder(br, d.encoding, policy)
	if err != nil {
		rc.Close()
		return nil, &Error{Kind: KindInvalidOptions, Source: src.Name, Err: err}
	}

	r := csv.NewReader(dec)
	r.Comma = d.delimiter
	r.FieldsPerRecord = -1 // field counts are reconciled per row
	r.LazyQuotes = true
	r.ReuseRecord = true

	return &table{
		name:      src.Name,
		rc:        rc,
		counter:   counter,
		r:         r,
		encoding:  d.encoding,
		delimiter: d.delimiter,
	}, nil
}

// header discards skip records and returns the next one. An input that ends
// first has no header and a nil result. The returned slice is only valid
// until the next read.
func (t *table) header(skip int) ([]string, error) {
	for i := 0; i < skip; i++ {
		if _, err := t.r.Read(); err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, unreadable(t.name, err)
		}
	}
	rec, err := t.r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, unreadable(t.name, err)
	}
	return rec, nil
}

// line is the input line the last record started on.
func (t *table) line() int {
	line, _ := t.r.FieldPos(0)
	return line
}

func (t *table) Close() error {
	return t.rc.Close()
}

func blankRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
