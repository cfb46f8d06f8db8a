package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvmerge/internal/csvio"
	"github.com/JonMunkholm/csvmerge/internal/merge"
)

// MergedRows reads a merged CSV back and yields merged_rows records for COPY.
// Row N is attributed to the input whose cumulative row count first exceeds
// N, which holds because merged output keeps input order.
type MergedRows struct {
	runID   uuid.UUID
	r       *csv.Reader
	columns []string

	sources []merge.InputReport
	src     int // index into sources
	used    int // rows consumed from sources[src]

	rowNum int
	values []any
	err    error
}

// NewMergedRows checks that r starts with the report's header. format must
// be the format r was written in.
func NewMergedRows(r io.Reader, format merge.Format, rep *merge.Report, runID uuid.UUID) (*MergedRows, error) {
	enc := format.Encoding
	if enc == "" {
		enc = csvio.EncodingUTF8
	}
	delim := format.Delimiter
	if delim == 0 {
		delim = ','
	}

	dec, err := csvio.NewDecoder(r, enc, csvio.InvalidError)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(dec)
	cr.Comma = delim
	cr.FieldsPerRecord = len(rep.Columns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read merged header: %w", err)
	}
	if !slices.Equal(header, rep.Columns) {
		return nil, fmt.Errorf("merged header %q does not match report columns %q", header, rep.Columns)
	}

	return &MergedRows{
		runID:   runID,
		r:       cr,
		columns: rep.Columns,
		sources: rep.Inputs,
	}, nil
}

// Next implements pgx.CopyFromSource.
func (m *MergedRows) Next() bool {
	if m.err != nil {
		return false
	}
	rec, err := m.r.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		m.err = fmt.Errorf("failed to read merged row %d: %w", m.rowNum+1, err)
		return false
	}

	source, err := m.nextSource()
	if err != nil {
		m.err = err
		return false
	}

	data := make(map[string]string, len(m.columns))
	for i, col := range m.columns {
		data[col] = rec[i]
	}
	raw, err := json.Marshal(data)
	if err != nil {
		m.err = fmt.Errorf("failed to encode merged row %d: %w", m.rowNum+1, err)
		return false
	}

	m.rowNum++
	m.values = []any{m.runID, m.rowNum, source, json.RawMessage(raw)}
	return true
}

func (m *MergedRows) nextSource() (string, error) {
	for m.src < len(m.sources) && m.used >= m.sources[m.src].Rows {
		m.src++
		m.used = 0
	}
	if m.src >= len(m.sources) {
		return "", fmt.Errorf("merged output has more rows than the report")
	}
	m.used++
	return m.sources[m.src].Name, nil
}

// Values implements pgx.CopyFromSource.
func (m *MergedRows) Values() ([]any, error) {
	return m.values, nil
}

// Err implements pgx.CopyFromSource.
func (m *MergedRows) Err() error {
	return m.err
}
