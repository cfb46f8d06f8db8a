package merge

import (
	"time"

	"github.com/JonMunkholm/csvmerge/internal/csvio"
)

// InputReport describes what one input contributed.
type InputReport struct {
	Name            string         `json:"name"`
	Encoding        csvio.Encoding `json:"encoding"`
	Delimiter       string         `json:"delimiter"`
	Columns         []string       `json:"columns"`
	Rows            int            `json:"rows"`
	FieldMismatches int            `json:"fieldMismatches"`
	BlankRows       int            `json:"blankRows"`
	Bytes           int64          `json:"bytes"`
}

// Empty reports whether the input had no header row at all.
func (r InputReport) Empty() bool {
	return len(r.Columns) == 0
}

// Mismatch records one row whose field count differed from its header.
type Mismatch struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Fields int    `json:"fields"`
	Want   int    `json:"want"`
}

// Report summarises a merge.
type Report struct {
	ID              string        `json:"id"`
	Columns         []string      `json:"columns"`
	Inputs          []InputReport `json:"inputs"`
	RowsWritten     int           `json:"rowsWritten"`
	FieldMismatches int           `json:"fieldMismatches"`
	BlankRows       int           `json:"blankRows"`
	MismatchSamples []Mismatch    `json:"mismatchSamples,omitempty"`
	Duration        time.Duration `json:"durationNs"`
}

// Recorder observes finished merges, successful or not. The rep argument is
// never nil.
type Recorder interface {
	ObserveMerge(rep *Report, err error)
}

func (r *Report) addMismatch(m Mismatch) {
	r.FieldMismatches++
	if len(r.MismatchSamples) < MaxMismatchSamples {
		r.MismatchSamples = append(r.MismatchSamples, m)
	}
}

func delimiterName(r rune) string {
	switch r {
	case '\t':
		return "tab"
	default:
		return string(r)
	}
}
