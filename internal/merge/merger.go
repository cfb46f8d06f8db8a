package merge

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvmerge/internal/csvio"
	"github.com/JonMunkholm/csvmerge/internal/detect"
)

// Merger runs merges. A Merger holds no per-merge state and is safe for
// concurrent use.
type Merger struct {
	detector detect.Detector
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Merger.
type Option func(*Merger)

// WithDetector replaces the default delimiter and encoding sniffer.
func WithDetector(d detect.Detector) Option {
	return func(m *Merger) { m.detector = d }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Merger) { m.logger = l }
}

// WithRecorder observes every finished merge.
func WithRecorder(r Recorder) Option {
	return func(m *Merger) { m.recorder = r }
}

// New returns a Merger.
func New(opts ...Option) *Merger {
	m := &Merger{
		detector: detect.Sniffer{},
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.detector == nil {
		m.detector = detect.Sniffer{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.recorder == nil {
		m.recorder = nopRecorder{}
	}
	return m
}

type nopRecorder struct{}

func (nopRecorder) ObserveMerge(*Report, error) {}

// Merge runs one merge to w with a default Merger.
func Merge(ctx context.Context, inputs []Source, w io.Writer, format Format, opts Options) (*Report, error) {
	return New().Run(ctx, inputs, w, format, opts)
}

// Run merges inputs into w. Nothing is written to w unless every header was
// read successfully; a failure during the row pass can leave partial output
// in w, so callers that need all-or-nothing should use MergeFile.
func (m *Merger) Run(ctx context.Context, inputs []Source, w io.Writer, format Format, opts Options) (*Report, error) {
	rep, err := m.run(ctx, inputs, w, "", format, opts)
	return m.finish(rep, err)
}

// MergeFile merges inputs into sink.Path. The file is written to a temporary
// name in the same directory and renamed into place only on success, so a
// failed merge never leaves a committed output.
func (m *Merger) MergeFile(ctx context.Context, inputs []Source, sink Sink, opts Options) (*Report, error) {
	if sink.Path == "" {
		return m.finish(&Report{}, invalidOptions("output path is required"))
	}
	if sink.Path == "-" {
		rep, err := m.run(ctx, inputs, os.Stdout, "-", sink.Format, opts)
		return m.finish(rep, err)
	}

	var rep *Report
	err := WriteAtomic(sink.Path, func(w io.Writer) error {
		var err error
		rep, err = m.run(ctx, inputs, w, sink.Path, sink.Format, opts)
		return err
	})
	if rep == nil {
		rep = &Report{}
	}
	return m.finish(rep, err)
}

func (m *Merger) finish(rep *Report, err error) (*Report, error) {
	m.recorder.ObserveMerge(rep, err)
	if err != nil {
		m.logger.Error("merge failed",
			"merge_id", rep.ID,
			"kind", KindOf(err).String(),
			"source", SourceOf(err),
			"error", err,
		)
		return nil, err
	}
	m.logger.Info("merge complete",
		"merge_id", rep.ID,
		"inputs", len(rep.Inputs),
		"columns", len(rep.Columns),
		"rows_written", rep.RowsWritten,
		"field_mismatches", rep.FieldMismatches,
		"blank_rows", rep.BlankRows,
		"duration_ms", rep.Duration.Milliseconds(),
	)
	return rep, nil
}

// run always returns a non-nil report, filled as far as the merge got.
func (m *Merger) run(ctx context.Context, inputs []Source, w io.Writer, dest string, format Format, opts Options) (rep *Report, err error) {
	start := time.Now()
	rep = &Report{ID: uuid.NewString()}
	defer func() { rep.Duration = time.Since(start) }()

	if err := opts.Validate(); err != nil {
		return rep, err
	}
	format = format.withDefaults()
	if !validDelimiter(format.Delimiter) {
		return rep, invalidOptions("invalid output delimiter %q", format.Delimiter)
	}
	if len(inputs) == 0 {
		return rep, &Error{Kind: KindNoInputs, Err: errNoFiles}
	}

	// 1. Header pass: resolve each input's dialect and schema
	dialects := make([]dialect, len(inputs))
	rep.Inputs = make([]InputReport, len(inputs))
	resolver := opts.resolver()
	nonEmpty := 0

	for i, src := range inputs {
		if err := ctx.Err(); err != nil {
			return rep, cancelled(src.Name, 0, err)
		}
		t, err := m.openTable(src, dialectFor(src, opts), opts.SkipLines, opts.InvalidUTF8)
		if err != nil {
			return rep, err
		}
		raw, err := t.header(opts.SkipLines)
		t.Close()
		if err != nil {
			return rep, err
		}

		in := InputReport{
			Name:      src.Name,
			Encoding:  t.encoding,
			Delimiter: delimiterName(t.delimiter),
		}
		if raw != nil {
			in.Columns = resolver.Resolve(raw)
			nonEmpty++
		}
		rep.Inputs[i] = in
		dialects[i] = dialect{encoding: t.encoding, delimiter: t.delimiter}

		m.logger.Debug("input header read",
			"merge_id", rep.ID,
			"source", src.Name,
			"encoding", t.encoding,
			"delimiter", in.Delimiter,
			"columns", len(in.Columns),
		)
	}
	if nonEmpty == 0 {
		return rep, &Error{Kind: KindNoInputs, Err: errAllEmpty}
	}

	// 2. Unified schema, fixed from here on
	unified, err := unify(rep.Inputs, opts.StrictHeader)
	if err != nil {
		return rep, err
	}
	rep.Columns = unified

	// 3. Output header
	enc, err := csvio.NewEncoder(w, format.Encoding)
	if err != nil {
		return rep, &Error{Kind: KindInvalidOptions, Source: dest, Err: err}
	}
	cw := csv.NewWriter(enc)
	cw.Comma = format.Delimiter
	if err := cw.Write(unified); err != nil {
		return rep, outputFailed(dest, err)
	}

	// 4. Row pass
	out := make([]string, 0, len(unified))
	for i, src := range inputs {
		in := &rep.Inputs[i]
		if in.Empty() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, cancelled(src.Name, 0, err)
		}
		if err := m.copyRows(ctx, src, dialects[i], unified, cw, out, in, rep, dest, opts); err != nil {
			return rep, err
		}
		m.logger.Debug("input merged",
			"merge_id", rep.ID,
			"source", src.Name,
			"rows", in.Rows,
			"field_mismatches", in.FieldMismatches,
			"bytes", in.Bytes,
		)
	}

	// 5. Flush csv buffer, then any encoder state
	cw.Flush()
	if err := cw.Error(); err != nil {
		return rep, outputFailed(dest, err)
	}
	if err := enc.Close(); err != nil {
		return rep, outputFailed(dest, err)
	}
	return rep, nil
}

func (m *Merger) copyRows(ctx context.Context, src Source, d dialect, unified Schema, cw *csv.Writer, out []string, in *InputReport, rep *Report, dest string, opts Options) error {
	t, err := m.openTable(src, d, opts.SkipLines, opts.InvalidUTF8)
	if err != nil {
		return err
	}
	defer t.Close()

	if _, err := t.header(opts.SkipLines); err != nil {
		return err
	}
	positions := Schema(in.Columns).Positions(unified)
	want := len(in.Columns)

	for n := 1; ; n++ {
		rec, err := t.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return unreadable(src.Name, err)
		}

		// Check context periodically to allow cancellation
		if n%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return cancelled(src.Name, t.line(), err)
			}
		}

		if opts.SkipBlankRows && blankRow(rec) {
			in.BlankRows++
			rep.BlankRows++
			continue
		}
		if len(rec) != want {
			in.FieldMismatches++
			rep.addMismatch(Mismatch{Source: src.Name, Line: t.line(), Fields: len(rec), Want: want})
		}

		out = Project(out, rec, positions, opts.FillValue)
		if err := cw.Write(out); err != nil {
			return outputFailed(dest, err)
		}
		in.Rows++
		rep.RowsWritten++
	}

	in.Bytes = t.counter.BytesRead
	return nil
}
