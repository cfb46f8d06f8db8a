// Package templates renders the merge UI. Components are plain
// templ.ComponentFunc values so the package builds without code generation.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/csvmerge/internal/merge"
)

// IndexData feeds the upload page.
type IndexData struct {
	MaxFiles      int
	MaxFileSizeMB int64
	StoreEnabled  bool
	Defaults      FormDefaults
}

// FormDefaults pre-fills the option fields.
type FormDefaults struct {
	FillValue       string
	Delimiter       string
	Encoding        string
	OutputDelimiter string
	OutputEncoding  string
	SkipLines       int
	StrictHeader    bool
	NormalizeHeader bool
	SkipBlankRows   bool
}

// PreviewData feeds the preview table.
type PreviewData struct {
	Report *merge.Report
	Header []string
	Rows   [][]string
}

const styles = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2933}
fieldset{border:1px solid #cbd2d9;padding:1rem;margin-bottom:1rem}
label{display:block;margin:.25rem 0}
table{border-collapse:collapse;margin-top:1rem}
th,td{border:1px solid #cbd2d9;padding:.25rem .5rem;text-align:left}
.alert{border:1px solid #e12d39;background:#ffe3e3;padding:.75rem;margin:1rem 0}
.muted{color:#7b8794}`

func page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%s</title><style>%s</style></head><body>`,
			templ.EscapeString(title), styles); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// Index is the upload form.
func Index(d IndexData) templ.Component {
	return page("CSV Merge", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<h1>CSV Merge</h1><p class="muted">Up to %d files, %d MB each. Columns are matched by header name.</p>`, d.MaxFiles, d.MaxFileSizeMB)
		ew.printf(`<form method="post" action="/api/merge" enctype="multipart/form-data">`)
		ew.printf(`<fieldset><legend>Files</legend><input type="file" name="files" accept=".csv,.tsv,.txt" multiple required></fieldset>`)
		ew.printf(`<fieldset><legend>Input</legend>`)
		ew.textInput("Delimiter", "delimiter", d.Defaults.Delimiter)
		ew.textInput("Encoding", "encoding", d.Defaults.Encoding)
		ew.textInput("Skip lines before header", "skip_lines", strconv.Itoa(d.Defaults.SkipLines))
		ew.checkbox("Lowercase headers and remove spaces", "normalize_headers", d.Defaults.NormalizeHeader)
		ew.checkbox("Drop blank rows", "skip_blank_rows", d.Defaults.SkipBlankRows)
		ew.checkbox("Reject files with columns the first file lacks", "strict_header", d.Defaults.StrictHeader)
		ew.printf(`</fieldset><fieldset><legend>Output</legend>`)
		ew.textInput("Fill value for missing columns", "fill", d.Defaults.FillValue)
		ew.textInput("Delimiter", "out_delimiter", d.Defaults.OutputDelimiter)
		ew.textInput("Encoding", "out_encoding", d.Defaults.OutputEncoding)
		if d.StoreEnabled {
			ew.checkbox("Save merged rows to the database", "store", false)
		}
		ew.printf(`</fieldset>`)
		ew.printf(`<button type="submit">Merge and download</button> `)
		ew.printf(`<button type="submit" formaction="/api/preview">Preview</button>`)
		ew.printf(`</form>`)
		return ew.err
	}))
}

// Preview shows the report and the first rows of a merge as a full page.
func Preview(p PreviewData) templ.Component {
	return page("Merge preview", PreviewTable(p))
}

// PreviewTable is the preview fragment.
func PreviewTable(p PreviewData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		rep := p.Report

		ew.printf(`<h2>Preview</h2><p>%d rows from %d files, %d columns`, rep.RowsWritten, len(rep.Inputs), len(rep.Columns))
		if rep.FieldMismatches > 0 {
			ew.printf(`, %d rows with a wrong field count`, rep.FieldMismatches)
		}
		if rep.BlankRows > 0 {
			ew.printf(`, %d blank rows dropped`, rep.BlankRows)
		}
		ew.printf(`.</p>`)

		ew.printf(`<table><thead><tr><th>File</th><th>Encoding</th><th>Delimiter</th><th>Columns</th><th>Rows</th><th>Mismatches</th></tr></thead><tbody>`)
		for _, in := range rep.Inputs {
			ew.printf(`<tr><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%d</td></tr>`,
				templ.EscapeString(in.Name), templ.EscapeString(in.Encoding.String()),
				templ.EscapeString(in.Delimiter), len(in.Columns), in.Rows, in.FieldMismatches)
		}
		ew.printf(`</tbody></table>`)

		ew.printf(`<table><thead><tr>`)
		for _, h := range p.Header {
			ew.printf(`<th>%s</th>`, templ.EscapeString(h))
		}
		ew.printf(`</tr></thead><tbody>`)
		for _, row := range p.Rows {
			ew.printf(`<tr>`)
			for _, v := range row {
				ew.printf(`<td>%s</td>`, templ.EscapeString(v))
			}
			ew.printf(`</tr>`)
		}
		ew.printf(`</tbody></table>`)
		if rep.RowsWritten > len(p.Rows) {
			ew.printf(`<p class="muted">Showing the first %d of %d rows.</p>`, len(p.Rows), rep.RowsWritten)
		}
		return ew.err
	})
}

// ErrorAlert renders a user-facing error fragment.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf(`<div class="alert" role="alert"><strong>%s</strong>`, templ.EscapeString(message))
		if action != "" {
			ew.printf(`<p>%s</p>`, templ.EscapeString(action))
		}
		ew.printf(`<p class="muted">Code: %s</p></div>`, templ.EscapeString(code))
		return ew.err
	})
}

// ErrorPage wraps ErrorAlert in a full page.
func ErrorPage(message, action, code string) templ.Component {
	return page("Merge failed", ErrorAlert(message, action, code))
}

// errWriter keeps the first write error so templates can write freely.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) textInput(label, name, value string) {
	e.printf(`<label>%s <input type="text" name="%s" value="%s"></label>`,
		templ.EscapeString(label), name, templ.EscapeString(value))
}

func (e *errWriter) checkbox(label, name string, checked bool) {
	attr := ""
	if checked {
		attr = " checked"
	}
	e.printf(`<label><input type="checkbox" name="%s" value="true"%s> %s</label>`,
		name, attr, templ.EscapeString(label))
}
