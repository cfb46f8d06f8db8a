package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/JonMunkholm/csvmerge/internal/merge"
)

// summaryStyles colour the report. The renderer drops colour when w is not
// a terminal.
type summaryStyles struct {
	title lipgloss.Style
	name  lipgloss.Style
	muted lipgloss.Style
	warn  lipgloss.Style
	fail  lipgloss.Style
}

func newSummaryStyles(w io.Writer) summaryStyles {
	r := lipgloss.NewRenderer(w)
	return summaryStyles{
		title: r.NewStyle().Bold(true),
		name:  r.NewStyle().Foreground(lipgloss.Color("#5B8DEF")),
		muted: r.NewStyle().Foreground(lipgloss.Color("#999999")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true),
		fail:  r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
	}
}

// printSummary writes the per-input table and totals for a merge.
func printSummary(w io.Writer, rep *merge.Report, output string) {
	st := newSummaryStyles(w)
	if output == "-" {
		output = "stdout"
	}

	var b strings.Builder
	b.WriteString(st.title.Render(fmt.Sprintf("Merged %s into %s (%s)",
		plural(len(rep.Inputs), "input"), output, plural(len(rep.Columns), "column"))))
	b.WriteByte('\n')

	width := 0
	for _, in := range rep.Inputs {
		width = max(width, len(in.Name))
	}

	for _, in := range rep.Inputs {
		b.WriteString("  ")
		b.WriteString(st.name.Width(width).Render(in.Name))
		b.WriteString("  ")
		if in.Empty() {
			b.WriteString(st.muted.Render("empty"))
			b.WriteByte('\n')
			continue
		}
		fmt.Fprintf(&b, "%-12s %-3s %s", in.Encoding, in.Delimiter, plural(in.Rows, "row"))
		if in.FieldMismatches > 0 {
			b.WriteString(", ")
			b.WriteString(st.warn.Render(plural(in.FieldMismatches, "field mismatch")))
		}
		if in.BlankRows > 0 {
			b.WriteString(st.muted.Render(", " + plural(in.BlankRows, "blank row") + " dropped"))
		}
		b.WriteByte('\n')
	}

	for _, m := range rep.MismatchSamples {
		b.WriteString(st.muted.Render(fmt.Sprintf("    %s line %d: %d fields, header has %d", m.Source, m.Line, m.Fields, m.Want)))
		b.WriteByte('\n')
	}
	if rest := rep.FieldMismatches - len(rep.MismatchSamples); rest > 0 {
		b.WriteString(st.muted.Render(fmt.Sprintf("    ... and %d more", rest)))
		b.WriteByte('\n')
	}

	total := fmt.Sprintf("Total: %s", plural(rep.RowsWritten, "row"))
	if rep.FieldMismatches > 0 {
		total += ", " + st.warn.Render(plural(rep.FieldMismatches, "field mismatch"))
	}
	if rep.BlankRows > 0 {
		total += ", " + plural(rep.BlankRows, "blank row") + " dropped"
	}
	total += st.muted.Render(" in " + rep.Duration.Round(time.Millisecond).String())
	b.WriteString(total)
	b.WriteByte('\n')

	io.WriteString(w, b.String())
}

// printFatal writes "csvmerge: <file>: <kind>: <message> (Code: X). <action>"
// followed by the technical cause.
func printFatal(w io.Writer, err error) {
	st := newSummaryStyles(w)

	var parts []string
	parts = append(parts, "csvmerge")
	if src := merge.SourceOf(err); src != "" {
		parts = append(parts, src)
	}
	if kind := merge.KindOf(err); kind != 0 {
		parts = append(parts, kind.String())
	}
	parts = append(parts, merge.FormatUserError(err))

	fmt.Fprintln(w, st.fail.Render(strings.Join(parts, ": ")))
	fmt.Fprintln(w, st.muted.Render("  cause: "+err.Error()))
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	if strings.HasSuffix(noun, "ch") {
		return fmt.Sprintf("%d %ses", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
