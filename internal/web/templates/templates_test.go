package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvmerge/internal/csvio"
	"github.com/JonMunkholm/csvmerge/internal/merge"
)

func TestIndex(t *testing.T) {
	var buf bytes.Buffer
	err := Index(IndexData{
		MaxFiles:      50,
		MaxFileSizeMB: 100,
		StoreEnabled:  true,
		Defaults:      FormDefaults{Delimiter: "auto", OutputDelimiter: ",", FillValue: `"><script>`},
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `action="/api/merge"`)
	assert.Contains(t, out, `formaction="/api/preview"`)
	assert.Contains(t, out, `name="store"`)
	assert.Contains(t, out, "Up to 50 files, 100 MB each")
	assert.NotContains(t, out, "<script>")
}

func TestIndex_StoreHiddenWithoutDatabase(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Index(IndexData{}).Render(context.Background(), &buf))
	assert.NotContains(t, buf.String(), `name="store"`)
}

func TestPreviewTable(t *testing.T) {
	rep := &merge.Report{
		Columns:         []string{"id", "name"},
		Inputs:          []merge.InputReport{{Name: "a&b.csv", Encoding: csvio.EncodingUTF8, Delimiter: ",", Columns: []string{"id", "name"}, Rows: 30}},
		RowsWritten:     30,
		FieldMismatches: 2,
	}

	var buf bytes.Buffer
	err := PreviewTable(PreviewData{
		Report: rep,
		Header: rep.Columns,
		Rows:   [][]string{{"1", "<b>Al</b>"}},
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "30 rows from 1 files")
	assert.Contains(t, out, "2 rows with a wrong field count")
	assert.Contains(t, out, "a&amp;b.csv")
	assert.Contains(t, out, "&lt;b&gt;Al&lt;/b&gt;")
	assert.Contains(t, out, "Showing the first 1 of 30 rows.")
}

func TestErrorAlert(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ErrorPage("No input rows to merge", "Pass a file", "MRG001").Render(context.Background(), &buf))

	out := buf.String()
	assert.Contains(t, out, "<!DOCTYPE html>")
	assert.Contains(t, out, "No input rows to merge")
	assert.Contains(t, out, "Code: MRG001")
}
