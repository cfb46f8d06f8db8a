package merge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/JonMunkholm/csvmerge/internal/csvio"
	"github.com/JonMunkholm/csvmerge/internal/detect"
	"github.com/JonMunkholm/csvmerge/internal/headers"
)

func quietMerger(opts ...Option) *Merger {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(append([]Option{WithLogger(logger)}, opts...)...)
}

func csvSource(name, data string) Source {
	return BytesSource(name, []byte(data))
}

func mergeString(t *testing.T, opts Options, inputs ...Source) (string, *Report) {
	t.Helper()
	var buf bytes.Buffer
	rep, err := quietMerger().Run(context.Background(), inputs, &buf, Format{}, opts)
	require.NoError(t, err)
	require.NotNil(t, rep)
	return buf.String(), rep
}

func TestMerge_UnionOfHeaders(t *testing.T) {
	out, rep := mergeString(t, Options{},
		csvSource("A.csv", "id,name\n1,Alice\n"),
		csvSource("B.csv", "id,age\n2,30\n"),
	)

	assert.Equal(t, "id,name,age\n1,Alice,\n2,,30\n", out)
	assert.Equal(t, []string{"id", "name", "age"}, rep.Columns)
	assert.Equal(t, 2, rep.RowsWritten)
	require.Len(t, rep.Inputs, 2)
	assert.Equal(t, 1, rep.Inputs[0].Rows)
	assert.Equal(t, 1, rep.Inputs[1].Rows)
	assert.Equal(t, 0, rep.FieldMismatches)
	assert.NotEmpty(t, rep.ID)
}

func TestMerge_ShortRowIsFilled(t *testing.T) {
	out, rep := mergeString(t, Options{},
		csvSource("A.csv", "id,name\n1,Alice\n3\n"),
	)

	assert.Equal(t, "id,name\n1,Alice\n3,\n", out)
	assert.Equal(t, 1, rep.FieldMismatches)
	assert.Equal(t, 1, rep.Inputs[0].FieldMismatches)
	require.Len(t, rep.MismatchSamples, 1)
	assert.Equal(t, Mismatch{Source: "A.csv", Line: 3, Fields: 1, Want: 2}, rep.MismatchSamples[0])
}

func TestMerge_ExtraFieldsDropped(t *testing.T) {
	out, rep := mergeString(t, Options{},
		csvSource("A.csv", "a,b\n1,2,3\n4,5\n"),
	)

	assert.Equal(t, "a,b\n1,2\n4,5\n", out)
	assert.Equal(t, 1, rep.FieldMismatches)
	assert.Equal(t, 2, rep.RowsWritten)
}

func TestMerge_MismatchSamplesAreCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString("a,b\n")
	for i := 0; i < MaxMismatchSamples+5; i++ {
		b.WriteString("x\n")
	}
	_, rep := mergeString(t, Options{}, csvSource("A.csv", b.String()))

	assert.Equal(t, MaxMismatchSamples+5, rep.FieldMismatches)
	assert.Len(t, rep.MismatchSamples, MaxMismatchSamples)
}

func TestMerge_IdenticalHeaders(t *testing.T) {
	out, rep := mergeString(t, Options{},
		csvSource("1.csv", "x,y\n1,2\n3,4\n"),
		csvSource("2.csv", "x,y\n5,6\n7,8\n9,10\n"),
		csvSource("3.csv", "x,y\n"),
	)

	assert.Equal(t, []string{"x", "y"}, rep.Columns)
	assert.Equal(t, 5, rep.RowsWritten)
	assert.Equal(t, "x,y\n1,2\n3,4\n5,6\n7,8\n9,10\n", out)
}

func TestMerge_DisjointHeaders(t *testing.T) {
	tests := []struct {
		name string
		fill string
		want string
	}{
		{"empty fill", "", "a,b\n1,\n,2\n"},
		{"custom fill", "NA", "a,b\n1,NA\nNA,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, rep := mergeString(t, Options{FillValue: tt.fill},
				csvSource("a.csv", "a\n1\n"),
				csvSource("b.csv", "b\n2\n"),
			)
			assert.Equal(t, tt.want, out)
			assert.Equal(t, []string{"a", "b"}, rep.Columns)
		})
	}
}

func TestMerge_MapsColumnsByName(t *testing.T) {
	out, _ := mergeString(t, Options{},
		csvSource("a.csv", "id,name\n1,Al\n"),
		csvSource("b.csv", "name,id\nBo,2\n"),
	)
	assert.Equal(t, "id,name\n1,Al\n2,Bo\n", out)
}

func TestMerge_Idempotent(t *testing.T) {
	first, _ := mergeString(t, Options{},
		csvSource("a.csv", "id,note\n1,\"hello, world\"\n2,\"two\nlines\"\n"),
		csvSource("b.csv", "id,extra\n3,\"say \"\"hi\"\"\"\n"),
	)

	second, rep := mergeString(t, Options{}, csvSource("merged.csv", first))
	assert.Equal(t, first, second)
	assert.Equal(t, 3, rep.RowsWritten)
}

func TestMerge_QuotingPreserved(t *testing.T) {
	in := "id,note\n1,\"hello, world\"\n2,\"line1\nline2\"\n3,\"say \"\"hi\"\"\"\n"
	out, rep := mergeString(t, Options{}, csvSource("q.csv", in))

	assert.Equal(t, in, out)
	assert.Equal(t, 3, rep.RowsWritten)
	assert.Equal(t, 0, rep.FieldMismatches)
}

func TestMerge_HeaderOnly(t *testing.T) {
	out, rep := mergeString(t, Options{}, csvSource("h.csv", "a,b\n"))
	assert.Equal(t, "a,b\n", out)
	assert.Equal(t, 0, rep.RowsWritten)
}

func TestMerge_DuplicateColumnNames(t *testing.T) {
	out, rep := mergeString(t, Options{}, csvSource("d.csv", "a,a,b\n1,2,3\n"))
	assert.Equal(t, "a,a_1,b\n1,2,3\n", out)
	assert.Equal(t, []string{"a", "a_1", "b"}, rep.Columns)
}

func TestMerge_NoInputs(t *testing.T) {
	tests := []struct {
		name   string
		inputs []Source
	}{
		{"no sources", nil},
		{"only empty source", []Source{csvSource("e.csv", "")}},
		{"all empty sources", []Source{csvSource("e1.csv", ""), csvSource("e2.csv", "\n\n")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			rep, err := quietMerger().Run(context.Background(), tt.inputs, &buf, Format{}, Options{})
			require.Error(t, err)
			assert.Nil(t, rep)
			assert.ErrorIs(t, err, ErrNoInputs)
			assert.Equal(t, KindNoInputs, KindOf(err))
			assert.Empty(t, buf.String())
		})
	}
}

func TestMerge_EmptyInputAmongOthers(t *testing.T) {
	out, rep := mergeString(t, Options{},
		csvSource("e.csv", ""),
		csvSource("a.csv", "a\n1\n"),
	)
	assert.Equal(t, "a\n1\n", out)
	assert.True(t, rep.Inputs[0].Empty())
	assert.False(t, rep.Inputs[1].Empty())
}

func TestMerge_StrictHeader(t *testing.T) {
	t.Run("conflict aborts", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := quietMerger().Run(context.Background(), []Source{
			csvSource("a.csv", "id,name\n1,Al\n"),
			csvSource("b.csv", "id,age\n2,30\n"),
		}, &buf, Format{}, Options{StrictHeader: true})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrHeaderConflict)
		assert.Equal(t, "b.csv", SourceOf(err))
		assert.Contains(t, err.Error(), "age")
		assert.Empty(t, buf.String())
	})

	t.Run("subset merges under reference header", func(t *testing.T) {
		out, rep := mergeString(t, Options{StrictHeader: true},
			csvSource("a.csv", "id,name\n1,Al\n"),
			csvSource("b.csv", "name\nBo\n"),
		)
		assert.Equal(t, "id,name\n1,Al\n,Bo\n", out)
		assert.Equal(t, []string{"id", "name"}, rep.Columns)
	})

	t.Run("first non-empty input is the reference", func(t *testing.T) {
		out, _ := mergeString(t, Options{StrictHeader: true},
			csvSource("e.csv", ""),
			csvSource("a.csv", "id,name\n1,Al\n"),
			csvSource("b.csv", "id\n2\n"),
		)
		assert.Equal(t, "id,name\n1,Al\n2,\n", out)
	})
}

func TestMerge_SourceUnreadable(t *testing.T) {
	t.Run("open fails", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := quietMerger().Run(context.Background(), []Source{
			csvSource("a.csv", "a\n1\n"),
			{Name: "bad.csv", Open: func() (io.ReadCloser, error) { return nil, boom }},
		}, io.Discard, Format{}, Options{})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSourceUnreadable)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "bad.csv", SourceOf(err))
	})

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.csv")
		_, err := quietMerger().Run(context.Background(), []Source{FileSource(path)}, io.Discard, Format{}, Options{})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSourceUnreadable)
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.Equal(t, path, SourceOf(err))
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		_, err := quietMerger().Run(context.Background(), []Source{
			csvSource("bad.csv", "a\n\xff\n"),
		}, io.Discard, Format{}, Options{})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSourceUnreadable)
		assert.ErrorIs(t, err, csvio.ErrInvalidUTF8)
		assert.Equal(t, "bad.csv", SourceOf(err))
	})
}

func TestMerge_InvalidUTF16(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"odd trailing byte", "i\x00d\x00\n\x001\x00\n\x00\xd8"},
		{"unpaired surrogate", "i\x00d\x00\n\x00\x00\xd8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := csvSource("u16.csv", tt.data)
			src.Encoding = csvio.EncodingUTF16LE

			var buf bytes.Buffer
			_, err := quietMerger().Run(context.Background(), []Source{src}, &buf, Format{}, Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSourceUnreadable)
			assert.ErrorIs(t, err, csvio.ErrInvalidUTF16)
			assert.Equal(t, "u16.csv", SourceOf(err))
			assert.Equal(t, "FILE003", MapError(err).Code)
			assert.NotContains(t, buf.String(), "\uFFFD")
		})
	}

	t.Run("replace policy keeps going", func(t *testing.T) {
		src := csvSource("u16.csv", "i\x00d\x00\n\x00\x00\xd8")
		src.Encoding = csvio.EncodingUTF16LE
		out, _ := mergeString(t, Options{InvalidUTF8: csvio.InvalidReplace}, src)
		assert.Equal(t, "id\n\uFFFD\n", out)
	})
}

func TestMerge_InvalidUTF8Replaced(t *testing.T) {
	out, _ := mergeString(t, Options{InvalidUTF8: csvio.InvalidReplace},
		csvSource("bad.csv", "a\n\xff\n"),
	)
	assert.Equal(t, "a\n?\n", out)
}

func TestMerge_DetectsDelimiters(t *testing.T) {
	out, rep := mergeString(t, Options{},
		csvSource("semi.csv", "id;name\n1;Al\n"),
		csvSource("tab.tsv", "id\tage\n2\t30\n"),
	)

	assert.Equal(t, "id,name,age\n1,Al,\n2,,30\n", out)
	assert.Equal(t, ";", rep.Inputs[0].Delimiter)
	assert.Equal(t, "tab", rep.Inputs[1].Delimiter)
}

func TestMerge_SingleColumnKeepsDelimitersInData(t *testing.T) {
	out, rep := mergeString(t, Options{}, csvSource("notes.csv", "note\nx;y\nplain\n"))

	assert.Equal(t, "note\nx;y\nplain\n", out)
	assert.Equal(t, ",", rep.Inputs[0].Delimiter)
	assert.Zero(t, rep.FieldMismatches)
}

func TestMerge_DetectsDelimiterAfterSkippedLines(t *testing.T) {
	out, rep := mergeString(t, Options{SkipLines: 1},
		csvSource("bank.csv", "Account Statement\nDate;Amount\n2024-01-02;1,50\n"),
	)

	assert.Equal(t, "Date,Amount\n2024-01-02,\"1,50\"\n", out)
	assert.Equal(t, ";", rep.Inputs[0].Delimiter)
}

func TestMerge_DelimiterOverrides(t *testing.T) {
	t.Run("per source", func(t *testing.T) {
		src := csvSource("pipe.csv", "a|b\n1|2\n")
		src.Delimiter = '|'
		out, _ := mergeString(t, Options{}, src)
		assert.Equal(t, "a,b\n1,2\n", out)
	})

	t.Run("merge wide", func(t *testing.T) {
		out, _ := mergeString(t, Options{Delimiter: ';'}, csvSource("a.csv", "a;b,c\n1;2,3\n"))
		assert.Equal(t, "a,\"b,c\"\n1,\"2,3\"\n", out)
	})

	t.Run("custom detector", func(t *testing.T) {
		var calls int
		d := detect.Func(func(sample []byte) (detect.Result, error) {
			calls++
			return detect.Result{Encoding: csvio.EncodingUTF8, Delimiter: '|'}, nil
		})
		var buf bytes.Buffer
		_, err := quietMerger(WithDetector(d)).Run(context.Background(),
			[]Source{csvSource("p.csv", "a|b\n1|2\n")}, &buf, Format{}, Options{})
		require.NoError(t, err)
		assert.Equal(t, "a,b\n1,2\n", buf.String())
		assert.Equal(t, 1, calls, "dialect is detected once per input")
	})
}

func TestMerge_Encodings(t *testing.T) {
	t.Run("utf-16 with bom is detected", func(t *testing.T) {
		data, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("id,name\n1,Zoë\n")
		require.NoError(t, err)

		out, rep := mergeString(t, Options{}, csvSource("u16.csv", data))
		assert.Equal(t, "id,name\n1,Zoë\n", out)
		assert.Equal(t, csvio.EncodingUTF16LE, rep.Inputs[0].Encoding)
	})

	t.Run("utf-8 bom is stripped from header", func(t *testing.T) {
		out, rep := mergeString(t, Options{}, csvSource("bom.csv", "\xef\xbb\xbfid\n1\n"))
		assert.Equal(t, "id\n1\n", out)
		assert.Equal(t, []string{"id"}, rep.Columns)
	})

	t.Run("explicit latin1", func(t *testing.T) {
		out, _ := mergeString(t, Options{Encoding: csvio.EncodingLatin1}, csvSource("l1.csv", "id,name\n1,Zo\xeb\n"))
		assert.Equal(t, "id,name\n1,Zoë\n", out)
	})

	t.Run("output format", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := quietMerger().Run(context.Background(),
			[]Source{csvSource("a.csv", "id,name\n1,Al\n")}, &buf,
			Format{Delimiter: ';', Encoding: csvio.EncodingUTF8BOM}, Options{})
		require.NoError(t, err)
		assert.Equal(t, "\xef\xbb\xbfid;name\n1;Al\n", buf.String())
	})

	t.Run("unencodable output fails", func(t *testing.T) {
		_, err := quietMerger().Run(context.Background(),
			[]Source{csvSource("a.csv", "name\n日本\n")}, io.Discard,
			Format{Encoding: csvio.EncodingLatin1}, Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOutputFailed)
	})
}

func TestMerge_HeaderMappingAndSkipLines(t *testing.T) {
	mapping, err := headers.ParseMapping([]byte("customer_id: [Customer ID, Cust No]\nname: [Customer Name]\n"))
	require.NoError(t, err)

	out, rep := mergeString(t, Options{HeaderMap: mapping, SkipLines: 1},
		csvSource("a.csv", "Report generated 2024-01-01\nCustomer ID,Customer Name\n1,Al\n"),
		csvSource("b.csv", "Exported\nCust No,Region\n2,West\n"),
	)

	assert.Equal(t, []string{"customer_id", "name", "Region"}, rep.Columns)
	assert.Equal(t, "customer_id,name,Region\n1,Al,\n2,,West\n", out)
}

func TestMerge_NormalizeHeaders(t *testing.T) {
	out, _ := mergeString(t, Options{NormalizeHeaders: true},
		csvSource("a.csv", "Posting Date,Amount\n2024-01-01,5\n"),
		csvSource("b.csv", "postingdate,AMOUNT\n2024-01-02,6\n"),
	)
	assert.Equal(t, "postingdate,amount\n2024-01-01,5\n2024-01-02,6\n", out)
}

func TestMerge_SkipBlankRows(t *testing.T) {
	out, rep := mergeString(t, Options{SkipBlankRows: true},
		csvSource("a.csv", "a,b\n1,2\n , \n,\n3,4\n"),
	)
	assert.Equal(t, "a,b\n1,2\n3,4\n", out)
	assert.Equal(t, 2, rep.BlankRows)
	assert.Equal(t, 2, rep.Inputs[0].BlankRows)
	assert.Equal(t, 2, rep.RowsWritten)
}

func TestMerge_InvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		format Format
	}{
		{"negative skip", Options{SkipLines: -1}, Format{}},
		{"quote delimiter", Options{Delimiter: '"'}, Format{}},
		{"bad policy", Options{InvalidUTF8: "ignore"}, Format{}},
		{"bad output delimiter", Options{}, Format{Delimiter: '\n'}},
		{"bad output encoding", Options{}, Format{Encoding: "ebcdic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := quietMerger().Run(context.Background(),
				[]Source{csvSource("a.csv", "a\n1\n")}, io.Discard, tt.format, tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestMerge_Cancelled(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := quietMerger().Run(ctx, []Source{csvSource("a.csv", "a\n1\n")}, io.Discard, Format{}, Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("during row pass", func(t *testing.T) {
		old := ContextCheckInterval
		ContextCheckInterval = 1
		t.Cleanup(func() { ContextCheckInterval = old })

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		opens := 0
		src := Source{
			Name: "slow.csv",
			Open: func() (io.ReadCloser, error) {
				opens++
				if opens == 2 {
					cancel()
				}
				return io.NopCloser(strings.NewReader("a\n1\n2\n3\n")), nil
			},
		}

		_, err := quietMerger().Run(ctx, []Source{src}, io.Discard, Format{}, Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCancelled)
		assert.Equal(t, "slow.csv", SourceOf(err))
		assert.Contains(t, err.Error(), "line 2")
	})
}

type fakeRecorder struct {
	reports []*Report
	errs    []error
}

func (f *fakeRecorder) ObserveMerge(rep *Report, err error) {
	f.reports = append(f.reports, rep)
	f.errs = append(f.errs, err)
}

func TestMerge_Recorder(t *testing.T) {
	rec := &fakeRecorder{}
	m := quietMerger(WithRecorder(rec))

	_, err := m.Run(context.Background(), []Source{csvSource("a.csv", "a\n1\n2\n")}, io.Discard, Format{}, Options{})
	require.NoError(t, err)
	_, err = m.Run(context.Background(), nil, io.Discard, Format{}, Options{})
	require.Error(t, err)

	require.Len(t, rec.reports, 2)
	assert.Equal(t, 2, rec.reports[0].RowsWritten)
	assert.NoError(t, rec.errs[0])
	assert.NotNil(t, rec.reports[1])
	assert.ErrorIs(t, rec.errs[1], ErrNoInputs)
}

func TestMergeFile(t *testing.T) {
	writeFile := func(t *testing.T, dir, name, data string) string {
		t.Helper()
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
		return p
	}
	dirNames := func(t *testing.T, dir string) []string {
		t.Helper()
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return names
	}

	t.Run("commits output", func(t *testing.T) {
		dir := t.TempDir()
		a := writeFile(t, dir, "a.csv", "id,name\n1,Alice\n")
		b := writeFile(t, dir, "b.csv", "id,age\n2,30\n")
		out := filepath.Join(dir, "out.csv")

		rep, err := quietMerger().MergeFile(context.Background(), FileSources([]string{a, b}), Sink{Path: out}, Options{})
		require.NoError(t, err)
		assert.Equal(t, 2, rep.RowsWritten)
		assert.Equal(t, int64(len("id,name\n1,Alice\n")), rep.Inputs[0].Bytes)

		got, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "id,name,age\n1,Alice,\n2,,30\n", string(got))
		assert.ElementsMatch(t, []string{"a.csv", "b.csv", "out.csv"}, dirNames(t, dir))
	})

	t.Run("no inputs creates no file", func(t *testing.T) {
		dir := t.TempDir()
		out := filepath.Join(dir, "out.csv")

		_, err := quietMerger().MergeFile(context.Background(), nil, Sink{Path: out}, Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoInputs)
		assert.NoFileExists(t, out)
		assert.Empty(t, dirNames(t, dir))
	})

	t.Run("failure in row pass leaves previous output", func(t *testing.T) {
		dir := t.TempDir()
		good := writeFile(t, dir, "good.csv", "a\n1\n")
		bad := writeFile(t, dir, "bad.csv", "a\n\xff\n")
		out := writeFile(t, dir, "out.csv", "previous\n")

		_, err := quietMerger().MergeFile(context.Background(), FileSources([]string{good, bad}), Sink{Path: out}, Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSourceUnreadable)

		got, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "previous\n", string(got))
		assert.ElementsMatch(t, []string{"good.csv", "bad.csv", "out.csv"}, dirNames(t, dir))
	})

	t.Run("header conflict creates no file", func(t *testing.T) {
		dir := t.TempDir()
		a := writeFile(t, dir, "a.csv", "id\n1\n")
		b := writeFile(t, dir, "b.csv", "id,extra\n2,x\n")
		out := filepath.Join(dir, "out.csv")

		_, err := quietMerger().MergeFile(context.Background(), FileSources([]string{a, b}), Sink{Path: out}, Options{StrictHeader: true})
		require.ErrorIs(t, err, ErrHeaderConflict)
		assert.NoFileExists(t, out)
	})

	t.Run("missing output directory", func(t *testing.T) {
		dir := t.TempDir()
		a := writeFile(t, dir, "a.csv", "id\n1\n")
		out := filepath.Join(dir, "nope", "out.csv")

		_, err := quietMerger().MergeFile(context.Background(), FileSources([]string{a}), Sink{Path: out}, Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOutputFailed)
		assert.Equal(t, out, SourceOf(err))
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := quietMerger().MergeFile(context.Background(), nil, Sink{}, Options{})
		assert.ErrorIs(t, err, ErrInvalidOptions)
	})
}
