package merge

import (
	"bytes"
	"io"
	"os"

	"github.com/JonMunkholm/csvmerge/internal/csvio"
)

// Source is one input. Open is called once per pass, so it must return a
// fresh reader positioned at the start of the data every time.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)

	// Delimiter and Encoding override Options for this input. Zero values
	// fall back to Options, then to detection.
	Delimiter rune
	Encoding  csvio.Encoding
}

// FileSource reads a file from disk.
func FileSource(path string) Source {
	return Source{
		Name: path,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// BytesSource reads an in-memory buffer, e.g. an uploaded file.
func BytesSource(name string, data []byte) Source {
	return Source{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileSources wraps each path with FileSource.
func FileSources(paths []string) []Source {
	out := make([]Source, len(paths))
	for i, p := range paths {
		out[i] = FileSource(p)
	}
	return out
}

// Format describes how output text is written.
type Format struct {
	Delimiter rune
	Encoding  csvio.Encoding
}

// withDefaults fills a comma delimiter and UTF-8.
func (f Format) withDefaults() Format {
	if f.Delimiter == 0 {
		f.Delimiter = ','
	}
	if f.Encoding == "" {
		f.Encoding = csvio.EncodingUTF8
	}
	return f
}

// Sink is a file destination. Path "-" means standard output, which cannot be
// committed atomically.
type Sink struct {
	Path string
	Format
}
