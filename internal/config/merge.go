package config

import (
	"fmt"

	"github.com/JonMunkholm/csvmerge/internal/csvio"
	"github.com/JonMunkholm/csvmerge/internal/detect"
	"github.com/JonMunkholm/csvmerge/internal/headers"
	"github.com/JonMunkholm/csvmerge/internal/merge"
)

// Resolve parses the merge settings into merger options and an output
// format, loading the header map file if one is named. Callers overlay CLI
// flags or form fields onto a copy of MergeConfig before resolving.
func (c MergeConfig) Resolve() (merge.Options, merge.Format, error) {
	var opts merge.Options
	var format merge.Format

	delim, ok := detect.ParseDelimiter(c.Delimiter)
	if !ok {
		return opts, format, fmt.Errorf("invalid delimiter %q", c.Delimiter)
	}
	enc, err := csvio.ParseEncoding(c.Encoding)
	if err != nil {
		return opts, format, err
	}
	outDelim, ok := detect.ParseDelimiter(c.OutputDelimiter)
	if !ok {
		return opts, format, fmt.Errorf("invalid output delimiter %q", c.OutputDelimiter)
	}
	outEnc, err := csvio.ParseEncoding(c.OutputEncoding)
	if err != nil {
		return opts, format, fmt.Errorf("output: %w", err)
	}
	policy, err := csvio.ParseInvalidPolicy(c.InvalidUTF8)
	if err != nil {
		return opts, format, err
	}

	var mapping *headers.Mapping
	if c.HeaderMap != "" {
		if mapping, err = headers.LoadMapping(c.HeaderMap); err != nil {
			return opts, format, err
		}
	}

	opts = merge.Options{
		FillValue:        c.FillValue,
		StrictHeader:     c.StrictHeader,
		Delimiter:        delim,
		Encoding:         enc,
		SkipLines:        c.SkipLines,
		HeaderMap:        mapping,
		NormalizeHeaders: c.NormalizeHeaders,
		SkipBlankRows:    c.SkipBlankRows,
		InvalidUTF8:      policy,
	}
	// "auto" output settings fall back to comma and UTF-8 inside the merger.
	format = merge.Format{Delimiter: outDelim, Encoding: outEnc}

	if err := opts.Validate(); err != nil {
		return opts, format, err
	}
	return opts, format, nil
}
