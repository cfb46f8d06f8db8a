package main

// This file implements CLI flag parsing and help text.
// Flag defaults come from the MERGE_* environment, so a flag only changes
// what the user passes explicitly.

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/JonMunkholm/csvmerge/internal/config"
)

// version is shown by -version; override at build time with -ldflags "-X main.version=...".
var version = "1.0.0-dev"

// usageError marks errors that exit with status 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// cliOptions is everything the command line controls.
type cliOptions struct {
	merge      config.MergeConfig
	output     string
	archiveDir string
	store      bool
	logLevel   string
	logFormat  string
	inputs     []string

	showVersion bool
}

// parseFlags parses args on top of cfg's defaults. It returns flag.ErrHelp
// after printing help for -h.
func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (*cliOptions, error) {
	o := &cliOptions{
		merge:     cfg.Merge,
		logLevel:  cfg.Logging.Level,
		logFormat: cfg.Logging.Format,
	}

	fs := flag.NewFlagSet("csvmerge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(fs, stderr) }

	defineOutputFlags(fs, o)
	defineInputFlags(fs, o)
	defineUtilityFlags(fs, o)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, &usageError{msg: err.Error()}
	}
	if o.showVersion {
		return o, nil
	}

	o.inputs = fs.Args()
	switch {
	case o.output == "":
		return nil, usagef("missing output path: pass -o FILE, or -o - for stdout")
	case len(o.inputs) == 0:
		return nil, usagef("no inputs: pass one or more CSV files or folders")
	case o.store && o.output == "-":
		return nil, usagef("-store needs an output file; it cannot be used with -o -")
	case o.merge.SkipLines < 0:
		return nil, usagef("-skip-lines must be non-negative")
	}
	return o, nil
}

// defineOutputFlags registers -o/-output, -out-delimiter, -out-encoding, -fill, -archive-dir, -store.
func defineOutputFlags(fs *flag.FlagSet, o *cliOptions) {
	fs.StringVar(&o.output, "o", "", `Output file ("-" writes to stdout)`)
	fs.StringVar(&o.output, "output", "", "Same as -o")
	fs.StringVar(&o.merge.OutputDelimiter, "out-delimiter", o.merge.OutputDelimiter, "Output delimiter: , | tab | ; | any single character")
	fs.StringVar(&o.merge.OutputEncoding, "out-encoding", o.merge.OutputEncoding, "Output encoding: utf-8 | utf-8-bom | utf-16le | utf-16be | latin1 | windows-1252")
	fs.StringVar(&o.merge.FillValue, "fill", o.merge.FillValue, "Value written for columns a row does not have")
	fs.StringVar(&o.archiveDir, "archive-dir", "", "Move inputs here after a successful merge")
	fs.BoolVar(&o.store, "store", false, "Save the merged rows to Postgres (needs DATABASE_URL)")
}

// defineInputFlags registers the flags that control how inputs are read.
func defineInputFlags(fs *flag.FlagSet, o *cliOptions) {
	fs.StringVar(&o.merge.Delimiter, "delimiter", o.merge.Delimiter, "Input delimiter: auto | , | tab | ; | any single character")
	fs.StringVar(&o.merge.Encoding, "encoding", o.merge.Encoding, "Input encoding: auto | utf-8 | utf-16le | utf-16be | latin1 | windows-1252")
	fs.BoolVar(&o.merge.StrictHeader, "strict-header", o.merge.StrictHeader, "Fail when a header has columns the first input lacks")
	fs.IntVar(&o.merge.SkipLines, "skip-lines", o.merge.SkipLines, "Records to skip before the header in every input")
	fs.StringVar(&o.merge.HeaderMap, "header-map", o.merge.HeaderMap, "YAML or JSON file mapping standard names to header aliases")
	fs.BoolVar(&o.merge.NormalizeHeaders, "normalize-headers", o.merge.NormalizeHeaders, "Lowercase headers and remove spaces")
	fs.BoolVar(&o.merge.SkipBlankRows, "skip-blank-rows", o.merge.SkipBlankRows, "Drop rows whose fields are all blank")
	fs.StringVar(&o.merge.InvalidUTF8, "invalid-utf8", o.merge.InvalidUTF8, "Invalid UTF-8 handling: error | replace")
}

// defineUtilityFlags registers logging, -version and -help.
func defineUtilityFlags(fs *flag.FlagSet, o *cliOptions) {
	fs.StringVar(&o.logLevel, "log-level", o.logLevel, "Log level: debug | info | warn | error")
	fs.StringVar(&o.logFormat, "log-format", o.logFormat, "Log format: text | json")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `csvmerge v%s merges CSV files by header name.

Usage:
  csvmerge [flags] -o OUTPUT INPUT...

Inputs may be files or folders; a folder contributes its .csv, .tsv and
.txt files in name order. Columns are the union of all headers in
first-seen order.

Flags:
`, version)
	fs.PrintDefaults()
	fmt.Fprint(w, `
Exit status is 0 on success, 1 when the merge fails and 2 on a usage error.
`)
}
