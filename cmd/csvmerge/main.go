// Command csvmerge merges CSV files with different headers into one file
// whose columns are the union of all headers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/csvmerge/internal/config"
	"github.com/JonMunkholm/csvmerge/internal/logging"
	"github.com/JonMunkholm/csvmerge/internal/merge"
	"github.com/JonMunkholm/csvmerge/internal/store"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process exit. stdout only ever carries CSV.
func run(args []string, stdout, stderr io.Writer) int {
	// Variables already set in the environment win over .env
	_ = godotenv.Load()

	// 1. Config from the environment, then flags on top
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "csvmerge: %v\n", err)
		return exitUsage
	}
	o, err := parseFlags(args, cfg, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "csvmerge: %v\n", err)
		return exitUsage
	}
	if o.showVersion {
		fmt.Fprintln(stdout, "csvmerge v"+version)
		return exitOK
	}

	logging.SetupWriter(stderr, o.logLevel, o.logFormat)

	opts, format, err := o.merge.Resolve()
	if err != nil {
		if merge.KindOf(err) == 0 {
			err = &merge.Error{Kind: merge.KindInvalidOptions, Err: err}
		}
		printFatal(stderr, err)
		return exitUsage
	}

	// 2. Expand folders; the output never merges into itself
	paths, err := merge.ExpandPaths(o.inputs, o.output)
	if err != nil {
		printFatal(stderr, err)
		return exitFatal
	}
	slog.Debug("inputs resolved", "count", len(paths))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect before merging so a bad DATABASE_URL fails fast
	var st *store.Store
	if o.store {
		if !cfg.Database.Enabled() {
			fmt.Fprintln(stderr, "csvmerge: -store needs DATABASE_URL")
			return exitUsage
		}
		if st, err = store.Open(ctx, cfg.Database); err != nil {
			printFatal(stderr, err)
			return exitFatal
		}
		defer st.Close()
		if err := st.EnsureSchema(ctx); err != nil {
			printFatal(stderr, err)
			return exitFatal
		}
	}

	// 4. Merge
	m := merge.New(merge.WithLogger(slog.Default()))
	sources := merge.FileSources(paths)

	var rep *merge.Report
	if o.output == "-" {
		rep, err = m.Run(ctx, sources, stdout, format, opts)
	} else {
		rep, err = m.MergeFile(ctx, sources, merge.Sink{Path: o.output, Format: format}, opts)
	}
	if err != nil {
		printFatal(stderr, err)
		return exitFatal
	}

	// 5. Store and archive only after the output is committed
	if st != nil {
		if err := storeOutput(ctx, st, o.output, format, rep); err != nil {
			printFatal(stderr, err)
			return exitFatal
		}
	}

	printSummary(stderr, rep, o.output)

	if o.archiveDir != "" {
		moved, err := merge.ArchiveInputs(paths, o.archiveDir)
		if err != nil {
			fmt.Fprintf(stderr, "csvmerge: archive: %v (moved %d of %d inputs)\n", err, len(moved), len(paths))
			return exitFatal
		}
		slog.Info("inputs archived", "dir", o.archiveDir, "count", len(moved))
	}
	return exitOK
}

// storeOutput re-reads the committed output and saves it as one run.
func storeOutput(ctx context.Context, st *store.Store, path string, format merge.Format, rep *merge.Report) error {
	run, err := store.RunFromReport(rep)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to reopen output: %w", err)
	}
	defer f.Close()

	rows, err := store.NewMergedRows(f, format, rep, run.ID)
	if err != nil {
		return err
	}
	n, err := st.SaveRun(ctx, run, rows)
	if err != nil {
		return fmt.Errorf("failed to save merge run: %w", err)
	}
	logging.WithFields(ctx, "merge_id", rep.ID).Info("merge stored", "rows", n)
	return nil
}
