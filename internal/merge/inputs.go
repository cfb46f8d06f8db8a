package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DataExtensions are the file extensions picked up when a directory is
// given as input.
var DataExtensions = []string{".csv", ".tsv", ".txt"}

// ExpandPaths replaces each directory in args with the data files directly
// inside it, sorted by name. Hidden files and any path in exclude are left
// out. Plain file arguments are kept as given, even when they do not exist,
// so that the merge reports them as unreadable by name.
func ExpandPaths(args []string, exclude ...string) ([]string, error) {
	skip := make(map[string]bool, len(exclude))
	for _, p := range exclude {
		if p == "" || p == "-" {
			continue
		}
		skip[absPath(p)] = true
	}

	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			out = append(out, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.HasPrefix(name, ".") || !isDataFile(name) {
				continue
			}
			p := filepath.Join(arg, name)
			if skip[absPath(p)] {
				continue
			}
			out = append(out, p)
		}
	}
	return out, nil
}

func isDataFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range DataExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// ArchiveInputs moves each path into dir, creating dir if needed. A name
// already taken in dir gets a numeric suffix before its extension. It
// returns the new locations of the files moved before any failure.
func ArchiveInputs(paths []string, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	moved := make([]string, 0, len(paths))
	for _, p := range paths {
		dest, err := freeName(dir, filepath.Base(p))
		if err != nil {
			return moved, err
		}
		if err := os.Rename(p, dest); err != nil {
			return moved, fmt.Errorf("failed moving file %s: %w", filepath.Base(p), err)
		}
		moved = append(moved, dest)
	}
	return moved, nil
}

func freeName(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(dir, name)
	for n := 1; ; n++ {
		_, err := os.Lstat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, stem+"_"+strconv.Itoa(n)+ext)
	}
}
