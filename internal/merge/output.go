package merge

import (
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic calls write with a temporary file next to path and renames it
// to path once write and the file close both succeed. On any failure the
// temporary file is removed and path is left untouched.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return outputFailed(path, err)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o644); err != nil {
		return outputFailed(path, err)
	}
	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return outputFailed(path, err)
	}
	if err := tmp.Close(); err != nil {
		return outputFailed(path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return outputFailed(path, err)
	}
	committed = true
	return nil
}
