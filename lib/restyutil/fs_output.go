package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput writes each exchange to `<directory>/<id>.http`.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput clears `dir` of any previous dumps and recreates it.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id+".http"), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write http dump", "id", id, "err", err)
	}
}
