// Package logging opens the workspace log file.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"teamops/internal/db"
)

const fileName = "teamops.log"

// Path returns the log file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, db.Dir, "logs", fileName)
}

// Open returns a logger appending to the workspace log file. When mirror is
// non-nil every line is also written there. Close the returned file when done.
func Open(workspace, prefix string, mirror io.Writer) (*log.Logger, io.Closer, error) {
	path := Path(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = f
	if mirror != nil {
		w = io.MultiWriter(f, mirror)
	}
	return log.New(w, prefix, log.LstdFlags|log.LUTC), f, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}
