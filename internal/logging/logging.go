package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// FileName is the log file created inside the log directory
const FileName = "himawari.log"

// Setup sends the standard logger to both the console and an appending log
// file under dir. The returned function restores the previous output and
// closes the file.
func Setup(dir string, console io.Writer) (func(), error) {
	prevOut, prevFlags, prevPrefix := log.Writer(), log.Flags(), log.Prefix()
	restore := func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		log.SetPrefix(prevPrefix)
	}

	if console == nil {
		console = io.Discard
	}
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("")

	if dir == "" {
		log.SetOutput(console)
		return restore, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.SetOutput(console)
		return restore, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.SetOutput(console)
		return restore, fmt.Errorf("open log file: %w", err)
	}

	log.SetOutput(io.MultiWriter(f, console))
	return func() {
		restore()
		_ = f.Close()
	}, nil
}
