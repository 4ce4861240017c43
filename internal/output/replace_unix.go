//go:build !windows

package output

import "os"

// osReplace performs an atomic rename on POSIX systems
func osReplace(tmpPath, dest string) error {
	return os.Rename(tmpPath, dest)
}

// syncDir best-effort fsyncs the parent directory so the rename is durable
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
