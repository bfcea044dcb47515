package utils

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
)

// DirStatus is what CheckDirStatus found out about a directory.
type DirStatus struct {
	Exists   bool
	Writable bool
	Error    error
}

// FileExists reports whether path names a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// EnsureDir creates dirPath and its parents if missing.
func EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dirPath)
	}
	return nil
}

// SaveTOMLFile encodes data into filePath. The file is written next to its
// target and renamed into place, so a watcher never reads half a file.
func SaveTOMLFile(data any, filePath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(filePath), "."+filepath.Base(filePath)+".*")
	if err != nil {
		log.Errorf("Failed to create file: %v", err)
		return errors.Wrapf(err, "failed to create temp file for %s", filePath)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := toml.NewEncoder(tmp).Encode(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to encode %s", filePath)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to write %s", filePath)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		return errors.Wrapf(err, "failed to replace %s", filePath)
	}
	return nil
}

// GetAbsolutePath returns path made absolute, or "unknown" for an empty path.
func GetAbsolutePath(path string) string {
	if path == "" {
		return "unknown"
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// GetExecutableDir returns the directory of the running binary.
func GetExecutableDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "failed to locate executable")
	}
	return filepath.Dir(execPath), nil
}

// CheckDirStatus creates dirPath if needed and probes it for write access.
func CheckDirStatus(dirPath string) DirStatus {
	var status DirStatus
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		status.Error = err
		log.Warnf("Cannot create directory %s: %v", dirPath, err)
		return status
	}
	status.Exists = true
	status.Writable = canWrite(dirPath)
	return status
}

func canWrite(dirPath string) bool {
	probe, err := os.CreateTemp(dirPath, ".write_test*")
	if err != nil {
		log.Warnf("Cannot write to directory %s: %v", dirPath, err)
		return false
	}
	probe.Close()
	os.Remove(probe.Name())
	return true
}
