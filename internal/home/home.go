package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the lexocr home directory.
	DefaultDirName = ".lexocr"

	// DataDirName is the subdirectory for run data and uploads.
	DataDirName = "data"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// AuditDBFileName is the SQLite audit database file.
	AuditDBFileName = "audit.db"
)

// Dir represents the lexocr home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.lexocr).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// AuditDBPath returns the path to the audit database.
func (d *Dir) AuditDBPath() string {
	return filepath.Join(d.DataPath(), AuditDBFileName)
}

// UploadsDir returns the directory for documents received over the API.
func (d *Dir) UploadsDir() string {
	return filepath.Join(d.DataPath(), "uploads")
}

// ModelCacheDir returns the directory where the recognition service
// caches its models.
func (d *Dir) ModelCacheDir() string {
	return filepath.Join(d.path, "models")
}

// RunDir returns the working directory for one extraction run.
func (d *Dir) RunDir(runID string) string {
	return filepath.Join(d.DataPath(), "runs", runID)
}

// RunUploadPath returns where an uploaded document is stored for a run.
func (d *Dir) RunUploadPath(runID, filename string) string {
	return filepath.Join(d.RunDir(runID), filepath.Base(filename))
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.DataPath(), d.UploadsDir(), d.ModelCacheDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureRunDir creates the working directory for a run.
func (d *Dir) EnsureRunDir(runID string) error {
	return os.MkdirAll(d.RunDir(runID), 0o755)
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
