package home

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

const (
	// DefaultDirName is the default name for the annotator home directory.
	DefaultDirName = ".annotator"

	// TasksDirName is the subdirectory holding saved task state.
	TasksDirName = "tasks"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

var validTaskName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Dir represents the annotator home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.annotator).
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

// TasksPath returns the path to the saved task directory.
func (d *Dir) TasksPath() string {
	return filepath.Join(d.path, TasksDirName)
}

// TaskDir returns the state directory for a named task.
func (d *Dir) TaskDir(name string) (string, error) {
	if !validTaskName.MatchString(name) {
		return "", fmt.Errorf("invalid task name %q", name)
	}
	return filepath.Join(d.TasksPath(), name), nil
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create tasks directory (this also creates the parent)
	if err := os.MkdirAll(d.TasksPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create tasks directory: %w", err)
	}
	return nil
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

// ListTasks returns the names of saved tasks, sorted.
func (d *Dir) ListTasks() ([]string, error) {
	entries, err := os.ReadDir(d.TasksPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
