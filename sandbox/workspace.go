package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
)

// Workspace is a directory owned by exactly one job
type Workspace struct {
	Token string
	Path  string

	release sync.Once
}

// WorkspaceManager hands out per-job directories below a root created once
// at startup.
type WorkspaceManager struct {
	logger *zap.Logger
	fs     afero.Fs
	root   string
}

// NewWorkspaceManager creates the root directory and returns a manager for it
func NewWorkspaceManager(logger *zap.Logger, fs afero.Fs, root string) (*WorkspaceManager, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	if err := fs.MkdirAll(absRoot, DirPermission); err != nil {
		return nil, fmt.Errorf("failed to create workspace root %s: %w", absRoot, err)
	}

	logger.Info("workspace root ready", zap.String("root", absRoot))

	return &WorkspaceManager{
		logger: logger,
		fs:     fs,
		root:   absRoot,
	}, nil
}

// NewWorkspaceManagerFromConfig builds the manager from sandbox.workspace_root
func NewWorkspaceManagerFromConfig(logger *zap.Logger, fs afero.Fs, cfg *config.Config) (*WorkspaceManager, error) {
	return NewWorkspaceManager(logger, fs, cfg.Sandbox.WorkspaceRoot)
}

// Root returns the absolute workspace root
func (m *WorkspaceManager) Root() string {
	return m.root
}

// Acquire creates the directory for token. The directory must not exist yet.
func (m *WorkspaceManager) Acquire(token string) (*Workspace, error) {
	if !isPathElement(token) {
		return nil, fmt.Errorf("%w: invalid token %q", ErrWorkspaceCreate, token)
	}

	path := filepath.Join(m.root, token)
	if err := m.fs.Mkdir(path, DirPermission); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkspaceCreate, err)
	}

	return &Workspace{Token: token, Path: path}, nil
}

// Write stores content as fileName inside ws
func (m *WorkspaceManager) Write(ws *Workspace, fileName, content string) error {
	if !isPathElement(fileName) {
		return fmt.Errorf("%w: invalid file name %q", ErrWorkspaceCreate, fileName)
	}

	if err := afero.WriteFile(m.fs, filepath.Join(ws.Path, fileName), []byte(content), FilePermission); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrWorkspaceCreate, fileName, err)
	}
	return nil
}

// Release removes ws. Only the first call does anything; failures are logged
// and otherwise ignored.
func (m *WorkspaceManager) Release(ws *Workspace) {
	if ws == nil {
		return
	}

	ws.release.Do(func() {
		if err := m.fs.RemoveAll(ws.Path); err != nil {
			m.logger.Error("failed to remove workspace",
				zap.String("job_id", ws.Token),
				zap.String("path", ws.Path),
				zap.Error(err))
		}
	})
}

// Sweep removes workspace directories last modified more than maxAge ago.
// It returns how many were removed and every removal error combined.
func (m *WorkspaceManager) Sweep(maxAge time.Duration) (int, error) {
	entries, err := afero.ReadDir(m.fs, m.root)
	if err != nil {
		return 0, fmt.Errorf("failed to list workspace root: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs error
	for _, entry := range entries {
		if !entry.IsDir() || entry.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(m.root, entry.Name())
		if rmErr := m.fs.RemoveAll(path); rmErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("remove %s: %w", path, rmErr))
			continue
		}
		removed++
	}

	return removed, errs
}

func isPathElement(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
