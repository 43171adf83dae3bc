// File: internal/profile/store.go

// Package profile manages per-instance browser profile directories. Each
// (instance key, engine) pair gets a private directory tree bootstrapped from
// the engine's template profile on first use, so parallel sessions against
// different notebooks never share cookies, local storage or cached
// credentials.
package profile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/nlm-cli/api/schemas"
	"github.com/xkilldash9x/nlm-cli/internal/config"
)

// Store creates and bootstraps instance profile directories.
type Store struct {
	paths  config.PathsConfig
	logger *zap.Logger
}

// NewStore creates a profile store over the configured path layout.
func NewStore(paths config.PathsConfig, logger *zap.Logger) *Store {
	return &Store{paths: paths, logger: logger.Named("profile")}
}

// TemplateDir returns the template profile directory for an engine.
func (s *Store) TemplateDir(engine string) string {
	return s.paths.TemplateDir(engine)
}

// InstanceDir returns the profile directory for an instance key and engine,
// without creating it.
func (s *Store) InstanceDir(instanceKey, engine string) string {
	return filepath.Join(s.paths.InstancesDir(), instanceKey, engine)
}

// Ensure returns the profile directory for the given instance key and engine,
// bootstrapping it from the engine's template on first use.
//
// Bootstrap is a one-level merge-copy: every immediate child of the template
// is copied only if the destination child does not already exist. The merge
// is idempotent, never overwrites, and never writes into the template; it is
// safe to call on every session start.
func (s *Store) Ensure(instanceKey, engine string) (string, error) {
	target := s.InstanceDir(instanceKey, engine)

	populated, err := dirPopulated(target)
	if err != nil {
		return "", fmt.Errorf("%w: failed to inspect %s: %v", schemas.ErrProfileBootstrap, target, err)
	}
	if populated {
		return target, nil
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create %s: %v", schemas.ErrProfileBootstrap, target, err)
	}

	template := s.TemplateDir(engine)
	tmplPopulated, err := dirPopulated(template)
	if err != nil || !tmplPopulated {
		// No template yet (first ever run, or unbootstrapped engine). The
		// empty profile is still usable; the browser will start logged out.
		s.logger.Debug("No template profile to merge from", zap.String("template", template))
		return target, nil
	}

	if err := s.mergeCopy(template, target); err != nil {
		return "", fmt.Errorf("%w: merge from %s: %v", schemas.ErrProfileBootstrap, template, err)
	}

	s.logger.Info("Bootstrapped instance profile",
		zap.String("instance", instanceKey),
		zap.String("engine", engine),
		zap.String("path", target))
	return target, nil
}

// mergeCopy copies each immediate child of src into dst unless the
// destination child already exists. Children are independent, so they copy
// concurrently.
func (s *Store) mergeCopy(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(4)
	for _, entry := range entries {
		g.Go(func() error {
			from := filepath.Join(src, entry.Name())
			to := filepath.Join(dst, entry.Name())

			if _, err := os.Lstat(to); err == nil {
				return nil // destination child exists; never overwrite
			} else if !os.IsNotExist(err) {
				return err
			}

			if entry.IsDir() {
				return copyTree(from, to)
			}
			return copyFile(from, to)
		})
	}
	return g.Wait()
}

// ClearSingletonArtifacts removes stale Singleton* marker files that a
// previous ungracefully terminated session may have left in a profile. All
// errors are swallowed: the markers legitimately may not exist.
func (s *Store) ClearSingletonArtifacts(profileDir string) {
	matches, err := filepath.Glob(filepath.Join(profileDir, "Singleton*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			s.logger.Debug("Removed stale singleton artifact", zap.String("path", m))
		}
	}
}

// dirPopulated reports whether path exists and contains at least one entry.
func dirPopulated(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// copyFile copies a regular file, preserving its mode. Symlinks and other
// special files are skipped; a browser profile's meaningful state is regular
// files and directories.
func copyFile(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// copyTree recursively copies a directory.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyTree(from, to); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(from, to); err != nil {
			return err
		}
	}
	return nil
}
