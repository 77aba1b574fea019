package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LoadCatalogVersion loads the catalog together with the modification time
// observed before reading it. A write that lands after the stat carries a newer
// mtime, so a watcher started from this version still picks it up.
func LoadCatalogVersion(path string) (*Catalog, time.Time, error) {
	if path == "" {
		path = "configs/clinics.yaml"
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat catalog: %w", err)
	}
	cat, err := LoadCatalog(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return cat, info.ModTime(), nil
}

// CatalogWatcher polls clinics.yaml and reports revisions newer than the one
// already applied.
type CatalogWatcher struct {
	path     string
	interval time.Duration
	applied  time.Time
	rejected time.Time
	logger   *zerolog.Logger
}

// NewCatalogWatcher starts from the version the caller already applied.
func NewCatalogWatcher(path string, interval time.Duration, applied time.Time, logger *zerolog.Logger) *CatalogWatcher {
	if path == "" {
		path = "configs/clinics.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CatalogWatcher{path: path, interval: interval, applied: applied, logger: logger}
}

// Poll checks the file once. It returns the catalog when the file changed
// since the applied version and parses cleanly. A broken revision is reported
// once and retried when the file changes again.
func (w *CatalogWatcher) Poll() (*Catalog, bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, false, err
	}
	mod := info.ModTime()
	if !mod.After(w.applied) || mod.Equal(w.rejected) {
		return nil, false, nil
	}

	cat, err := LoadCatalog(w.path)
	if err != nil {
		w.rejected = mod
		return nil, false, err
	}
	w.applied = mod
	return cat, true, nil
}

// Run polls until ctx is done and hands every new revision to onUpdate.
func (w *CatalogWatcher) Run(ctx context.Context, onUpdate func(*Catalog)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cat, changed, err := w.Poll()
			if err != nil {
				w.logger.Error().Err(err).Str("path", w.path).Msg("clinics catalog not reloaded")
				continue
			}
			if changed && onUpdate != nil {
				onUpdate(cat)
			}
		}
	}
}
