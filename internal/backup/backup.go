// Package backup writes periodic export snapshots of the schedule set.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"hvacsched/internal/config"
	"hvacsched/internal/model"
)

const (
	filePrefix = "schedules-"
	fileSuffix = ".json"
	stampFmt   = "20060102T150405Z"
)

// Source supplies the document to snapshot. *engine.Engine implements it.
type Source interface {
	Export() model.Document
}

type Runner struct {
	src    Source
	cfg    config.BackupConfig
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func New(src Source, cfg config.BackupConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{src: src, cfg: cfg, logger: logger, now: time.Now}
}

// RunOnce writes one snapshot and prunes old ones. It returns the path of
// the new snapshot.
func (r *Runner) RunOnce() (string, error) {
	doc := r.src.Export()
	data, err := model.EncodeDocument(doc)
	if err != nil {
		return "", fmt.Errorf("backup: encode: %w", err)
	}

	name := filePrefix + r.now().UTC().Format(stampFmt) + fileSuffix
	path := filepath.Join(r.cfg.Dir, name)
	if err := config.WriteFileAtomic(path, data, ".backup-*.tmp"); err != nil {
		return "", fmt.Errorf("backup: write %s: %w", path, err)
	}
	r.logger.Info("schedule snapshot written", zap.String("path", path), zap.Int("schedules", len(doc.Schedules)))

	if err := r.prune(); err != nil {
		r.logger.Warn("pruning old snapshots failed", zap.Error(err))
	}
	return path, nil
}

// Snapshots lists snapshot files oldest first.
func (r *Runner) Snapshots() ([]string, error) {
	entries, err := os.ReadDir(r.cfg.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		n := e.Name()
		if e.Type().IsRegular() && strings.HasPrefix(n, filePrefix) && strings.HasSuffix(n, fileSuffix) {
			out = append(out, filepath.Join(r.cfg.Dir, n))
		}
	}
	// The UTC stamp in the name sorts chronologically.
	slices.Sort(out)
	return out, nil
}

func (r *Runner) prune() error {
	if r.cfg.Keep <= 0 {
		return nil
	}
	files, err := r.Snapshots()
	if err != nil {
		return err
	}
	var errs []error
	for len(files) > r.cfg.Keep {
		if err := os.Remove(files[0]); err != nil {
			errs = append(errs, err)
		}
		files = files[1:]
	}
	return errors.Join(errs...)
}

// Start schedules RunOnce on the configured cron spec. An empty spec
// leaves backups disabled.
func (r *Runner) Start() error {
	if r.cfg.Cron == "" {
		r.logger.Info("scheduled backups disabled")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return errors.New("backup: already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(r.cfg.Cron, r.tick); err != nil {
		return fmt.Errorf("backup: cron spec %q: %w", r.cfg.Cron, err)
	}
	c.Start()
	r.cron = c
	r.logger.Info("scheduled backups enabled", zap.String("cron", r.cfg.Cron), zap.String("dir", r.cfg.Dir))
	return nil
}

func (r *Runner) tick() {
	if _, err := r.RunOnce(); err != nil {
		r.logger.Error("scheduled backup failed", zap.Error(err))
	}
}

// Stop halts the scheduler and waits for a running snapshot to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
