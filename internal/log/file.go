package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// minRotateSize keeps tiny MaxSizeMB values usable in tests.
const minRotateSize = 1024

// RotatingFile is an append-only log file that is renamed aside once it
// grows past its size limit. It is safe for concurrent use, so every slog
// handler derived from one (WithAttrs, WithGroup) shares the same rotation.
type RotatingFile struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	maxSize    int64
	maxAge     time.Duration
	maxBackups int
	size       int64
	now        func() time.Time
}

// OpenRotatingFile opens (or creates) cfg.FilePath for appending.
func OpenRotatingFile(cfg *Config) (*RotatingFile, error) {
	dir := filepath.Dir(cfg.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	maxSize := int64(cfg.MaxSizeMB) * 1024 * 1024
	if maxSize < minRotateSize {
		maxSize = minRotateSize
	}

	f := &RotatingFile{
		path:       cfg.FilePath,
		maxSize:    maxSize,
		maxAge:     time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		maxBackups: cfg.MaxBackups,
		now:        time.Now,
	}
	if err := f.open(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RotatingFile) open() error {
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	f.file = file
	f.size = info.Size()
	return nil
}

// Write appends p, rotating first if the file is already full.
func (f *RotatingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return 0, os.ErrClosed
	}
	if f.size > 0 && f.size+int64(len(p)) > f.maxSize {
		if err := f.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := f.file.Write(p)
	f.size += int64(n)
	return n, err
}

// rotate moves the current file aside with a timestamp suffix and starts a
// new one.
func (f *RotatingFile) rotate() error {
	f.file.Close()
	f.file = nil

	backup := f.path + "." + f.now().Format("2006-01-02T15-04-05.000")
	if err := os.Rename(f.path, backup); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}
	f.pruneBackups()

	if err := f.open(); err != nil {
		return fmt.Errorf("create new log file: %w", err)
	}
	return nil
}

// pruneBackups removes backups beyond maxBackups or older than maxAge.
func (f *RotatingFile) pruneBackups() {
	matches, err := filepath.Glob(f.path + ".*")
	if err != nil {
		return
	}

	type backup struct {
		path string
		mod  time.Time
	}
	backups := make([]backup, 0, len(matches))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil {
			backups = append(backups, backup{m, info.ModTime()})
		}
	}
	// Newest first; names sort by timestamp when mtimes tie.
	sort.Slice(backups, func(i, j int) bool {
		if backups[i].mod.Equal(backups[j].mod) {
			return backups[i].path > backups[j].path
		}
		return backups[i].mod.After(backups[j].mod)
	})

	cutoff := f.now().Add(-f.maxAge)
	for i, b := range backups {
		if i >= f.maxBackups || (f.maxAge > 0 && b.mod.Before(cutoff)) {
			os.Remove(b.path)
		}
	}
}

// Close closes the underlying file.
func (f *RotatingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
