package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"cvmatch/internal/errors"
)

// PromptWatcher reloads prompt files when they change on disk
type PromptWatcher struct {
	mu sync.Mutex

	files         map[string]PromptFile // keyed by absolute path
	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	timers        map[string]*time.Timer

	onReload func(PromptFile, error)
	logger   *errors.Logger

	stopChan chan struct{}
	running  bool
}

// NewPromptWatcher prepares a watcher for the prompt files of cfg.
// onReload, if set, is called after every reload attempt.
func NewPromptWatcher(cfg *Config, debounceDelay time.Duration, onReload func(PromptFile, error), logger *errors.Logger) (*PromptWatcher, error) {
	if debounceDelay <= 0 {
		debounceDelay = 500 * time.Millisecond
	}

	files := make(map[string]PromptFile)
	for _, f := range cfg.PromptFiles() {
		abs, err := filepath.Abs(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve prompt file %s: %w", f.Path, err)
		}
		f.Path = abs
		files[abs] = f
	}

	return &PromptWatcher{
		files:         files,
		debounceDelay: debounceDelay,
		timers:        make(map[string]*time.Timer),
		onReload:      onReload,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}, nil
}

// Start begins watching. It is a no-op when no prompt file is configured.
func (pw *PromptWatcher) Start() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.running {
		return fmt.Errorf("prompt watcher is already running")
	}
	if len(pw.files) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// editors replace files by rename, so watch the directories
	dirs := make(map[string]bool)
	for path := range pw.files {
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	pw.fsWatcher = watcher
	pw.running = true
	go pw.watchLoop(watcher)

	if pw.logger != nil {
		pw.logger.Info("Prompt file watcher started", "files", len(pw.files), "directories", len(dirs))
	}
	return nil
}

func (pw *PromptWatcher) watchLoop(watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			pw.schedule(filepath.Clean(event.Name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if pw.logger != nil {
				pw.logger.LogError(err, "Prompt file watcher error")
			}
		case <-pw.stopChan:
			return
		}
	}
}

// schedule debounces bursts of events on the same file
func (pw *PromptWatcher) schedule(path string) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	f, ok := pw.files[path]
	if !ok || !pw.running {
		return
	}
	if t, ok := pw.timers[path]; ok {
		t.Stop()
	}
	pw.timers[path] = time.AfterFunc(pw.debounceDelay, func() { pw.reload(f) })
}

func (pw *PromptWatcher) reload(f PromptFile) {
	err := f.Load()
	if pw.logger != nil {
		if err != nil {
			pw.logger.LogError(err, "Failed to reload prompt file", "file", f.Path, "operation", f.Operation)
		} else {
			pw.logger.Info("Prompt file reloaded", "file", f.Path, "operation", f.Operation, "type", f.Type)
		}
	}
	if pw.onReload != nil {
		pw.onReload(f, err)
	}
}

// Stop stops watching
func (pw *PromptWatcher) Stop() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if !pw.running {
		return nil
	}
	close(pw.stopChan)
	for _, t := range pw.timers {
		t.Stop()
	}
	pw.running = false
	return pw.fsWatcher.Close()
}
