// Package watcher triggers reconciliation when the desired-state file changes.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounceDuration coalesces bursts of write events into one trigger.
const debounceDuration = 500 * time.Millisecond

// Watcher watches the desired-state file and invokes a callback on change.
type Watcher struct {
	configPath string
	onChange   func()
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for configPath. onChange runs after each debounced
// change; invocations are serialized on the watch goroutine.
func New(configPath string, onChange func(), logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		configPath: configPath,
		onChange:   onChange,
		watcher:    fsw,
		logger:     logger,
	}, nil
}

// Start begins watching the desired-state file.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	if err := w.watcher.Add(w.configPath); err != nil {
		// If the file doesn't exist yet, watch the directory instead.
		dir := filepath.Dir(w.configPath)
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch config file/dir: %w", err)
		}
		w.logger.Info().Str("dir", dir).Msg("watching directory for config changes")
	} else {
		w.logger.Info().Str("file", w.configPath).Msg("watching config file for changes")
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.watchLoop()
	}()

	return nil
}

// Stop shuts the watcher down and waits for the watch goroutine.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	if err := w.watcher.Close(); err != nil {
		return err
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) watchLoop() {
	var debounce *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.logger.Debug().Str("op", event.Op.String()).Msg("detected config file change")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDuration, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			w.onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("watcher error")
		}
	}
}
