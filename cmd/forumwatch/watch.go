package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/kball/forumwatch/internal/config"
	"github.com/kball/forumwatch/internal/debug"
	"github.com/kball/forumwatch/internal/engine"
	"github.com/kball/forumwatch/internal/tui/watch"
)

const configReloadDelay = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: GroupViews,
	Short:   "Interactive live board",
	Long: `Launch an interactive terminal UI over the live boards. The boards update
from the backend's push channel (with a short debounce) and fall back to
manual refresh when the channel is unavailable. Diagnostics are polled in
the background.

Edits to config.yaml while watch runs are applied to the running board.

Key bindings:
  tab/shift+tab  Switch board
  j/k            Move between threads
  enter          Open thread (marks it seen)
  esc            Close thread
  c              Reply to the open thread
  r              Refresh
  pgup/pgdn      Scroll the timeline
  ?              Toggle help
  q/Ctrl+C       Quit`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("log-file", "", "Write debug logs to this file while the UI is running")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	logFile, _ := cmd.Flags().GetString("log-file")
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		debug.SetOutput(f)
	} else {
		debug.SetOutput(io.Discard)
	}
	defer debug.SetOutput(os.Stderr)

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	e := newEngine(settings, true)
	defer e.Close()

	if err := e.Start(rootCtx); err != nil {
		// The banner carries the failure; the UI still starts so the
		// operator can refresh once the backend is back.
		debug.Logger().Warn().Err(err).Msg("watch: initial load failed")
	}

	ctx, cancel := context.WithCancel(rootCtx)
	defer cancel()
	if path := config.ConfigFileUsed(); path != "" {
		stop, err := watchConfig(ctx, path, e)
		if err != nil {
			WarnError("config reload disabled: %v", err)
		} else {
			defer stop()
		}
	}

	model := watch.New(e)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running watch: %w", err)
	}
	return nil
}

// watchConfig reloads settings into e whenever the config file changes. The
// parent directory is watched so that editors which replace the file on save
// are picked up.
func watchConfig(ctx context.Context, path string, e *engine.Engine) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var mu sync.Mutex
		var debounceTimer *time.Timer
		defer func() {
			mu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				mu.Lock()
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(configReloadDelay, func() {
					if err := reloadConfig(ctx, e); err != nil {
						debug.Logger().Warn().Err(err).Str("path", path).Msg("watch: config reload failed")
					}
				})
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				debug.Logger().Warn().Err(err).Msg("watch: config watcher error")
			}
		}
	}()

	return func() {
		_ = watcher.Close()
		wg.Wait()
	}, nil
}

// reloadConfig re-reads config.yaml, re-applies command-line overrides and
// pushes the resulting scope and filters into the engine.
func reloadConfig(ctx context.Context, e *engine.Engine) error {
	if ctx.Err() != nil {
		return nil
	}
	if err := config.Initialize(); err != nil {
		return err
	}
	reapplyOverrides()
	s, err := loadSettings()
	if err != nil {
		return err
	}
	debug.Logger().Debug().Str("ticket", s.Ticket).Str("run", s.Run).Msg("watch: config reloaded")
	if err := e.SetFilter(ctx, s.Filter()); err != nil {
		return err
	}
	return e.SetScope(ctx, s.Ticket, s.Run)
}
