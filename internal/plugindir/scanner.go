// Package plugindir discovers plugin executables across a configured,
// order-sensitive set of directories and watches them for changes so a
// plugin dropped at runtime is picked up without a process restart.
package plugindir

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nodewatch/plugind/internal/logger"
)

// PluginSuffix is the required filename suffix for a discovered plugin.
const PluginSuffix = ".plugin"

// Descriptor is one discovered plugin file.
type Descriptor struct {
	Name    string // basename without PluginSuffix, used as the plugin id
	Path    string
	Dir     string
	ModTime time.Time
}

// Scanner walks a configured, order-sensitive set of directories for
// *.plugin files, applying "earlier entries win" on basename collisions
// across directories.
type Scanner struct {
	directories []string
}

// NewScanner creates a Scanner over directories, in search order.
func NewScanner(directories []string) *Scanner {
	return &Scanner{directories: directories}
}

// Scan walks every configured directory in order and returns one
// Descriptor per distinct basename, keeping the first directory to produce
// a given name.
func (sc *Scanner) Scan() ([]Descriptor, error) {
	seen := make(map[string]bool)
	var out []Descriptor

	for _, dir := range sc.directories {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Warn("plugin directory unreadable", "dir", dir, logger.Err(err))
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), PluginSuffix) {
				continue
			}
			name := strings.TrimSuffix(entry.Name(), PluginSuffix)
			if seen[name] {
				continue
			}
			seen[name] = true

			info, err := entry.Info()
			if err != nil {
				continue
			}

			out = append(out, Descriptor{
				Name:    name,
				Path:    filepath.Join(dir, entry.Name()),
				Dir:     dir,
				ModTime: info.ModTime(),
			})
		}
	}

	return out, nil
}

// Watch starts an fsnotify watch on every configured directory and emits a
// Descriptor on the returned channel whenever a rescan surfaces a plugin
// not seen in the previous scan (a debounced re-application of the same
// first-match-wins rule). The channel is closed when ctx is cancelled.
func (sc *Scanner) Watch(ctx context.Context) (<-chan Descriptor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range sc.directories {
		if err := watcher.Add(dir); err != nil {
			logger.Warn("failed to watch plugin directory", "dir", dir, logger.Err(err))
		}
	}

	out := make(chan Descriptor)

	go func() {
		defer close(out)
		defer func() { _ = watcher.Close() }()

		known := make(map[string]bool)
		if initial, err := sc.Scan(); err == nil {
			for _, d := range initial {
				known[d.Name] = true
			}
		}

		const debounce = 200 * time.Millisecond
		var pending bool
		timer := time.NewTimer(time.Hour)
		if !timer.Stop() {
			<-timer.C
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, PluginSuffix) {
					continue
				}
				if !pending {
					pending = true
					timer.Reset(debounce)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("plugin directory watch error", logger.Err(err))
			case <-timer.C:
				pending = false
				descriptors, err := sc.Scan()
				if err != nil {
					continue
				}
				for _, d := range descriptors {
					if known[d.Name] {
						continue
					}
					known[d.Name] = true
					select {
					case out <- d:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}
