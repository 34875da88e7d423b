// engine_watch.go - Hot reload: reissue load-wasm when the engine file changes

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const WATCH_DEBOUNCE = 150 * time.Millisecond

// EngineWatcher reloads the engine whenever its module file is rewritten.
// Editors and build tools fire several events per save, so reloads are
// debounced; each reload goes through the normal load-wasm path and the
// atomic binding swap, never interrupting the render loop.
type EngineWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func WatchEngineFile(path string, bridge *Bridge) (*EngineWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files by rename, which drops a
	// watch held on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	ew := &EngineWatcher{
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go ew.run(path, bridge)
	return ew, nil
}

func (ew *EngineWatcher) run(path string, bridge *Bridge) {
	defer close(ew.done)

	var debounce *time.Timer
	var fire <-chan time.Time
	target := filepath.Clean(path)

	for {
		select {
		case event, ok := <-ew.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(WATCH_DEBOUNCE)
			} else {
				debounce.Reset(WATCH_DEBOUNCE)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			blob, err := os.ReadFile(path)
			if err != nil {
				bridge.log.Warnw("engine reload skipped", "path", path, "error", err)
				continue
			}
			bridge.log.Infow("engine file changed, reloading", "path", path)
			bridge.LoadEngine(blob)

		case err, ok := <-ew.watcher.Errors:
			if !ok {
				return
			}
			bridge.log.Warnw("engine watch error", "error", err)
		}
	}
}

// Close stops watching. Blocks until the watch goroutine exits.
func (ew *EngineWatcher) Close() {
	ew.watcher.Close()
	<-ew.done
}
