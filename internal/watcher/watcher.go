// Package watcher implements the File Watcher: it observes a photon's
// source file for changes and triggers a debounced reload through the
// loader, swapping the active instance only on success.
package watcher

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/photon-run/photon/internal/loader"
	"github.com/photon-run/photon/internal/photon"
	"github.com/photon-run/photon/internal/photonerr"
	"github.com/photon-run/photon/internal/telemetry"
)

// Reloader rebuilds a photon.Instance from its source file.
type Reloader interface {
	Load(ctx context.Context, sourcePath string, configRecord map[string]any) (*loader.Result, error)
}

// Outcome is reported to OnReload after every debounced reload attempt,
// successful or not, so the caller can emit the matching protocol
// notification (tools/list_changed on success, an error notification on
// failure) without the watcher depending on the protocol package.
type Outcome struct {
	Success bool
	Err     error
}

// Watcher debounces fsnotify events on one source file and drives a
// Reloader + photon.Holder swap.
type Watcher struct {
	path         string
	configRecord map[string]any
	reloader     Reloader
	holder       *photon.Holder
	log          telemetry.Logger

	// Debounce is how long to wait after the last filesystem event before
	// reloading, absorbing editors that write a file in several syscalls
	// (spec section 9 open question, resolved in DESIGN.md: 300ms).
	Debounce time.Duration

	OnReload func(Outcome)
}

// New constructs a Watcher for path, whose reloads replace the instance
// held by holder.
func New(path string, configRecord map[string]any, reloader Reloader, holder *photon.Holder, log telemetry.Logger) *Watcher {
	if log == nil {
		log = telemetry.Noop().Log
	}
	return &Watcher{path: path, configRecord: configRecord, reloader: reloader, holder: holder, log: log, Debounce: 300 * time.Millisecond}
}

// Run watches the source file until ctx is cancelled. A watch error (e.g.
// the underlying fsnotify instance hitting an OS resource limit) is
// returned; a reload failure is not fatal and is instead reported through
// OnReload, leaving the last successfully loaded instance in place.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return photonerr.Wrap(photonerr.Internal, err, "create file watcher")
	}
	defer fw.Close()
	if err := fw.Add(w.path); err != nil {
		return photonerr.Wrapf(photonerr.Internal, err, "watch %s", w.path)
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	resetTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(w.Debounce)
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				resetTimer()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn(ctx, "file watcher error", "path", w.path, "error", err.Error())
		case <-timerC:
			timerC = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	result, err := w.reloader.Load(ctx, w.path, w.configRecord)
	if err != nil {
		w.log.Warn(ctx, "reload failed, keeping previous instance", "path", w.path, "error", err.Error())
		if w.OnReload != nil {
			w.OnReload(Outcome{Success: false, Err: err})
		}
		return
	}
	next := photon.New(result)
	prev := w.holder.Swap(next)
	if prev != nil {
		_ = prev.Close()
	}
	w.log.Info(ctx, "reloaded photon", "path", w.path)
	if w.OnReload != nil {
		w.OnReload(Outcome{Success: true})
	}
}
