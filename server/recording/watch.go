package recording

import (
	"slices"

	"github.com/fsnotify/fsnotify"
)

// watcher notices when somebody else changes the recording directory.
// It never patches the loaded state. It only marks the recording as stale, so that
// the user knows to reload it.
type watcher struct {
	fsw  *fsnotify.Watcher
	done chan bool
}

func (r *Recording) startWatcher(root string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return err
	}
	w := &watcher{
		fsw:  fsw,
		done: make(chan bool),
	}
	r.lock.Lock()
	r.watcher = w
	r.lock.Unlock()
	go func() {
		defer close(w.done)
		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					r.checkStale()
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				r.log.Warnf("Directory watcher error: %v", err)
			}
		}
	}()
	return nil
}

// The event loop may be waiting for r.lock inside checkStale, so we must not hold it here
func (r *Recording) stopWatcher() {
	r.lock.Lock()
	w := r.watcher
	r.watcher = nil
	r.lock.Unlock()
	if w == nil {
		return
	}
	w.fsw.Close()
	<-w.done
}

// checkStale compares the frame files on disk with the ones we loaded.
// Changes made by our own operations are ignored, because those reload before they finish.
func (r *Recording) checkStale() {
	if !r.gate.Enabled() {
		return
	}
	r.lock.Lock()
	dir := r.dir
	listed := r.listed
	wasStale := r.stale
	r.lock.Unlock()
	if dir == nil || wasStale {
		return
	}

	names, err := listFrames(r.log, dir, r.opt.Load.Ext)
	if err != nil {
		r.log.Warnf("Failed to re-list '%v': %v", dir.Root(), err)
		return
	}
	now := make([]string, len(names))
	for i, n := range names {
		now[i] = n.String()
	}
	if slices.Equal(now, listed) {
		return
	}

	r.lock.Lock()
	stale := r.dir == dir && !r.stale
	if stale {
		r.stale = true
	}
	r.lock.Unlock()
	if stale {
		r.log.Warnf("Frames in '%v' were changed by another program. The recording must be reloaded", dir.Root())
		r.Progress.Send(progressStale(dir.Root()))
	}
}
