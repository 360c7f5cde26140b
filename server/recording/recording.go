// Package recording maintains a directory of ultrasound frames and its ledger.
//
// A recording directory holds frame images named "<seq>-<timestamp>.png", and a ledger
// file (data.txt) with one row per frame. Frame numbers run from 1 to n, and ledger row i
// starts with the number of frame i. Every operation here keeps it that way.
//
// The directory is the truth. A Recording holds a decoded copy of it, which is thrown
// away and read again after every operation that changes the directory, whether or not
// the operation succeeded. Only one operation runs at a time (see Gate).
package recording

import (
	"errors"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonoprep/pkg/dirfs"
	"github.com/cyclopcam/sonoprep/pkg/framex"
	"github.com/cyclopcam/sonoprep/pkg/ledger"
	"github.com/cyclopcam/sonoprep/pkg/progress"
)

// Journal records every operation and its outcome
type Journal interface {
	Begin(op, directory string, params any) int64
	Finish(id int64, result any, err error)
}

// Options for a Recording
type Options struct {
	Load    LoadOptions
	Codec   Codec   // Defaults to framex.Codec
	Journal Journal // May be nil
	Watch   bool    // Watch the directory for changes made by other programs

	// Defaults to dirfs.Open. Tests replace this to inject failures.
	OpenDirectory func(log logs.Log, root string) (Directory, error)
}

// Status is a snapshot of a Recording
type Status struct {
	Directory  string      `json:"directory"`
	Loaded     bool        `json:"loaded"`
	Details    Details     `json:"details"`
	State      GateState   `json:"state"`
	Operation  string      `json:"operation"` // Current or most recent operation
	LastError  string      `json:"lastError,omitempty"`
	Enabled    bool        `json:"enabled"` // False while an operation is running
	Stale      bool        `json:"stale"`   // The directory was changed by another program
	Duplicates int         `json:"duplicates"`
	LoadErrors []FileError `json:"loadErrors"`
}

// Recording is the working session on one recording directory
type Recording struct {
	Progress progress.Sender

	log  logs.Log
	opt  Options
	gate Gate

	lock       sync.Mutex // Guards everything below
	dir        Directory
	frames     *FrameSet
	ledger     *ledger.Ledger
	listed     []string // Frame files on disk at the last load, including undecodable ones
	loadErrors []FileError
	duplicates []Candidate
	stale      bool
	watcher    *watcher
}

// New creates an empty session. Call Load to open a directory.
func New(log logs.Log, opt Options) *Recording {
	if opt.Load.Ext == "" || opt.Load.LedgerName == "" {
		def := DefaultLoadOptions()
		if opt.Load.Ext == "" {
			opt.Load.Ext = def.Ext
		}
		if opt.Load.LedgerName == "" {
			opt.Load.LedgerName = def.LedgerName
		}
	}
	if opt.Codec == nil {
		opt.Codec = &framex.Codec{}
	}
	if opt.OpenDirectory == nil {
		opt.OpenDirectory = func(log logs.Log, root string) (Directory, error) {
			return dirfs.Open(log, root)
		}
	}
	return &Recording{
		log: log,
		opt: opt,
	}
}

// Close stops the directory watcher
func (r *Recording) Close() {
	r.stopWatcher()
}

func (r *Recording) observer() Observer {
	return func(ev progress.Event) {
		r.Progress.Send(ev)
	}
}

func progressStale(root string) progress.Event {
	return progress.Event{Operation: "watch", Stage: progress.StageStale, Message: root}
}

func (r *Recording) begin(op string, params any) (int64, error) {
	if err := r.gate.Begin(op); err != nil {
		return 0, err
	}
	var id int64
	if r.opt.Journal != nil {
		id = r.opt.Journal.Begin(op, r.Directory(), params)
	}
	return id, nil
}

func (r *Recording) end(op string, id int64, result any, err error) {
	if r.opt.Journal != nil {
		r.opt.Journal.Finish(id, result, err)
	}
	ev := progress.Event{Operation: op, Stage: progress.StageDone}
	if err != nil {
		ev.Stage = progress.StageFailed
		ev.Message = err.Error()
		r.log.Warnf("%v failed: %v", op, err)
	}
	r.gate.End(err)
	r.Progress.Send(ev)
}

// loaded returns the current state, or ErrNotLoaded
func (r *Recording) loaded() (Directory, *FrameSet, *ledger.Ledger, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.frames == nil {
		return nil, nil, nil, ErrNotLoaded
	}
	return r.dir, r.frames, r.ledger, nil
}

// reload re-reads the directory, replacing all loaded state
func (r *Recording) reload(dir Directory) error {
	frames, led, loadErrors, err := LoadFrameSet(r.log, dir, r.opt.Codec, r.opt.Load, r.observer())
	var listed []string
	if err == nil {
		if names, listErr := listFrames(r.log, dir, r.opt.Load.Ext); listErr == nil {
			for _, n := range names {
				listed = append(listed, n.String())
			}
		}
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.dir = dir
	r.frames = frames
	r.ledger = led
	r.listed = listed
	r.loadErrors = loadErrors
	r.duplicates = nil
	r.stale = false
	return err
}

// reloadAfter reloads after a mutation, and combines any reload error with the mutation's error
func (r *Recording) reloadAfter(dir Directory, err error) error {
	if loadErr := r.reload(dir); loadErr != nil {
		return errors.Join(err, loadErr)
	}
	return err
}

// Directory returns the root of the loaded directory, or "" if nothing is loaded
func (r *Recording) Directory() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.dir == nil {
		return ""
	}
	return r.dir.Root()
}

// Load opens a recording directory. Any previously loaded recording is discarded,
// even if loading the new one fails.
// Frames that cannot be decoded do not fail the load. They are listed in Status().LoadErrors.
func (r *Recording) Load(root string) (Details, error) {
	id, err := r.begin("load", map[string]string{"directory": root})
	if err != nil {
		return Details{}, err
	}
	r.stopWatcher()

	details := Details{}
	dir, err := r.opt.OpenDirectory(r.log, root)
	if err != nil {
		err = ioError(err, "Failed to open '%v'", root)
		r.lock.Lock()
		r.dir, r.frames, r.ledger, r.listed, r.loadErrors, r.duplicates = nil, nil, nil, nil, nil, nil
		r.lock.Unlock()
	} else {
		err = r.reload(dir)
		if err == nil {
			_, frames, _, _ := r.loaded()
			details = ComputeDetails(frames)
			r.log.Infof("Recording '%v': %v", dir.Root(), details)
			if r.opt.Watch {
				if watchErr := r.startWatcher(dir.Root()); watchErr != nil {
					r.log.Warnf("Unable to watch '%v' for changes: %v", dir.Root(), watchErr)
				}
			}
		}
	}
	r.end("load", id, details, err)
	return details, err
}

// Detect finds duplicate frames, and remembers them for RemoveDuplicates.
// Nothing on disk changes.
func (r *Recording) Detect(params DetectParams) ([]Candidate, error) {
	id, err := r.begin("detect", params)
	if err != nil {
		return nil, err
	}
	var candidates []Candidate
	_, frames, _, err := r.loaded()
	if err == nil {
		candidates, err = Detect(frames, params, r.observer())
	}
	if err == nil {
		r.lock.Lock()
		r.duplicates = candidates
		r.lock.Unlock()
		r.log.Infof("Found %v duplicate frames", len(candidates))
	}
	r.end("detect", id, map[string]int{"duplicates": len(candidates)}, err)
	return candidates, err
}

// Duplicates returns the result of the last Detect.
// It is empty after any operation that reloads the recording.
func (r *Recording) Duplicates() []Candidate {
	r.lock.Lock()
	defer r.lock.Unlock()
	c := make([]Candidate, len(r.duplicates))
	copy(c, r.duplicates)
	return c
}

// RemoveDuplicates deletes the duplicates found by the last Detect, renumbers the
// remaining frames and ledger records, reloads, and verifies the result.
func (r *Recording) RemoveDuplicates() (*RemoveResult, error) {
	id, err := r.begin("removeDuplicates", nil)
	if err != nil {
		return nil, err
	}
	var result *RemoveResult
	dir, frames, led, err := r.loaded()
	if err == nil {
		candidates := r.Duplicates()
		result, err = RemoveDuplicates(r.log, dir, r.opt.Load, candidates, frames, led, r.observer())
		err = r.reloadAfter(dir, err)
		if err == nil && len(candidates) != 0 {
			err = r.verifyLoaded()
		}
	}
	r.end("removeDuplicates", id, result, err)
	return result, err
}

// Crop cuts every frame down to the region of interest, updates the ledger, and reloads
func (r *Recording) Crop(params CropParams) (*BatchResult, error) {
	id, err := r.begin("crop", params)
	if err != nil {
		return nil, err
	}
	var result *BatchResult
	dir, frames, led, err := r.loaded()
	if err == nil {
		result, err = Crop(r.log, dir, r.opt.Codec, r.opt.Load, frames, led, params, r.observer())
		if ErrorKind(err) != KindValidation {
			err = r.reloadAfter(dir, err)
		}
	}
	r.end("crop", id, result, err)
	return result, err
}

// FlipVertical turns every frame upside down, and reloads
func (r *Recording) FlipVertical() (*BatchResult, error) {
	id, err := r.begin("flip", nil)
	if err != nil {
		return nil, err
	}
	var result *BatchResult
	dir, frames, _, err := r.loaded()
	if err == nil {
		result, err = FlipVertical(r.log, dir, r.opt.Codec, frames, r.observer())
		err = r.reloadAfter(dir, err)
	}
	r.end("flip", id, result, err)
	return result, err
}

// UpdateLedger writes the size of the first frame, and the given scan dimensions, into
// every ledger record, and reloads.
func (r *Recording) UpdateLedger(scanHeightMM, scanWidthMM int) error {
	params := map[string]int{"scanHeightMM": scanHeightMM, "scanWidthMM": scanWidthMM}
	id, err := r.begin("updateLedger", params)
	if err != nil {
		return err
	}
	dir, frames, _, err := r.loaded()
	if err == nil {
		if scanHeightMM <= 0 || scanWidthMM <= 0 {
			err = validationError("Scan dimensions must be positive, not %v x %v mm", scanWidthMM, scanHeightMM)
		} else if frames.Len() == 0 {
			err = validationError("The recording has no frames")
		} else {
			dims := ledger.Dimensions{
				Width:        frames.Frames[0].Image.Width,
				Height:       frames.Frames[0].Image.Height,
				ScanHeightMM: scanHeightMM,
				ScanWidthMM:  scanWidthMM,
			}
			err = r.reloadAfter(dir, updateDimensions(dir, r.opt.Load, nil, dims))
		}
	}
	r.end("updateLedger", id, nil, err)
	return err
}

// Verify checks that the loaded frames and ledger correspond
func (r *Recording) Verify() error {
	id, err := r.begin("verify", nil)
	if err != nil {
		return err
	}
	err = r.verifyLoaded()
	r.end("verify", id, nil, err)
	return err
}

func (r *Recording) verifyLoaded() error {
	_, frames, led, err := r.loaded()
	if err != nil {
		return err
	}
	return Verify(frames, led)
}

// Frame returns one loaded frame. Frames are never modified, so the caller may keep it.
func (r *Recording) Frame(index int) (*Frame, error) {
	if !r.gate.Enabled() {
		return nil, ErrBusy
	}
	_, frames, _, err := r.loaded()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= frames.Len() {
		return nil, validationError("Frame index %v is out of range (the recording has %v frames)", index, frames.Len())
	}
	return frames.Frames[index], nil
}

// Status returns a snapshot of the session
func (r *Recording) Status() Status {
	state, op, lastErr := r.gate.State()
	s := Status{
		State:     state,
		Operation: op,
		Enabled:   state != GateRunning,
	}
	if lastErr != nil {
		s.LastError = lastErr.Error()
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.dir != nil {
		s.Directory = r.dir.Root()
	}
	if r.frames != nil {
		s.Loaded = true
		s.Details = ComputeDetails(r.frames)
	}
	s.Stale = r.stale
	s.Duplicates = len(r.duplicates)
	s.LoadErrors = append([]FileError{}, r.loadErrors...)
	return s
}
