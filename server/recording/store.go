package recording

import (
	"errors"
	"fmt"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonoprep/pkg/framename"
	"github.com/cyclopcam/sonoprep/pkg/framex"
	"github.com/cyclopcam/sonoprep/pkg/ledger"
	"github.com/cyclopcam/sonoprep/pkg/progress"
)

// Directory is the recording directory on disk
type Directory interface {
	Root() string
	Path(name string) string
	List(ext string) ([]string, error) // Names of all files with the given extension, in any order
	Rename(oldName, newName string) error
	Delete(name string) error
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error // Replaces the whole file atomically
}

// Codec decodes and rewrites frame files
type Codec interface {
	Decode(path string) (*cimg.Image, error)
	Crop(path string, r framex.Rect) error
	FlipVertical(path string) error
}

// Observer receives progress reports. It may be nil.
type Observer func(ev progress.Event)

func (o Observer) send(ev progress.Event) {
	if o != nil {
		o(ev)
	}
}

// Frame is one decoded frame of a recording
type Frame struct {
	Name     framename.Name
	Filename string
	Image    *cimg.Image // Always RGB
}

// FrameSet is the ordered list of frames of a recording.
// Names[i] is the filename of Frames[i].
type FrameSet struct {
	Names  []string
	Frames []*Frame
}

func (fs *FrameSet) Len() int {
	return len(fs.Frames)
}

// Details summarizes a loaded recording
type Details struct {
	Frames     int     `json:"frames"`
	DurationMS int64   `json:"durationMS"` // Last timestamp minus first timestamp
	FPS        float64 `json:"fps"`        // Frames per second over the whole duration, or 0 if unknown
	Width      int     `json:"width"`      // Of the first frame
	Height     int     `json:"height"`     // Of the first frame
}

// LoadOptions describe the layout of a recording directory
type LoadOptions struct {
	Ext        string // Frame file extension, without the dot (eg "png")
	LedgerName string // Name of the ledger file (eg "data.txt")
}

// DefaultLoadOptions matches the files written by the scanner software
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Ext:        "png",
		LedgerName: "data.txt",
	}
}

// listFrames returns the parsed names of all frame files in the directory, in sequence order.
// Files with the right extension, but not of the form "<seq>-<timestamp>", are skipped.
func listFrames(log logs.Log, dir Directory, ext string) ([]framename.Name, error) {
	all, err := dir.List(ext)
	if err != nil {
		return nil, ioError(err, "Failed to list frames in '%v'", dir.Root())
	}
	framename.Sort(all)
	names := make([]framename.Name, 0, len(all))
	for _, fn := range all {
		n, err := framename.Parse(fn)
		if err != nil {
			log.Debugf("Ignoring file '%v': %v", fn, err)
			continue
		}
		names = append(names, n)
	}
	return names, nil
}

func readLedger(dir Directory, name string) (*ledger.Ledger, error) {
	raw, err := dir.ReadFile(name)
	if err != nil {
		return nil, ioError(err, "Failed to read ledger '%v'", dir.Path(name))
	}
	return ledger.Parse(raw), nil
}

func writeLedger(dir Directory, name string, l *ledger.Ledger) error {
	if err := dir.WriteFile(name, l.Bytes()); err != nil {
		return ioError(err, "Failed to write ledger '%v'", dir.Path(name))
	}
	return nil
}

// LoadFrameSet reads every frame and the ledger of a recording.
// A frame that cannot be read or decoded is left out of the frame set and reported
// in the returned file errors. Failure to list the directory or read the ledger
// is fatal.
func LoadFrameSet(log logs.Log, dir Directory, codec Codec, opt LoadOptions, observe Observer) (*FrameSet, *ledger.Ledger, []FileError, error) {
	start := time.Now()
	names, err := listFrames(log, dir, opt.Ext)
	if err != nil {
		return nil, nil, nil, err
	}
	led, err := readLedger(dir, opt.LedgerName)
	if err != nil {
		return nil, nil, nil, err
	}

	fs := &FrameSet{}
	var fileErrors []FileError
	observe.send(progress.Event{Operation: "load", Stage: progress.StageStart, Total: len(names)})
	for i, n := range names {
		fn := n.String()
		img, err := codec.Decode(dir.Path(fn))
		if err != nil {
			if errors.Is(err, framex.ErrUndecodable) {
				err = newError(KindDecode, err, "Failed to decode '%v'", fn)
			} else {
				err = ioError(err, "Failed to read '%v'", fn)
			}
			log.Errorf("%v", err)
			fileErrors = append(fileErrors, FileError{Filename: fn, Error: err.Error()})
			continue
		}
		fs.Names = append(fs.Names, fn)
		fs.Frames = append(fs.Frames, &Frame{
			Name:     n,
			Filename: fn,
			Image:    img,
		})
		observe.send(progress.Event{Operation: "load", Stage: progress.StageProgress, Done: i + 1, Total: len(names), Current: fn})
	}
	log.Infof("Loaded %v frames and %v ledger records from '%v' in %v", fs.Len(), led.Len(), dir.Root(), time.Since(start).Truncate(time.Millisecond))
	return fs, led, fileErrors, nil
}

// ComputeDetails summarizes a frame set
func ComputeDetails(fs *FrameSet) Details {
	d := Details{
		Frames: fs.Len(),
	}
	if fs.Len() == 0 {
		return d
	}
	first := fs.Frames[0]
	d.Width = first.Image.Width
	d.Height = first.Image.Height
	d.DurationMS = fs.Frames[fs.Len()-1].Name.Timestamp - first.Name.Timestamp
	if d.DurationMS > 0 {
		d.FPS = float64(fs.Len()) * 1000 / float64(d.DurationMS)
	}
	return d
}

func (d Details) String() string {
	return fmt.Sprintf("%v frames, %.1f seconds, %.1f FPS, %v x %v", d.Frames, float64(d.DurationMS)/1000, d.FPS, d.Width, d.Height)
}
