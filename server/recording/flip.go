package recording

import (
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonoprep/pkg/progress"
)

// FlipVertical turns every frame file upside down, in place.
// Some scanners store frames with the probe at the bottom. The ledger is not touched.
// A file that fails is logged and skipped. The caller must reload the recording afterwards.
func FlipVertical(log logs.Log, dir Directory, codec Codec, frames *FrameSet, observe Observer) (*BatchResult, error) {
	result := &BatchResult{Total: frames.Len()}
	observe.send(progress.Event{Operation: "flip", Stage: progress.StageStart, Total: frames.Len()})
	for i, fn := range frames.Names {
		if err := codec.FlipVertical(dir.Path(fn)); err != nil {
			log.Errorf("Failed to flip '%v': %v", fn, err)
			result.Failed = append(result.Failed, FileError{Filename: fn, Error: err.Error()})
		} else {
			result.Succeeded++
		}
		observe.send(progress.Event{Operation: "flip", Stage: progress.StageProgress, Done: i + 1, Total: frames.Len(), Current: fn})
	}
	log.Infof("Flipped %v of %v frames", result.Succeeded, result.Total)
	if len(result.Failed) != 0 {
		return result, &BatchError{Op: "Flip", Succeeded: result.Succeeded, Failed: result.Failed}
	}
	return result, nil
}
