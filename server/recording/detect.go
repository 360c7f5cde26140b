package recording

import (
	"errors"
	"fmt"
	"image"

	"github.com/cyclopcam/sonoprep/pkg/framex"
	"github.com/cyclopcam/sonoprep/pkg/progress"
	"github.com/cyclopcam/sonoprep/pkg/ssim"
)

// Candidate is a pair of frames where Later is a pixel-identical copy of Earlier
type Candidate struct {
	Earlier string `json:"earlier"`
	Later   string `json:"later"`
}

// DetectParams control duplicate detection
type DetectParams struct {
	Window int          `json:"window"` // How many following frames each frame is compared against
	ROI    *framex.Rect `json:"roi"`    // If not nil, only this region of each frame is compared
}

// Detect finds frames that are identical to an earlier frame at most Window frames before them.
// Frames are identical when their SSIM is exactly 1. For each frame, only the first identical
// frame inside its window is reported.
func Detect(frames *FrameSet, params DetectParams, observe Observer) ([]Candidate, error) {
	if params.Window < 1 {
		return nil, validationError("Detection window must be at least 1, not %v", params.Window)
	}
	n := frames.Len()
	if params.ROI != nil {
		for _, f := range frames.Frames {
			if err := params.ROI.Check(f.Image.Width, f.Image.Height); err != nil {
				return nil, validationError("Frame '%v': %v", f.Filename, err)
			}
		}
	}
	for _, f := range frames.Frames {
		w, h := f.Image.Width, f.Image.Height
		if params.ROI != nil {
			w, h = params.ROI.Width(), params.ROI.Height()
		}
		if w < ssim.WindowSize || h < ssim.WindowSize {
			return nil, validationError("Frame '%v' is %v x %v, which is too small to compare (the minimum is %v x %v)", f.Filename, w, h, ssim.WindowSize, ssim.WindowSize)
		}
	}

	// Each frame is compared against up to Window others, so keep the grayscale versions
	// of the frames that are still inside the window.
	gray := make([]*image.Gray, n)
	getGray := func(i int) (*image.Gray, error) {
		if gray[i] == nil {
			g, err := framex.Gray(frames.Frames[i].Image, params.ROI)
			if err != nil {
				return nil, fmt.Errorf("Frame '%v': %w", frames.Names[i], err)
			}
			gray[i] = g
		}
		return gray[i], nil
	}

	candidates := []Candidate{}
	observe.send(progress.Event{Operation: "detect", Stage: progress.StageStart, Total: max(n-1, 0)})
	for i := 0; i < n-1; i++ {
		a, err := getGray(i)
		if err != nil {
			return nil, err
		}
		for j := i + 1; j <= i+params.Window && j < n; j++ {
			observe.send(progress.Event{
				Operation:  "detect",
				Stage:      progress.StageProgress,
				Done:       i,
				Total:      n - 1,
				Duplicates: len(candidates),
				Current:    frames.Names[i],
				Compare:    frames.Names[j],
			})
			b, err := getGray(j)
			if err != nil {
				return nil, err
			}
			score, err := ssim.Compare(a, b)
			if errors.Is(err, ssim.ErrShapeMismatch) {
				continue
			} else if err != nil {
				return nil, fmt.Errorf("Failed to compare '%v' and '%v': %w", frames.Names[i], frames.Names[j], err)
			}
			if score == 1 {
				candidates = append(candidates, Candidate{Earlier: frames.Names[i], Later: frames.Names[j]})
				break
			}
		}
		gray[i] = nil
	}
	observe.send(progress.Event{Operation: "detect", Stage: progress.StageDone, Done: max(n-1, 0), Total: max(n-1, 0), Duplicates: len(candidates)})
	return candidates, nil
}
