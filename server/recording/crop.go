package recording

import (
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonoprep/pkg/framex"
	"github.com/cyclopcam/sonoprep/pkg/ledger"
	"github.com/cyclopcam/sonoprep/pkg/progress"
)

// CropParams control cropping
type CropParams struct {
	ROI          framex.Rect `json:"roi"`
	ScanHeightMM int         `json:"scanHeightMM"` // Physical height of the cropped region
	ScanWidthMM  int         `json:"scanWidthMM"`  // Physical width of the cropped region
}

// BatchResult reports the outcome of an operation that rewrites every frame file
type BatchResult struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    []FileError `json:"failed"`
}

// validateCrop checks everything that can be checked before touching a file
func validateCrop(frames *FrameSet, led *ledger.Ledger, params CropParams) error {
	if params.ScanHeightMM <= 0 || params.ScanWidthMM <= 0 {
		return validationError("Scan dimensions must be positive, not %v x %v mm", params.ScanWidthMM, params.ScanHeightMM)
	}
	for _, f := range frames.Frames {
		if err := params.ROI.Check(f.Image.Width, f.Image.Height); err != nil {
			return validationError("Frame '%v': %v", f.Filename, err)
		}
	}
	if err := checkCorrespondence(frames, led); err != nil {
		return err
	}
	for _, f := range frames.Frames {
		idx, err := led.Find(f.Name.Seq)
		if err != nil {
			return newError(KindConsistency, err, "Frame '%v' cannot be matched to a ledger record", f.Filename)
		}
		if n := len(led.Records[idx].Fields()); n < ledger.MinFields {
			return consistencyError("The ledger record of frame '%v' has %v fields, but at least %v are needed", f.Filename, n, ledger.MinFields)
		}
	}
	return nil
}

// Crop cuts every frame file down to the region of interest, in place, and then writes the new
// dimensions into the ledger records of the frames that were cropped.
//
// All input is validated before the first file is touched. The region must lie inside every
// frame. If a single file fails, it is logged and the batch carries on, and a *BatchError is
// returned along with the result. The caller must reload the recording afterwards.
func Crop(log logs.Log, dir Directory, codec Codec, opt LoadOptions, frames *FrameSet, led *ledger.Ledger, params CropParams, observe Observer) (*BatchResult, error) {
	if err := validateCrop(frames, led, params); err != nil {
		return nil, err
	}

	result := &BatchResult{Total: frames.Len()}
	cropped := []int{}
	observe.send(progress.Event{Operation: "crop", Stage: progress.StageStart, Total: frames.Len()})
	for i, f := range frames.Frames {
		if err := codec.Crop(dir.Path(f.Filename), params.ROI); err != nil {
			log.Errorf("Failed to crop '%v': %v", f.Filename, err)
			result.Failed = append(result.Failed, FileError{Filename: f.Filename, Error: err.Error()})
		} else {
			result.Succeeded++
			cropped = append(cropped, f.Name.Seq)
		}
		observe.send(progress.Event{Operation: "crop", Stage: progress.StageProgress, Done: i + 1, Total: frames.Len(), Current: f.Filename})
	}
	log.Infof("Cropped %v of %v frames to %v", result.Succeeded, result.Total, params.ROI)

	dims := ledger.Dimensions{
		Width:        params.ROI.Width(),
		Height:       params.ROI.Height(),
		ScanHeightMM: params.ScanHeightMM,
		ScanWidthMM:  params.ScanWidthMM,
	}
	if err := updateDimensions(dir, opt, cropped, dims); err != nil {
		return result, err
	}

	if len(result.Failed) != 0 {
		return result, &BatchError{Op: "Crop", Succeeded: result.Succeeded, Failed: result.Failed}
	}
	return result, nil
}

// updateDimensions re-reads the ledger from disk, and writes the dimensions into the records
// of the given frames. If frameSeqs is nil, every record is updated.
func updateDimensions(dir Directory, opt LoadOptions, frameSeqs []int, dims ledger.Dimensions) error {
	led, err := readLedger(dir, opt.LedgerName)
	if err != nil {
		return err
	}
	if frameSeqs == nil {
		for i, r := range led.Records {
			if led.Records[i], err = r.WithDimensions(dims); err != nil {
				return newError(KindConsistency, err, "Ledger record %v", i+1)
			}
		}
	} else {
		for _, seq := range frameSeqs {
			idx, err := led.Find(seq)
			if err != nil {
				return newError(KindConsistency, err, "Failed to update the dimensions of frame %v", seq)
			}
			if led.Records[idx], err = led.Records[idx].WithDimensions(dims); err != nil {
				return newError(KindConsistency, err, "Ledger record of frame %v", seq)
			}
		}
	}
	return writeLedger(dir, opt.LedgerName, led)
}
