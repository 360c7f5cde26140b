package recording

import (
	"errors"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonoprep/pkg/framename"
	"github.com/cyclopcam/sonoprep/pkg/ledger"
	"github.com/cyclopcam/sonoprep/pkg/progress"
)

// RemoveResult reports what RemoveDuplicates did
type RemoveResult struct {
	Requested int         `json:"requested"` // Number of distinct duplicate files
	Deleted   int         `json:"deleted"`   // Number of files deleted, along with their ledger records
	Failed    []FileError `json:"failed"`    // Files that could not be deleted. Their ledger records are kept.
	Renamed   int         `json:"renamed"`   // Number of files renamed to close the gaps
}

// RemoveDuplicates deletes the later frame of every candidate, along with its ledger record,
// and then renumbers the remaining frames and records so that their numbers run from 1 to n
// without gaps.
//
// Before anything is deleted, every duplicate frame must have exactly one ledger record with
// its number, and the ledger must have one record per frame. Otherwise a consistency error is
// returned and nothing on disk is touched.
//
// A file that cannot be deleted is logged and skipped, and the rest of the batch carries on.
// A rename failure stops the renumbering. In both cases the ledger is still rewritten so that
// every record carries the number of its file as it is now on disk, and a *BatchError or I/O
// error is returned. The caller must reload the recording afterwards, whatever the outcome.
func RemoveDuplicates(log logs.Log, dir Directory, opt LoadOptions, candidates []Candidate, frames *FrameSet, led *ledger.Ledger, observe Observer) (*RemoveResult, error) {
	result := &RemoveResult{}
	if len(candidates) == 0 {
		return result, nil
	}

	// A frame can be the later half of two candidates, so delete each file once
	later := []framename.Name{}
	seen := map[string]bool{}
	for _, c := range candidates {
		if seen[c.Later] {
			continue
		}
		seen[c.Later] = true
		n, err := framename.Parse(c.Later)
		if err != nil {
			return result, validationError("Invalid duplicate '%v': %v", c.Later, err)
		}
		later = append(later, n)
	}
	result.Requested = len(later)

	if err := checkCorrespondence(frames, led); err != nil {
		return result, err
	}
	loaded := map[string]bool{}
	for _, fn := range frames.Names {
		loaded[fn] = true
	}
	for _, n := range later {
		if !loaded[n.String()] {
			return result, consistencyError("Duplicate '%v' is not a frame of the loaded recording", n)
		}
		if _, err := led.Find(n.Seq); err != nil {
			return result, newError(KindConsistency, err, "Frame '%v' cannot be matched to a ledger record", n)
		}
	}

	// Delete
	work := led.Clone()
	observe.send(progress.Event{Operation: "removeDuplicates", Stage: progress.StageStart, Total: len(later)})
	for i, n := range later {
		fn := n.String()
		idx, err := work.Find(n.Seq)
		if err != nil {
			// Unreachable after the checks above, unless the ledger was edited behind our back
			return result, newError(KindConsistency, err, "Frame '%v' cannot be matched to a ledger record", fn)
		}
		if err := dir.Delete(fn); err != nil {
			log.Errorf("Failed to delete duplicate '%v': %v", fn, err)
			result.Failed = append(result.Failed, FileError{Filename: fn, Error: err.Error()})
		} else {
			log.Infof("Deleted duplicate '%v'", fn)
			work.Remove(idx)
			result.Deleted++
		}
		observe.send(progress.Event{Operation: "removeDuplicates", Stage: progress.StageProgress, Done: i + 1, Total: len(later), Current: fn})
	}

	// Renumber
	renameErr := renumber(log, dir, opt, work, result)

	work.SortByID()
	if err := writeLedger(dir, opt.LedgerName, work); err != nil {
		return result, errors.Join(renameErr, err)
	}
	log.Infof("Removed %v of %v duplicates, renamed %v files", result.Deleted, result.Requested, result.Renamed)

	if renameErr != nil {
		return result, renameErr
	}
	if len(result.Failed) != 0 {
		return result, &BatchError{Op: "Remove duplicates", Succeeded: result.Deleted, Failed: result.Failed}
	}
	return result, nil
}

// renumber renames the frames on disk to 1..n, and rewrites the ledger records of the
// files that were actually renamed.
func renumber(log logs.Log, dir Directory, opt LoadOptions, led *ledger.Ledger, result *RemoveResult) error {
	names, err := listFrames(log, dir, opt.Ext)
	if err != nil {
		return err
	}
	mapping := map[int]int{}
	var renameErr error
	for i, n := range names {
		seq := i + 1
		if n.Seq != seq {
			to := n.WithSeq(seq)
			if err := dir.Rename(n.String(), to.String()); err != nil {
				renameErr = ioError(err, "Renumbering stopped at '%v'", n)
				log.Errorf("%v", renameErr)
				break
			}
			result.Renamed++
		}
		mapping[n.Seq] = seq
	}
	led.Renumber(mapping)
	return renameErr
}

// checkCorrespondence verifies that frame numbers are unique, and that there is one ledger record per frame
func checkCorrespondence(frames *FrameSet, led *ledger.Ledger) error {
	if led.Len() != frames.Len() {
		return consistencyError("The ledger has %v records, but there are %v frames", led.Len(), frames.Len())
	}
	bySeq := map[int]string{}
	for _, f := range frames.Frames {
		if other, ok := bySeq[f.Name.Seq]; ok {
			return consistencyError("Frames '%v' and '%v' have the same number", other, f.Filename)
		}
		bySeq[f.Name.Seq] = f.Filename
	}
	return nil
}
