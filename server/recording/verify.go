package recording

import "github.com/cyclopcam/sonoprep/pkg/ledger"

// Verify checks that the frames are numbered 1..n in order, and that ledger record i
// belongs to frame i.
func Verify(frames *FrameSet, led *ledger.Ledger) error {
	for i, f := range frames.Frames {
		if f.Name.Seq != i+1 {
			return consistencyError("Frame %v is named '%v'. Expected its number to be %v", i+1, f.Filename, i+1)
		}
	}
	if led.Len() != frames.Len() {
		return consistencyError("The ledger has %v records, but there are %v frames", led.Len(), frames.Len())
	}
	ids, err := led.IDs()
	if err != nil {
		return newError(KindConsistency, err, "Invalid ledger")
	}
	for i, id := range ids {
		if id != frames.Frames[i].Name.Seq {
			return consistencyError("Ledger record %v is for frame %v, but frame %v is '%v'", i+1, id, i+1, frames.Frames[i].Filename)
		}
	}
	return nil
}
