// Package framename parses and formats recording frame filenames.
//
// A frame file is named "<seq>-<timestamp>.<ext>", for example "17-1698059181433.png".
// seq is the 1-based position of the frame in the recording, and timestamp is the
// capture time in milliseconds. Renumbering a recording changes seq, but never the
// rest of the name.
package framename

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/maruel/natural"
)

// Name is a parsed frame filename
type Name struct {
	Seq       int    // 1-based sequence number
	Rest      string // Everything after the first '-', including the extension (eg "1698059181433.png")
	Timestamp int64  // Capture time in milliseconds, or 0 if the rest of the name is not numeric
	Ext       string // Extension without the dot (eg "png")
}

// Parse a frame filename such as "3-1698059181433.png".
// The sequence number must be a positive integer written without sign or leading zeros,
// so that String returns the filename unchanged. The timestamp is optional in the sense
// that a non-numeric remainder is preserved in Rest, but Timestamp is then zero.
func Parse(filename string) (Name, error) {
	seqStr, rest, ok := strings.Cut(filename, "-")
	if !ok || rest == "" {
		return Name{}, fmt.Errorf("Frame filename '%v' is not of the form '<seq>-<timestamp>.<ext>'", filename)
	}
	seq, err := strconv.Atoi(seqStr)
	if err != nil || seq < 1 || strconv.Itoa(seq) != seqStr {
		return Name{}, fmt.Errorf("Frame filename '%v' has an invalid sequence number '%v'", filename, seqStr)
	}
	n := Name{
		Seq:  seq,
		Rest: rest,
	}
	stamp, ext, _ := strings.Cut(rest, ".")
	n.Ext = ext
	n.Timestamp, _ = strconv.ParseInt(stamp, 10, 64)
	return n, nil
}

// String returns the filename
func (n Name) String() string {
	return strconv.Itoa(n.Seq) + "-" + n.Rest
}

// WithSeq returns a copy of the name, with a different sequence number
func (n Name) WithSeq(seq int) Name {
	n.Seq = seq
	return n
}

// HasExt returns true if the filename ends with ".<ext>", ignoring case
func HasExt(filename, ext string) bool {
	return strings.HasSuffix(strings.ToLower(filename), "."+strings.ToLower(ext))
}

// Sort sorts filenames in natural order, so that "10-..." comes after "9-...".
func Sort(names []string) {
	sort.Sort(natural.StringSlice(names))
}
