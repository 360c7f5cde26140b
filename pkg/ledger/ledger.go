// Package ledger reads and writes the per-frame metadata file of a recording (data.txt).
//
// The ledger has one comma-delimited text row per frame. The first field starts with the
// frame's sequence number, followed by '-' and the frame's timestamp, exactly like the
// frame's filename. The remaining fields are opaque to us, except for a fixed block of
// dimension fields starting at FieldWidth.
package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Positions of the dimension fields
const (
	FieldWidth        = 11 // Pixel width of the frame
	FieldHeight       = 12 // Pixel height of the frame
	FieldDepthsMarker = 13 // Always DepthsMarker
	FieldScanHeight   = 14 // Scan height in millimeters
	FieldScanWidth    = 15 // Scan width in millimeters
	FieldClose        = 16 // Always CloseMarker. Appended if the row is one field short.
)

const (
	DepthsMarker = "]depths["
	CloseMarker  = "]"
)

// MinFields is the minimum number of fields a row needs before its dimensions can be written
const MinFields = FieldClose

var ErrNoRecord = errors.New("No ledger record")
var ErrAmbiguousRecord = errors.New("More than one ledger record")
var ErrTooFewFields = errors.New("Ledger record has too few fields")

// Dimensions are the values written into the dimension fields of a record
type Dimensions struct {
	Width        int
	Height       int
	ScanHeightMM int
	ScanWidthMM  int
}

// Record is a single row, without its line terminator
type Record struct {
	Line string
}

func (r Record) idPrefix() (prefix, remainder string) {
	field0, _, _ := strings.Cut(r.Line, ",")
	prefix, _, _ = strings.Cut(field0, "-")
	return prefix, r.Line[len(prefix):]
}

// ID returns the frame sequence number that the record belongs to
func (r Record) ID() (int, error) {
	prefix, _ := r.idPrefix()
	id, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("Ledger record '%v' does not start with a frame number", truncate(r.Line))
	}
	return id, nil
}

// WithID returns a copy of the record, with its frame number replaced.
// The rest of the row is preserved verbatim.
func (r Record) WithID(id int) Record {
	_, remainder := r.idPrefix()
	return Record{Line: strconv.Itoa(id) + remainder}
}

// Fields splits the record on commas
func (r Record) Fields() []string {
	return strings.Split(r.Line, ",")
}

// WithDimensions returns a copy of the record with its dimension fields overwritten.
// Fields beyond FieldClose are preserved.
func (r Record) WithDimensions(d Dimensions) (Record, error) {
	f := r.Fields()
	if len(f) < MinFields {
		return r, fmt.Errorf("%w (%v fields, need at least %v): '%v'", ErrTooFewFields, len(f), MinFields, truncate(r.Line))
	}
	if len(f) == MinFields {
		f = append(f, "")
	}
	f[FieldWidth] = strconv.Itoa(d.Width)
	f[FieldHeight] = strconv.Itoa(d.Height)
	f[FieldDepthsMarker] = DepthsMarker
	f[FieldScanHeight] = strconv.Itoa(d.ScanHeightMM)
	f[FieldScanWidth] = strconv.Itoa(d.ScanWidthMM)
	f[FieldClose] = CloseMarker
	return Record{Line: strings.Join(f, ",")}, nil
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}

// Ledger is the ordered list of records
type Ledger struct {
	Records []Record

	crlf       bool // Lines end with \r\n instead of \n
	noFinalEOL bool // The last record is not followed by a line ending
}

// Parse the contents of a ledger file.
// Both \n and \r\n line endings are accepted. Blank lines are ignored.
// The line ending of the first line, and whether the file ends with a line ending,
// are kept for Bytes.
func Parse(data []byte) *Ledger {
	l := &Ledger{}
	s := string(data)
	if i := strings.IndexByte(s, '\n'); i > 0 && s[i-1] == '\r' {
		l.crlf = true
	}
	l.noFinalEOL = len(s) != 0 && !strings.HasSuffix(s, "\n")
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		l.Records = append(l.Records, Record{Line: line})
	}
	return l
}

// Bytes returns the file contents of the ledger, with the line endings of the parsed file.
// A ledger that was not parsed uses \n, with a line ending after every record.
func (l *Ledger) Bytes() []byte {
	eol := "\n"
	if l.crlf {
		eol = "\r\n"
	}
	var b bytes.Buffer
	for i, r := range l.Records {
		b.WriteString(r.Line)
		if i != len(l.Records)-1 || !l.noFinalEOL {
			b.WriteString(eol)
		}
	}
	return b.Bytes()
}

// Len returns the number of records
func (l *Ledger) Len() int {
	return len(l.Records)
}

// Clone returns a copy that can be modified independently
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{Records: make([]Record, len(l.Records)), crlf: l.crlf, noFinalEOL: l.noFinalEOL}
	copy(c.Records, l.Records)
	return c
}

// IDs returns the frame number of every record
func (l *Ledger) IDs() ([]int, error) {
	ids := make([]int, len(l.Records))
	for i, r := range l.Records {
		id, err := r.ID()
		if err != nil {
			return nil, fmt.Errorf("Record %v: %w", i+1, err)
		}
		ids[i] = id
	}
	return ids, nil
}

// Find returns the index of the one record whose frame number is id.
// Records that cannot be parsed are ignored. Zero matches and multiple matches are both errors.
func (l *Ledger) Find(id int) (int, error) {
	found := -1
	for i, r := range l.Records {
		rid, err := r.ID()
		if err != nil || rid != id {
			continue
		}
		if found != -1 {
			return -1, fmt.Errorf("%w for frame %v (rows %v and %v)", ErrAmbiguousRecord, id, found+1, i+1)
		}
		found = i
	}
	if found == -1 {
		return -1, fmt.Errorf("%w for frame %v", ErrNoRecord, id)
	}
	return found, nil
}

// Remove the record at index i
func (l *Ledger) Remove(i int) {
	l.Records = append(l.Records[:i], l.Records[i+1:]...)
}

// Renumber rewrites the frame number of every record through the mapping.
// Records whose number is not in the mapping are left alone.
func (l *Ledger) Renumber(mapping map[int]int) {
	for i, r := range l.Records {
		id, err := r.ID()
		if err != nil {
			continue
		}
		if to, ok := mapping[id]; ok && to != id {
			l.Records[i] = r.WithID(to)
		}
	}
}

// SortByID orders the records by frame number. Records with equal numbers keep their order.
// Records that cannot be parsed sort last.
func (l *Ledger) SortByID() {
	key := func(r Record) int {
		id, err := r.ID()
		if err != nil {
			return math.MaxInt
		}
		return id
	}
	sort.SliceStable(l.Records, func(i, j int) bool {
		return key(l.Records[i]) < key(l.Records[j])
	})
}
