package ledger

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// A row shaped like the ones our scanner writes: 16 fields, the last being the close marker slot
func makeRow(seq int, stamp int64) string {
	return fmt.Sprintf("%v-%v,a,b,c,d,e,f,g,h,i,j,0,0,x,0,0", seq, stamp)
}

func TestParseAndIDs(t *testing.T) {
	data := makeRow(1, 1000) + "\r\n" + makeRow(2, 1033) + "\n\n" + makeRow(3, 1066)
	l := Parse([]byte(data))
	require.Equal(t, 3, l.Len())
	ids, err := l.IDs()
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, ids)
	// The first line ending wins, and the blank line is dropped
	require.Equal(t, makeRow(1, 1000)+"\r\n"+makeRow(2, 1033)+"\r\n"+makeRow(3, 1066), string(l.Bytes()))

	_, err = Record{Line: "abc,def"}.ID()
	require.Error(t, err)
}

func TestBytesKeepsLineEndings(t *testing.T) {
	for _, data := range []string{
		"1-100,a\r\n2-140,b",
		"1-100,a\r\n2-140,b\r\n",
		"1-100,a\n2-140,b",
		"1-100,a\n2-140,b\n",
	} {
		l := Parse([]byte(data))
		require.Equal(t, data, string(l.Bytes()), "%q", data)
		require.Equal(t, data, string(l.Clone().Bytes()), "%q", data)
	}

	// Editing keeps the format
	l := Parse([]byte("2-100,a\r\n3-140,b"))
	l.Renumber(map[int]int{2: 1, 3: 2})
	require.Equal(t, "1-100,a\r\n2-140,b", string(l.Bytes()))
	l.Remove(1)
	require.Equal(t, "1-100,a", string(l.Bytes()))

	require.Equal(t, "1-100,a\n", string((&Ledger{Records: []Record{{Line: "1-100,a"}}}).Bytes()))
}

func TestFind(t *testing.T) {
	l := Parse([]byte(strings.Join([]string{makeRow(1, 10), makeRow(2, 20), makeRow(2, 25), "junk"}, "\n")))
	i, err := l.Find(1)
	require.NoError(t, err)
	require.Equal(t, 0, i)

	_, err = l.Find(2)
	require.ErrorIs(t, err, ErrAmbiguousRecord)

	_, err = l.Find(7)
	require.ErrorIs(t, err, ErrNoRecord)
}

func TestWithID(t *testing.T) {
	r := Record{Line: "12-1698059181433,x-y,z"}
	require.Equal(t, "3-1698059181433,x-y,z", r.WithID(3).Line)

	// No '-' in the first field. Only the first field is replaced.
	r = Record{Line: "12,x-y"}
	require.Equal(t, "4,x-y", r.WithID(4).Line)
}

func TestRemoveAndRenumber(t *testing.T) {
	l := Parse([]byte(strings.Join([]string{makeRow(1, 10), makeRow(2, 20), makeRow(3, 30), makeRow(4, 40)}, "\n")))
	original := l.Clone()
	l.Remove(1)
	l.Renumber(map[int]int{1: 1, 3: 2, 4: 3})
	require.Equal(t, []Record{{makeRow(1, 10)}, {makeRow(2, 30)}, {makeRow(3, 40)}}, l.Records)
	require.Equal(t, 4, original.Len())
}

func TestWithDimensions(t *testing.T) {
	d := Dimensions{Width: 200, Height: 100, ScanHeightMM: 150, ScanWidthMM: 120}

	// 16 fields: the close marker is appended
	r, err := Record{Line: makeRow(1, 10)}.WithDimensions(d)
	require.NoError(t, err)
	f := r.Fields()
	require.Len(t, f, 17)
	require.Equal(t, "200", f[FieldWidth])
	require.Equal(t, "100", f[FieldHeight])
	require.Equal(t, DepthsMarker, f[FieldDepthsMarker])
	require.Equal(t, "150", f[FieldScanHeight])
	require.Equal(t, "120", f[FieldScanWidth])
	require.Equal(t, CloseMarker, f[FieldClose])
	require.Equal(t, "1-10", f[0])

	// Extra fields are kept
	r, err = Record{Line: makeRow(1, 10) + ",],extra"}.WithDimensions(d)
	require.NoError(t, err)
	f = r.Fields()
	require.Len(t, f, 18)
	require.Equal(t, "extra", f[17])

	// Idempotent
	r2, err := r.WithDimensions(d)
	require.NoError(t, err)
	require.Equal(t, r, r2)

	_, err = Record{Line: "1-10,a,b"}.WithDimensions(d)
	require.ErrorIs(t, err, ErrTooFewFields)
}

func TestSortByID(t *testing.T) {
	l := Parse([]byte(strings.Join([]string{makeRow(3, 30), "junk", makeRow(1, 10), makeRow(2, 20)}, "\n")))
	l.SortByID()
	ids, err := (&Ledger{Records: l.Records[:3]}).IDs()
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, ids)
	require.Equal(t, "junk", l.Records[3].Line)
}
