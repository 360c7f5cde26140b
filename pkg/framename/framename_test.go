package framename

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	n, err := Parse("17-1698059181433.png")
	require.NoError(t, err)
	require.Equal(t, 17, n.Seq)
	require.Equal(t, int64(1698059181433), n.Timestamp)
	require.Equal(t, "png", n.Ext)
	require.Equal(t, "1698059181433.png", n.Rest)
	require.Equal(t, "17-1698059181433.png", n.String())
	require.Equal(t, "4-1698059181433.png", n.WithSeq(4).String())

	// A second '-' belongs to the remainder
	n, err = Parse("2-abc-def.png")
	require.NoError(t, err)
	require.Equal(t, 2, n.Seq)
	require.Equal(t, "abc-def.png", n.Rest)
	require.Equal(t, int64(0), n.Timestamp)

	for _, bad := range []string{"", "data.txt", "0-123.png", "-5-123.png", "x-123.png", "7-", "01-123.png", "+2-123.png", "007-123.png"} {
		_, err := Parse(bad)
		require.Error(t, err, bad)
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, fn := range []string{"1-1698059181433.png", "10-1698059181433.PNG", "123-abc-def.png"} {
		n, err := Parse(fn)
		require.NoError(t, err)
		require.Equal(t, fn, n.String())
	}
}

func TestSortIsNumeric(t *testing.T) {
	names := []string{"10-500.png", "9-400.png", "1-100.png", "100-900.png", "2-200.png"}
	Sort(names)
	require.Equal(t, []string{"1-100.png", "2-200.png", "9-400.png", "10-500.png", "100-900.png"}, names)
}

func TestHasExt(t *testing.T) {
	require.True(t, HasExt("1-2.png", "png"))
	require.True(t, HasExt("1-2.PNG", "png"))
	require.False(t, HasExt("1-2.jpg", "png"))
	require.False(t, HasExt("png", "png"))
}
