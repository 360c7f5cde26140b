package journal

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonoprep/server/recording"
	"github.com/stretchr/testify/require"
)

func TestJournal(t *testing.T) {
	j, err := Open(logs.NewTestingLog(t), filepath.Join(t.TempDir(), "journal", "journal.sqlite"))
	require.NoError(t, err)
	defer j.Close()

	id1 := j.Begin("detect", "/data/rec1", map[string]int{"window": 2})
	require.NotZero(t, id1)
	j.Finish(id1, map[string]int{"duplicates": 3}, nil)

	id2 := j.Begin("removeDuplicates", "/data/rec1", nil)
	j.Finish(id2, nil, recording.ErrConsistency)

	id3 := j.Begin("crop", "/data/rec1", nil)

	ops, err := j.List(10)
	require.NoError(t, err)
	require.Len(t, ops, 3)

	require.Equal(t, id3, ops[0].ID)
	require.Equal(t, StateRunning, ops[0].State)
	require.True(t, ops[0].FinishedAt.Get().IsZero() || ops[0].FinishedAt.Get().Unix() == 0)

	require.Equal(t, StateFailed, ops[1].State)
	require.Equal(t, string(recording.KindConsistency), ops[1].ErrorKind)

	require.Equal(t, "detect", ops[2].Kind)
	require.Equal(t, StateCommitted, ops[2].State)
	require.NotNil(t, ops[2].Result)
	res := map[string]int{}
	require.NoError(t, json.Unmarshal(ops[2].Result.Data, &res))
	require.Equal(t, 3, res["duplicates"])
	require.False(t, ops[2].FinishedAt.Get().Before(ops[2].StartedAt.Get()))

	ops, err = j.List(1)
	require.NoError(t, err)
	require.Len(t, ops, 1)
}
