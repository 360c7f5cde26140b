package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonoprep/server/recording"
	"github.com/stretchr/testify/require"
)

// writeRecording creates 4 frames, where frame 3 is a copy of frame 2
func writeRecording(t *testing.T) string {
	dir := t.TempDir()
	rows := []string{}
	var prev *image.Gray
	for i := 1; i <= 4; i++ {
		img := image.NewGray(image.Rect(0, 0, 32, 24))
		rng := rand.New(rand.NewSource(int64(i)))
		for j := range img.Pix {
			img.Pix[j] = uint8(rng.Intn(256))
		}
		if i == 3 {
			img = prev
		}
		prev = img
		buf := bytes.Buffer{}
		require.NoError(t, png.Encode(&buf, img))
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%v-%v.png", i, 1000+i*40)), buf.Bytes(), 0644))
		rows = append(rows, fmt.Sprintf("%v-%v,probe,L15,gain,42,a,b,c,d,e,f,0,0,x,0,0", i, 1000+i*40))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.txt"), []byte(strings.Join(rows, "\n")+"\n"), 0644))
	return dir
}

func writeConfig(t *testing.T) string {
	fn := filepath.Join(t.TempDir(), "sonoprep.json")
	require.NoError(t, os.WriteFile(fn, []byte(`{"journal": ""}`), 0644))
	return fn
}

func TestDedup(t *testing.T) {
	log := logs.NewTestingLog(t)
	cfg := writeConfig(t)
	dir := writeRecording(t)

	out := bytes.Buffer{}
	require.NoError(t, run(log, []string{"sonoprep", "-c", cfg, "detect", "-d", dir}, &out))
	candidates := []recording.Candidate{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &candidates))
	require.Equal(t, []recording.Candidate{{Earlier: "2-1080.png", Later: "3-1120.png"}}, candidates)

	out.Reset()
	require.NoError(t, run(log, []string{"sonoprep", "-c", cfg, "dedup", "-d", dir}, &out))
	result := recording.RemoveResult{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.Equal(t, 1, result.Deleted)

	entries, err := filepath.Glob(filepath.Join(dir, "*.png"))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.FileExists(t, filepath.Join(dir, "3-1160.png"))

	out.Reset()
	require.NoError(t, run(log, []string{"sonoprep", "-c", cfg, "verify", "-d", dir}, &out))
	require.Equal(t, "OK\n", out.String())
}

func TestCropAndInfo(t *testing.T) {
	log := logs.NewTestingLog(t)
	cfg := writeConfig(t)
	dir := writeRecording(t)

	out := bytes.Buffer{}
	err := run(log, []string{"sonoprep", "-c", cfg, "crop", "-d", dir}, &out)
	// The default region is much larger than these frames
	require.ErrorIs(t, err, recording.ErrValidation)

	require.NoError(t, run(log, []string{"sonoprep", "-c", cfg, "crop", "-d", dir, "-r", "2,22,4,20", "--scan-height", "30", "--scan-width", "24"}, &out))

	out.Reset()
	require.NoError(t, run(log, []string{"sonoprep", "-c", cfg, "info", "-d", dir}, &out))
	status := recording.Status{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	require.Equal(t, 4, status.Details.Frames)
	require.Equal(t, 16, status.Details.Width)
	require.Equal(t, 20, status.Details.Height)
}

func TestUsage(t *testing.T) {
	log := logs.NewTestingLog(t)
	err := run(log, []string{"sonoprep", "bogus"}, &bytes.Buffer{})
	var usage *usageError
	require.ErrorAs(t, err, &usage)

	err = run(log, []string{"sonoprep", "detect"}, &bytes.Buffer{})
	require.ErrorAs(t, err, &usage)
}
