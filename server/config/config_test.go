package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/sonoprep/pkg/framex"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, framex.Rect{Top: 228, Bottom: 878, Left: 476, Right: 1428}, cfg.Defaults.ROI)
	require.Equal(t, 2, cfg.Defaults.Window)

	dir := t.TempDir()
	cfg, err = LoadConfig(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	require.Equal(t, "data.txt", cfg.LedgerName)

	fn := filepath.Join(dir, "sonoprep.json")
	require.NoError(t, os.WriteFile(fn, []byte(`{"listen": ":9000", "defaults": {"window": 5}}`), 0644))
	cfg, err = LoadConfig(fn)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Listen)
	require.Equal(t, 5, cfg.Defaults.Window)
	require.Equal(t, 150, cfg.Defaults.ScanHeightMM)

	require.NoError(t, os.WriteFile(fn, []byte(`{"defaults": {"window": 0}}`), 0644))
	_, err = LoadConfig(fn)
	require.ErrorContains(t, err, "defaults.window")

	require.NoError(t, os.WriteFile(fn, []byte(`{"defaults": {"roi": {"top": 10, "bottom": 5, "left": 0, "right": 4}}}`), 0644))
	_, err = LoadConfig(fn)
	require.ErrorContains(t, err, "defaults.roi.bottom")

	require.NoError(t, os.WriteFile(fn, []byte(`{`), 0644))
	_, err = LoadConfig(fn)
	require.Error(t, err)
}
