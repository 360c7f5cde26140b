// Package iox has small file helpers
package iox

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// WriteStreamToFile writes src to dstFilename, by first writing to a temporary file
// in the same directory, and then renaming it over dstFilename.
// Readers of dstFilename see either the old contents or the new contents, never a mix.
func WriteStreamToFile(dstFilename string, src io.Reader) error {
	perm := os.FileMode(0644)
	if st, err := os.Stat(dstFilename); err == nil {
		perm = st.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(dstFilename), "."+filepath.Base(dstFilename)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err = io.Copy(tmp, src); err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, perm)
	}
	if err == nil {
		err = os.Rename(tmpName, dstFilename)
	}
	if err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// WriteFile is WriteStreamToFile for a byte slice
func WriteFile(dstFilename string, data []byte) error {
	return WriteStreamToFile(dstFilename, bytes.NewReader(data))
}
