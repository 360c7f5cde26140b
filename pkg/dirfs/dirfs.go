// Package dirfs gives access to the files of one flat recording directory.
package dirfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonoprep/pkg/framename"
	"github.com/cyclopcam/sonoprep/pkg/iox"
)

// ErrExists is returned by Rename when the destination name is already taken
var ErrExists = errors.New("Destination file already exists")

// Dir is a flat directory of files.
// All names are relative to Root, and may not contain path separators.
type Dir struct {
	root string
	log  logs.Log
}

// Open a directory. The directory must exist.
func Open(log logs.Log, root string) (*Dir, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("Failed to open recording directory '%v': %w", root, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("'%v' is not a directory", root)
	}
	return &Dir{
		root: absRoot,
		log:  log,
	}, nil
}

func checkName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("Invalid file name '%v'", name)
	}
	return nil
}

// Root returns the absolute path of the directory
func (d *Dir) Root() string {
	return d.root
}

// Path returns the full path of the file 'name'
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, name)
}

// List returns the names of all regular files whose extension is 'ext', in directory order.
// Hidden files (such as our own temporary files) are skipped.
func (d *Dir) List(ext string) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if framename.HasExt(e.Name(), ext) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Rename a file. Unlike os.Rename, this refuses to overwrite an existing file.
func (d *Dir) Rename(oldName, newName string) error {
	if err := checkName(oldName); err != nil {
		return err
	}
	if err := checkName(newName); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	if _, err := os.Lstat(d.Path(newName)); err == nil {
		return fmt.Errorf("Failed to rename '%v' to '%v': %w", oldName, newName, ErrExists)
	}
	return os.Rename(d.Path(oldName), d.Path(newName))
}

// Delete a file
func (d *Dir) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	d.log.Debugf("Deleting file %v", name)
	return os.Remove(d.Path(name))
}

// ReadFile reads the whole file
func (d *Dir) ReadFile(name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(d.Path(name))
}

// WriteFile replaces the whole file atomically
func (d *Dir) WriteFile(name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	d.log.Debugf("Writing file %v", name)
	return iox.WriteFile(d.Path(name), data)
}
