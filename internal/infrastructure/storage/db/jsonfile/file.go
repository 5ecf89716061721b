package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// jsonFile is a JSON document on disk. Callers must hold lock around
// read-modify-write cycles.
type jsonFile struct {
	path string
	lock *sync.Mutex
}

func newJSONFile(path string, empty interface{}) (*jsonFile, error) {
	f := &jsonFile{path, &sync.Mutex{}}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := f.write(empty); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *jsonFile) read(v interface{}) error {
	buf, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	if len(buf) == 0 {
		return nil
	}
	if err := json.Unmarshal(buf, v); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(f.path), err)
	}
	return nil
}

func (f *jsonFile) write(v interface{}) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, f.path)
}
