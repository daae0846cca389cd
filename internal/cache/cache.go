// Package cache stores analysis reports between runs so unchanged projects
// are not re-analyzed.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/phobologic/deadctor/internal/model"
)

// Current schema version - increment when Entry format changes
const schemaVersion uint16 = 1

// Entry is the on-disk payload.
type Entry struct {
	Schema     uint16
	ConfigHash string
	// Files are the analyzed paths, relative to the root.
	Files  []string
	Report model.Report
}

// Load returns the cached report at path if it is still fresh: same schema,
// same configuration hash, same file set, and every file older than the
// cache itself.
func Load(path, root string, files []string, configHash string) (*model.Report, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	cacheMtime := info.ModTime()

	for _, f := range files {
		fi, err := os.Stat(filepath.Join(root, f))
		if err != nil {
			return nil, false
		}
		if !fi.ModTime().Before(cacheMtime) {
			return nil, false
		}
	}

	e, err := read(path)
	if err != nil {
		return nil, false
	}
	if e.Schema != schemaVersion || e.ConfigHash != configHash || !slices.Equal(e.Files, files) {
		return nil, false
	}
	return &e.Report, true
}

func read(path string) (*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var e Entry
	if err := msgpack.NewDecoder(f).Decode(&e); err != nil {
		return nil, fmt.Errorf("decoding cache %s: %w", path, err)
	}
	return &e, nil
}

// Save writes the report atomically.
func Save(path string, files []string, configHash string, r *model.Report) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".deadctor-cache-*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	e := Entry{
		Schema:     schemaVersion,
		ConfigHash: configHash,
		Files:      files,
		Report:     *r,
	}
	if err = msgpack.NewEncoder(tmp).Encode(&e); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}
