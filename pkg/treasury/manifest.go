package treasury

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	treasuryDirName = ".treasury"
	manifestName    = "manifest.json"
)

// data is the full manifest contents: the catalog plus the importer
// directories that were loaded into it, so Open can reload them.
type data struct {
	ImportersDirs []string `json:"importers_dirs"`
	Assets        []Asset  `json:"assets"`
}

func manifestPath(root string) string {
	return filepath.Join(root, treasuryDirName, manifestName)
}

// createLayout ensures root and root/.treasury exist, failing per the
// same rules New documents: root must not exist as a non-directory, and
// an existing manifest blocks creation unless overwrite is set.
func createLayout(root string, overwrite bool) error {
	info, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(root, 0o755); mkErr != nil {
			return mkErr
		}
	case err != nil:
		return err
	case !info.IsDir():
		return ErrRootIsNotDir
	}

	treasuryPath := filepath.Join(root, treasuryDirName)
	tInfo, err := os.Stat(treasuryPath)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.Mkdir(treasuryPath, 0o755); mkErr != nil {
			return mkErr
		}
	case err != nil:
		return err
	case !tInfo.IsDir():
		return ErrAlreadyExists
	default:
		if !overwrite {
			if _, statErr := os.Stat(manifestPath(root)); statErr == nil {
				return ErrAlreadyExists
			}
		}
	}

	return nil
}

// loadManifest reads and deserializes the manifest at root.
func loadManifest(root string) (data, error) {
	path := manifestPath(root)
	f, err := os.Open(path)
	if err != nil {
		return data{}, &OpenError{Path: path, Err: err}
	}
	defer f.Close()

	var d data
	if err := json.NewDecoder(f).Decode(&d); err != nil {
		return data{}, &OpenError{Path: path, Err: err}
	}

	for i := range d.Assets {
		d.Assets[i].updateAbsPaths(root)
	}

	return d, nil
}

// saveManifest writes d as pretty JSON to root/.treasury/manifest.json.
// The write is not atomic: the manifest is an index over durable native
// files, and a torn write is recoverable by re-import.
func saveManifest(root string, d data) error {
	path := manifestPath(root)
	f, err := os.Create(path)
	if err != nil {
		return &SaveError{Path: path, Err: err}
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return &SaveError{Path: path, Err: fmt.Errorf("encode manifest: %w", err)}
	}
	return nil
}
