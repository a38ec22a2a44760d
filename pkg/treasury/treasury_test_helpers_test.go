package treasury

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, contents []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, contents, 0o644))
}

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

// fakeImporter is a test Importer that writes fixed bytes to its native
// tmp path and optionally stores a sub-asset through the Lock it is
// handed, exercising the reentrant Store path.
type fakeImporter struct {
	name       string
	writeBytes []byte
	err        error
	subSource  string // non-empty to recursively Store a sub-asset
}

func (f *fakeImporter) Name() string { return f.name }

func (f *fakeImporter) Import(_ context.Context, _ string, nativeRelTmp string, lock *Lock) error {
	if f.err != nil {
		return f.err
	}

	dst := filepath.Join(lock.Root(), nativeRelTmp)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dst, f.writeBytes, 0o644); err != nil {
		return err
	}

	if f.subSource != "" {
		if _, err := lock.Store(f.subSource, "fbx", "fbx", nil); err != nil {
			return err
		}
	}
	return nil
}
