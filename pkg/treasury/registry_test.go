package treasury

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	root := t.TempDir()
	r, err := New(root, false)
	require.NoError(t, err)
	return r, root
}

func TestNewRejectsExistingManifestWithoutOverwrite(t *testing.T) {
	root := t.TempDir()
	_, err := New(root, false)
	require.NoError(t, err)

	_, err = New(root, false)
	var newErr *NewError
	assert.ErrorAs(t, err, &newErr)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestStoreIdentityPassthroughCreatesNativeFile(t *testing.T) {
	r, root := newTestRegistry(t)
	source := filepath.Join(root, "source.fbx")
	writeFile(t, source, []byte("hello"))

	id, err := r.Store(source, "fbx", "fbx", []string{"prop"})
	require.NoError(t, err)

	assets := r.List(nil, "")
	require.Len(t, assets, 1)
	assert.Equal(t, id, assets[0].UUID())

	nativePath := filepath.Join(root, treasuryDirName, id.String())
	contents, err := os.ReadFile(nativePath)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(contents))
}

func TestStoreIsIdempotentForSameTriple(t *testing.T) {
	r, root := newTestRegistry(t)
	source := filepath.Join(root, "source.fbx")
	writeFile(t, source, []byte("hello"))

	first, err := r.Store(source, "fbx", "fbx", nil)
	require.NoError(t, err)

	second, err := r.Store(source, "fbx", "fbx", nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, r.List(nil, ""), 1)
}

func TestStoreDifferentNativeFormatYieldsDistinctAsset(t *testing.T) {
	r, root := newTestRegistry(t)
	source := filepath.Join(root, "source.fbx")
	writeFile(t, source, []byte("hello"))
	r.LoadImportersDir(filepath.Join(root, "importers"), []ImporterRegistration{
		{SourceFormat: "fbx", NativeFormat: "gltf", Importer: &fakeImporter{name: "fbx2gltf", writeBytes: []byte("converted")}},
	})

	first, err := r.Store(source, "fbx", "fbx", nil)
	require.NoError(t, err)

	second, err := r.Store(source, "fbx", "gltf", nil)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, r.List(nil, ""), 2)
}

func TestStoreWithoutImporterReturnsStoreError(t *testing.T) {
	r, root := newTestRegistry(t)
	source := filepath.Join(root, "source.fbx")
	writeFile(t, source, []byte("hello"))

	_, err := r.Store(source, "fbx", "gltf", nil)
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, StoreImporterNotFound, storeErr.Kind)
	assert.ErrorIs(t, err, ErrImporterNotFound)
}

func TestStoreRunsImporterAndRenamesTmpFile(t *testing.T) {
	r, root := newTestRegistry(t)
	source := filepath.Join(root, "source.fbx")
	writeFile(t, source, []byte("hello"))
	r.LoadImportersDir(filepath.Join(root, "importers"), []ImporterRegistration{
		{SourceFormat: "fbx", NativeFormat: "gltf", Importer: &fakeImporter{name: "fbx2gltf", writeBytes: []byte("converted")}},
	})

	id, err := r.Store(source, "fbx", "gltf", nil)
	require.NoError(t, err)

	nativePath := filepath.Join(root, treasuryDirName, id.String())
	contents, err := os.ReadFile(nativePath)
	require.NoError(t, err)
	assert.Equal(t, "converted", string(contents))

	_, err = os.Stat(nativePath + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStoreRecursiveImporterCanStoreSubAsset(t *testing.T) {
	r, root := newTestRegistry(t)
	source := filepath.Join(root, "scene.fbx")
	subSource := filepath.Join(root, "texture.fbx")
	writeFile(t, source, []byte("scene"))
	writeFile(t, subSource, []byte("texture"))

	r.LoadImportersDir(filepath.Join(root, "importers"), []ImporterRegistration{
		{SourceFormat: "fbx", NativeFormat: "gltf", Importer: &fakeImporter{
			name: "fbx2gltf", writeBytes: []byte("converted"), subSource: subSource,
		}},
	})

	_, err := r.Store(source, "fbx", "gltf", nil)
	require.NoError(t, err)

	assets := r.List(nil, "")
	require.Len(t, assets, 2)
}

func TestFetchNotFound(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Fetch(mustUUID(t, "55555555-5555-5555-5555-555555555555"))
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchNotFound, fetchErr.Kind)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchReturnsStoredBytes(t *testing.T) {
	r, root := newTestRegistry(t)
	source := filepath.Join(root, "source.fbx")
	writeFile(t, source, []byte("hello"))

	id, err := r.Store(source, "fbx", "fbx", nil)
	require.NoError(t, err)

	ad, err := r.Fetch(id)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(ad.Bytes))
}

func TestFetchUpdatedIsMonotonic(t *testing.T) {
	r, root := newTestRegistry(t)
	source := filepath.Join(root, "source.fbx")
	writeFile(t, source, []byte("hello"))

	id, err := r.Store(source, "fbx", "fbx", nil)
	require.NoError(t, err)

	first, err := r.Fetch(id)
	require.NoError(t, err)

	stale, err := r.FetchUpdated(id, first.Version)
	require.NoError(t, err)
	assert.Nil(t, stale)

	updated, err := r.FetchUpdated(id, first.Version-1)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, first.Version, updated.Version)
}

func TestFetchReimportsStaleAsset(t *testing.T) {
	r, root := newTestRegistry(t)
	source := filepath.Join(root, "source.fbx")
	writeFile(t, source, []byte("v1"))
	r.LoadImportersDir(filepath.Join(root, "importers"), []ImporterRegistration{
		{SourceFormat: "fbx", NativeFormat: "gltf", Importer: &fakeImporter{name: "fbx2gltf", writeBytes: []byte("v1-native")}},
	})

	id, err := r.Store(source, "fbx", "gltf", nil)
	require.NoError(t, err)

	first, err := r.Fetch(id)
	require.NoError(t, err)
	assert.Equal(t, "v1-native", string(first.Bytes))

	// Touch the source with a later mtime and swap the importer's output.
	time.Sleep(10 * time.Millisecond)
	writeFile(t, source, []byte("v2"))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(source, future, future))
	r.importers.entries[formatPair{"fbx", "gltf"}] = &fakeImporter{name: "fbx2gltf", writeBytes: []byte("v2-native")}

	second, err := r.Fetch(id)
	require.NoError(t, err)
	assert.Equal(t, "v2-native", string(second.Bytes))
	assert.Greater(t, second.Version, first.Version)
}

func TestFetchFallsBackToStaleOnReimportFailure(t *testing.T) {
	r, root := newTestRegistry(t)
	source := filepath.Join(root, "source.fbx")
	writeFile(t, source, []byte("v1"))
	r.LoadImportersDir(filepath.Join(root, "importers"), []ImporterRegistration{
		{SourceFormat: "fbx", NativeFormat: "gltf", Importer: &fakeImporter{name: "fbx2gltf", writeBytes: []byte("v1-native")}},
	})

	id, err := r.Store(source, "fbx", "gltf", nil)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(source, future, future))
	r.importers.entries[formatPair{"fbx", "gltf"}] = &fakeImporter{name: "fbx2gltf", err: assertError("boom")}

	ad, err := r.Fetch(id)
	require.NoError(t, err)
	assert.Equal(t, "v1-native", string(ad.Bytes))
}

func TestListFiltersByTagAndFormat(t *testing.T) {
	r, root := newTestRegistry(t)
	a := filepath.Join(root, "a.fbx")
	b := filepath.Join(root, "b.fbx")
	writeFile(t, a, []byte("a"))
	writeFile(t, b, []byte("b"))

	_, err := r.Store(a, "fbx", "fbx", []string{"prop"})
	require.NoError(t, err)
	_, err = r.Store(b, "fbx", "fbx", []string{"vehicle"})
	require.NoError(t, err)

	props := r.List([]string{"prop"}, "")
	assert.Len(t, props, 1)

	allFbx := r.List(nil, "fbx")
	assert.Len(t, allFbx, 2)

	none := r.List([]string{"prop", "vehicle"}, "")
	assert.Len(t, none, 0)
}

func TestRemoveDeletesNativeFileAndRecord(t *testing.T) {
	r, root := newTestRegistry(t)
	source := filepath.Join(root, "source.fbx")
	writeFile(t, source, []byte("hello"))

	id, err := r.Store(source, "fbx", "fbx", nil)
	require.NoError(t, err)

	nativePath := filepath.Join(root, treasuryDirName, id.String())
	require.NoError(t, r.Remove(id))

	assert.Len(t, r.List(nil, ""), 0)
	_, statErr := os.Stat(nativePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRemoveMissingReturnsFetchError(t *testing.T) {
	r, _ := newTestRegistry(t)

	err := r.Remove(mustUUID(t, "66666666-6666-6666-6666-666666666666"))
	var fetchErr *FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestOpenRoundTripsStoredAssets(t *testing.T) {
	root := t.TempDir()
	r, err := New(root, false)
	require.NoError(t, err)

	source := filepath.Join(root, "source.fbx")
	writeFile(t, source, []byte("hello"))
	id, err := r.Store(source, "fbx", "fbx", []string{"prop"})
	require.NoError(t, err)

	reopened, err := Open(root)
	require.NoError(t, err)

	ad, err := reopened.Fetch(id)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(ad.Bytes))

	assets := reopened.List(nil, "")
	require.Len(t, assets, 1)
	assert.True(t, assets[0].HasTag("prop"))
}

// assertError is a trivial error type for tests that just need a non-nil,
// comparable error value.
type assertError string

func (e assertError) Error() string { return string(e) }
