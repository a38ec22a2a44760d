// Package treasury implements a content-addressable asset pipeline and
// registry: it ingests source artifacts, dispatches them to pluggable
// importers that convert them to native formats, persists a JSON catalog
// of (uuid, source, formats, tags, native blob) records under
// root/.treasury, and serves native bytes with staleness-aware reimport.
//
// The Registry is the single owner of the catalog. All mutation happens
// under one mutex; an Importer invoked during Store or Fetch may
// recursively Store sub-assets on the same Registry via the Lock handle
// it is given, because the mutex is always released before the importer
// runs and re-acquired once it returns.
package treasury

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/treasury/pkg/log"
	"github.com/cuemby/treasury/pkg/pathutil"
	"github.com/cuemby/treasury/pkg/tmetrics"
	"github.com/google/uuid"
)

// Registry is the process-wide, singly-owned catalog and importer
// dispatcher.
type Registry struct {
	mu        sync.Mutex
	root      string
	data      data
	importers *importerRegistry
}

// AssetData is the bytes and version returned by Fetch/FetchUpdated.
type AssetData struct {
	Bytes   []byte
	Version uint64
}

// New creates a new, empty registry rooted at root. It creates root and
// root/.treasury if they do not exist and writes an empty manifest. It
// fails if root exists and is not a directory, if a manifest already
// exists and overwrite is false, or if the manifest cannot be saved.
func New(root string, overwrite bool) (*Registry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, &NewError{Path: root, Err: err}
	}

	if err := createLayout(root, overwrite); err != nil {
		return nil, &NewError{Path: root, Err: err}
	}

	r := &Registry{
		root:      root,
		importers: newImporterRegistry(),
	}
	if err := saveManifest(root, r.data); err != nil {
		return nil, &NewError{Path: root, Err: err}
	}
	return r, nil
}

// Open loads a registry from its manifest at root/.treasury/manifest.json,
// rehydrating every asset's absolute paths. root is resolved to an
// absolute path first, since RelativeTo (used throughout Store/Fetch to
// keep manifest paths portable) requires one.
func Open(root string) (*Registry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, &OpenError{Path: root, Err: err}
	}

	d, err := loadManifest(root)
	if err != nil {
		return nil, err
	}
	for i := range d.Assets {
		tmetrics.AssetsTotal.WithLabelValues(d.Assets[i].nativeFormat).Inc()
	}

	return &Registry{
		root:      root,
		data:      d,
		importers: newImporterRegistry(),
	}, nil
}

// Save persists the current catalog to the manifest.
func (r *Registry) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return saveManifest(r.root, r.data)
}

// Root returns the registry's root directory.
func (r *Registry) Root() string { return r.root }

// LoadImportersDir registers the given importers and records dir (which
// must be absolute) in the manifest's importers_dirs list, expressed
// relative to the registry root, so Open's caller
// can reload the same directory later. Discovering and dynamically
// loading plugin binaries at dir is the embedding program's
// responsibility; this only wires already-constructed importers into the
// dispatch table.
func (r *Registry) LoadImportersDir(dir string, regs []ImporterRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	relDir := pathutil.RelativeTo(dir, r.root)
	for _, existing := range r.data.ImportersDirs {
		if existing == relDir {
			for _, reg := range regs {
				r.importers.register(reg.SourceFormat, reg.NativeFormat, reg.Importer)
			}
			return nil
		}
	}

	for _, reg := range regs {
		r.importers.register(reg.SourceFormat, reg.NativeFormat, reg.Importer)
	}
	r.data.ImportersDirs = append(r.data.ImportersDirs, relDir)
	return nil
}

// Store imports source (authored in sourceFormat) into nativeFormat and
// registers it in the catalog, returning its uuid. A repeated call with
// the same (source, sourceFormat, nativeFormat) triple returns the
// existing uuid without reimporting.
func (r *Registry) Store(source, sourceFormat, nativeFormat string, tags []string) (uuid.UUID, error) {
	timer := tmetrics.NewTimer()
	id, deduped, err := r.store(source, sourceFormat, nativeFormat, tags)

	outcome := "created"
	switch {
	case err != nil:
		outcome = "error"
	case deduped:
		outcome = "deduped"
	}
	tmetrics.StoreTotal.WithLabelValues(outcome).Inc()
	timer.ObserveDurationVec(tmetrics.StoreDuration, outcome)
	return id, err
}

func (r *Registry) store(source, sourceFormat, nativeFormat string, tags []string) (uuid.UUID, bool, error) {
	r.mu.Lock()

	sourceAbsolute := source
	if !filepath.IsAbs(sourceAbsolute) {
		cwd, err := os.Getwd()
		if err != nil {
			r.mu.Unlock()
			return uuid.UUID{}, false, &StoreError{Kind: StoreSourceIOError, Path: source, Err: err}
		}
		sourceAbsolute = filepath.Join(cwd, source)
	}

	sourceFromRoot := pathutil.RelativeTo(sourceAbsolute, r.root)

	for i := range r.data.Assets {
		a := &r.data.Assets[i]
		if a.source == sourceFromRoot && a.sourceFormat == sourceFormat && a.nativeFormat == nativeFormat {
			log.Trace(fmt.Sprintf("asset %q already imported as %s", sourceFromRoot, a.id))
			r.mu.Unlock()
			return a.id, true, nil
		}
	}

	id := r.freshUUID()
	nativeRel := filepath.Join(treasuryDirName, id.String())
	nativeAbsolute := filepath.Join(r.root, nativeRel)

	log.WithImporter(nativeFormat).Debug().
		Str("source", sourceFromRoot).
		Str("source_format", sourceFormat).
		Msg("importing asset")

	if sourceFormat == nativeFormat {
		if err := copyFile(sourceAbsolute, nativeAbsolute); err != nil {
			r.mu.Unlock()
			return uuid.UUID{}, false, &StoreError{Kind: StoreSourceIOError, Path: sourceAbsolute, Err: err}
		}
	} else {
		importer, ok := r.importers.get(sourceFormat, nativeFormat)
		if !ok {
			r.mu.Unlock()
			return uuid.UUID{}, false, &StoreError{
				Kind: StoreImporterNotFound, SourceFormat: sourceFormat, NativeFormat: nativeFormat,
				Err: ErrImporterNotFound,
			}
		}

		nativeTmpRel := nativeRel + ".tmp"
		nativeTmpAbsolute := nativeAbsolute + ".tmp"
		lock := &Lock{registry: r}

		// The importer may recursively call Store on this same
		// registry, so the mutex must not be held across its run.
		r.mu.Unlock()
		err := importer.Import(context.Background(), sourceAbsolute, nativeTmpRel, lock)
		r.mu.Lock()

		if err != nil {
			r.mu.Unlock()
			return uuid.UUID{}, false, &StoreError{Kind: StoreImportError, Err: err}
		}

		if err := os.Rename(nativeTmpAbsolute, nativeAbsolute); err != nil {
			r.mu.Unlock()
			return uuid.UUID{}, false, &StoreError{Kind: StoreNativeIOError, Path: nativeAbsolute, Err: err}
		}
	}

	r.data.Assets = append(r.data.Assets, newAsset(id, sourceFromRoot, sourceFormat, nativeFormat, tags, sourceAbsolute, nativeAbsolute))
	tmetrics.AssetsTotal.WithLabelValues(nativeFormat).Inc()
	log.WithAsset(id.String()).Info().Msg("asset registered")

	r.mu.Unlock()

	if err := r.Save(); err != nil {
		log.Errorf("failed to save manifest after store, will retry on next mutation", err)
	}

	return id, false, nil
}

// freshUUID draws a v4 uuid that does not collide with an existing asset.
// Must be called with r.mu held.
func (r *Registry) freshUUID() uuid.UUID {
	for {
		id := uuid.New()
		collision := false
		for i := range r.data.Assets {
			if r.data.Assets[i].id == id {
				collision = true
				break
			}
		}
		if !collision {
			return id
		}
	}
}

// Fetch unconditionally returns the asset's native bytes, reimporting them
// first if they are stale and an importer is registered; if the reimport
// fails, the stale bytes are served.
func (r *Registry) Fetch(id uuid.UUID) (AssetData, error) {
	timer := tmetrics.NewTimer()
	ad, err := r.fetchAt(id, 0)
	outcome := "served"
	if err != nil {
		outcome = "error"
	}
	tmetrics.FetchTotal.WithLabelValues(outcome).Inc()
	timer.ObserveDurationVec(tmetrics.FetchDuration, outcome)

	if err != nil {
		return AssetData{}, err
	}
	// next_version = 0 always yields a result per spec.md §4.5.2.
	return *ad, nil
}

// FetchUpdated returns the asset's native bytes only if its current
// version is greater than version; otherwise it returns (nil, nil).
func (r *Registry) FetchUpdated(id uuid.UUID, version uint64) (*AssetData, error) {
	timer := tmetrics.NewTimer()
	ad, err := r.fetchAt(id, version+1)

	outcome := "served"
	switch {
	case err != nil:
		outcome = "error"
	case ad == nil:
		outcome = "not_modified"
	}
	tmetrics.FetchTotal.WithLabelValues(outcome).Inc()
	timer.ObserveDurationVec(tmetrics.FetchDuration, outcome)

	return ad, err
}

func (r *Registry) fetchAt(id uuid.UUID, nextVersion uint64) (*AssetData, error) {
	info, err := r.fetch(id, nextVersion)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	defer info.file.Close()

	bytes, err := io.ReadAll(info.file)
	if err != nil {
		return nil, &FetchError{Kind: FetchNativeIOError, Path: info.path, Err: err}
	}

	return &AssetData{Bytes: bytes, Version: info.version}, nil
}

type fetchInfo struct {
	path    string
	file    *os.File
	version uint64
}

func (r *Registry) fetch(id uuid.UUID, nextVersion uint64) (*fetchInfo, error) {
	r.mu.Lock()

	index := r.indexOf(id)
	if index < 0 {
		r.mu.Unlock()
		return nil, &FetchError{Kind: FetchNotFound, Err: ErrNotFound}
	}

	asset := &r.data.Assets[index]
	nativePath := asset.NativeAbsolute()
	nativeFile, err := os.Open(nativePath)
	if err != nil {
		r.mu.Unlock()
		return nil, &FetchError{Kind: FetchNativeIOError, Path: nativePath, Err: err}
	}

	nativeStat, err := nativeFile.Stat()
	if err != nil {
		nativeFile.Close()
		r.mu.Unlock()
		return nil, &FetchError{Kind: FetchNativeIOError, Path: nativePath, Err: err}
	}
	nativeModTime := nativeStat.ModTime()

	sourceStat, err := os.Stat(asset.SourceAbsolute())
	switch {
	case err != nil:
		log.WithAsset(id.String()).Warn().Msg("could not stat source file, skipping staleness check")
	case nativeModTime.Before(sourceStat.ModTime()):
		nativeFile, nativeModTime = r.reimport(index, nativeFile, nativePath)
		if nativeFile == nil {
			r.mu.Unlock()
			return nil, &FetchError{Kind: FetchNativeIOError, Path: nativePath, Err: ErrReimportFailed}
		}
	default:
		log.Trace("native asset file is up-to-date")
	}

	asset = &r.data.Assets[index]
	version := pathutil.VersionFromMtime(nativeModTime)

	if nextVersion > version {
		nativeFile.Close()
		r.mu.Unlock()
		return nil, nil
	}

	finalPath := asset.NativeAbsolute()
	r.mu.Unlock()

	return &fetchInfo{path: finalPath, file: nativeFile, version: version}, nil
}

// reimport runs the importer for the asset at index, releasing and
// reacquiring r.mu around the call (the importer may recursively Store).
// It returns the file handle and mtime to serve: the freshly reimported
// native file on success, the original stale handle/mtime if the
// importer is absent or fails or the rename fails, or a nil file if the
// renamed native file cannot be reopened. Must be called with r.mu held;
// returns with r.mu held.
func (r *Registry) reimport(index int, staleFile *os.File, staleNativePath string) (*os.File, time.Time) {
	asset := &r.data.Assets[index]
	log.WithAsset(asset.id.String()).Trace().Msg("native asset is stale, reimporting")

	importer, ok := r.importers.get(asset.sourceFormat, asset.nativeFormat)
	if !ok {
		log.WithAsset(asset.id.String()).Warn().
			Str("source_format", asset.sourceFormat).
			Str("native_format", asset.nativeFormat).
			Msg("importer not found, serving stale asset")
		tmetrics.ReimportTotal.WithLabelValues("stale_served").Inc()
		stat, _ := staleFile.Stat()
		return staleFile, modTimeOf(stat)
	}

	nativeTmpAbsolute := staleNativePath + ".tmp"
	nativeTmpRel := pathutil.RelativeTo(nativeTmpAbsolute, r.root)
	lock := &Lock{registry: r}

	r.mu.Unlock()
	err := importer.Import(context.Background(), asset.SourceAbsolute(), nativeTmpRel, lock)
	r.mu.Lock()

	// The catalog may have mutated underneath us; re-derive everything.
	asset = &r.data.Assets[index]
	nativePath := asset.NativeAbsolute()

	if err != nil {
		log.WithAsset(asset.id.String()).Warn().Err(err).Msg("reimport failed, falling back to stale asset")
		tmetrics.ReimportTotal.WithLabelValues("failed").Inc()
		stat, _ := staleFile.Stat()
		return staleFile, modTimeOf(stat)
	}

	if err := os.Rename(nativeTmpAbsolute, nativePath); err != nil {
		log.WithAsset(asset.id.String()).Warn().Err(err).Msg("failed to rename reimported native file, falling back to stale asset")
		tmetrics.ReimportTotal.WithLabelValues("stale_served").Inc()
		stat, _ := staleFile.Stat()
		return staleFile, modTimeOf(stat)
	}

	newFile, err := os.Open(nativePath)
	if err != nil {
		// Per spec.md §4.5.2: a reopen failure after a successful
		// rename is reported, not swallowed. staleFile is closed and a
		// nil file is returned, which fetch reports as a FetchError
		// wrapping ErrReimportFailed.
		staleFile.Close()
		log.WithAsset(asset.id.String()).Warn().Err(err).Msg("failed to reopen reimported native file")
		tmetrics.ReimportTotal.WithLabelValues("failed").Inc()
		return nil, time.Time{}
	}

	staleFile.Close()
	tmetrics.ReimportTotal.WithLabelValues("reimported").Inc()
	stat, _ := newFile.Stat()
	return newFile, modTimeOf(stat)
}

// List returns every asset matching nativeFormat (if non-empty) and
// carrying every tag in tags, in catalog insertion order.
func (r *Registry) List(tags []string, nativeFormat string) []Asset {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Asset, 0, len(r.data.Assets))
	for _, a := range r.data.Assets {
		if nativeFormat != "" && a.nativeFormat != nativeFormat {
			continue
		}
		matched := true
		for _, tag := range tags {
			if !a.HasTag(tag) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, a)
		}
	}
	return out
}

// Remove deletes the asset's native file (logging, not failing, on error)
// and drops its catalog record. It does not Save; callers arrange that.
func (r *Registry) Remove(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := r.indexOf(id)
	if index < 0 {
		return &FetchError{Kind: FetchNotFound, Err: ErrNotFound}
	}

	asset := r.data.Assets[index]
	if err := os.Remove(asset.NativeAbsolute()); err != nil {
		log.WithAsset(id.String()).Warn().Err(err).Msg("failed to remove native asset file")
	}

	tmetrics.AssetsTotal.WithLabelValues(asset.nativeFormat).Dec()
	r.data.Assets = append(r.data.Assets[:index], r.data.Assets[index+1:]...)
	return nil
}

// indexOf returns the slice index of the asset with id, or -1. Must be
// called with r.mu held.
func (r *Registry) indexOf(id uuid.UUID) int {
	for i := range r.data.Assets {
		if r.data.Assets[i].id == id {
			return i
		}
	}
	return -1
}

func modTimeOf(fi os.FileInfo) time.Time {
	if fi == nil {
		return time.Time{}
	}
	return fi.ModTime()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
