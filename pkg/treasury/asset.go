package treasury

import (
	"encoding/json"
	"path/filepath"

	"github.com/google/uuid"
)

// Asset is an immutable-once-published catalog record: an identity plus
// the paths, formats, and tags needed to locate and serve its native
// bytes. Only the uuid, source, source_format, native_format, and tags
// fields are serialized to the manifest; the absolute paths are derived
// from root on load via updateAbsPaths.
type Asset struct {
	id             uuid.UUID
	source         string
	sourceFormat   string
	nativeFormat   string
	tags           []string
	sourceAbsolute string
	nativeAbsolute string
}

// newAsset constructs a fully hydrated Asset, as Registry.Store does right
// after a successful import.
func newAsset(id uuid.UUID, source, sourceFormat, nativeFormat string, tags []string, sourceAbsolute, nativeAbsolute string) Asset {
	return Asset{
		id:             id,
		source:         source,
		sourceFormat:   sourceFormat,
		nativeFormat:   nativeFormat,
		tags:           append([]string(nil), tags...),
		sourceAbsolute: sourceAbsolute,
		nativeAbsolute: nativeAbsolute,
	}
}

// UUID returns the asset's identifier.
func (a *Asset) UUID() uuid.UUID { return a.id }

// Source returns the path relative to the registry root, or the absolute
// source path when it shares no leading path component with the root.
func (a *Asset) Source() string { return a.source }

// SourceFormat returns the authoring format identifier.
func (a *Asset) SourceFormat() string { return a.sourceFormat }

// NativeFormat returns the downstream-consumable format identifier.
func (a *Asset) NativeFormat() string { return a.nativeFormat }

// Tags returns the asset's tag set. Callers must not mutate the result.
func (a *Asset) Tags() []string { return a.tags }

// HasTag reports whether tag is present in the asset's tag set.
func (a *Asset) HasTag(tag string) bool {
	for _, t := range a.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SourceAbsolute returns the absolute path to the source file.
func (a *Asset) SourceAbsolute() string { return a.sourceAbsolute }

// NativeAbsolute returns the absolute path to the native blob.
func (a *Asset) NativeAbsolute() string { return a.nativeAbsolute }

// updateAbsPaths rehydrates the absolute source/native paths after the
// asset has been deserialized from the manifest. It must be called
// exactly once per load.
func (a *Asset) updateAbsPaths(root string) {
	source := filepath.FromSlash(a.source)
	if !filepath.IsAbs(source) {
		source = filepath.Join(root, source)
	}
	a.sourceAbsolute = source
	a.nativeAbsolute = nativeAbsolutePath(root, a.id)
}

// nativeAbsolutePath computes root/.treasury/<uuid-hyphenated> for id.
func nativeAbsolutePath(root string, id uuid.UUID) string {
	return filepath.Join(root, treasuryDirName, id.String())
}

// assetDoc is the on-disk JSON shape of an Asset — the subset of fields
// that round-trip through the manifest. Unknown fields are ignored on
// load for forward compatibility, which is the default behavior of
// encoding/json when decoding into a known struct.
type assetDoc struct {
	UUID         string   `json:"uuid"`
	Source       string   `json:"source"`
	SourceFormat string   `json:"source_format"`
	NativeFormat string   `json:"native_format"`
	Tags         []string `json:"tags"`
}

// MarshalJSON implements json.Marshaler, emitting only the manifest's
// documented fields.
func (a Asset) MarshalJSON() ([]byte, error) {
	tags := a.tags
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(assetDoc{
		UUID:         a.id.String(),
		Source:       a.source,
		SourceFormat: a.sourceFormat,
		NativeFormat: a.nativeFormat,
		Tags:         tags,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Absolute paths are left
// unset; callers must call updateAbsPaths after decoding.
func (a *Asset) UnmarshalJSON(data []byte) error {
	var doc assetDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	id, err := uuid.Parse(doc.UUID)
	if err != nil {
		return err
	}

	a.id = id
	a.source = doc.Source
	a.sourceFormat = doc.SourceFormat
	a.nativeFormat = doc.NativeFormat
	a.tags = doc.Tags
	return nil
}
