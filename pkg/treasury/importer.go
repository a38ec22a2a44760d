package treasury

import (
	"context"
	"fmt"

	"github.com/cuemby/treasury/pkg/log"
)

// Importer converts bytes in one source format to one native format. It
// is the dispatch boundary this package consumes; discovering and
// dynamically loading plugin binaries that implement it is out of scope
// here (the embedding program is expected to do that and call
// LoadImportersDir with the result).
type Importer interface {
	// Name identifies the importer for logging and diagnostics.
	Name() string

	// Import reads bytes from sourceAbs and writes native bytes to
	// root/nativeRelTmp. lock grants the importer access back into the
	// owning Registry so it can recursively Store sub-assets; the
	// importer must not retain lock past the call.
	Import(ctx context.Context, sourceAbs, nativeRelTmp string, lock *Lock) error
}

// formatPair keys the importer registry by (source_format, native_format).
type formatPair struct {
	sourceFormat string
	nativeFormat string
}

// ImporterRegistration pairs an Importer with the format pair it handles,
// the unit LoadImportersDir accepts.
type ImporterRegistration struct {
	SourceFormat string
	NativeFormat string
	Importer     Importer
}

// importerRegistry maps (source_format, native_format) to the first
// Importer registered for that pair. Later registrations for the same
// pair are ignored with a warning, matching spec.md's "first entry wins"
// rule.
type importerRegistry struct {
	entries map[formatPair]Importer
}

func newImporterRegistry() *importerRegistry {
	return &importerRegistry{entries: make(map[formatPair]Importer)}
}

func (r *importerRegistry) register(sourceFormat, nativeFormat string, imp Importer) {
	key := formatPair{sourceFormat, nativeFormat}
	if existing, exists := r.entries[key]; exists {
		log.Warn(fmt.Sprintf("importer %q ignored, %q already registered for %s", imp.Name(), existing.Name(), key))
		return
	}
	r.entries[key] = imp
}

func (r *importerRegistry) get(sourceFormat, nativeFormat string) (Importer, bool) {
	imp, ok := r.entries[formatPair{sourceFormat, nativeFormat}]
	return imp, ok
}

// String is used in warnings about ignored duplicate registrations.
func (p formatPair) String() string {
	return fmt.Sprintf("%s->%s", p.sourceFormat, p.nativeFormat)
}
