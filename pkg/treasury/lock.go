package treasury

import "github.com/google/uuid"

// Lock is the capability an Importer is handed so it can recursively
// register sub-assets while its own Import call is in flight. It does not
// carry the registry's mutex itself — the core always releases that
// mutex before invoking an importer, precisely so a plugin can never
// retain a live guard across a call it does not control (the "must not
// retain past an await point" rule in spec.md is enforced by construction
// here rather than by convention). Store re-acquires the mutex for the
// duration of its own bookkeeping, exactly as a top-level call to
// Registry.Store would.
type Lock struct {
	registry *Registry
}

// Store recursively registers a sub-asset on the same registry the
// calling importer was invoked from.
func (l *Lock) Store(source, sourceFormat, nativeFormat string, tags []string) (uuid.UUID, error) {
	return l.registry.Store(source, sourceFormat, nativeFormat, tags)
}

// Root returns the registry's root directory, useful for importers that
// need to resolve sibling paths.
func (l *Lock) Root() string {
	return l.registry.root
}
