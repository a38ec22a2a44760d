// Package pathutil provides the small set of filesystem-path helpers the
// treasury registry needs to keep its manifest portable across root
// relocations and to derive a monotonic version token from a file's mtime.
package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// RelativeTo returns path expressed relative to root. Both path and root
// must be absolute. If path and root share no common prefix, path is
// returned unchanged (there is no relative form across filesystem roots
// on at least one platform this needs to support).
func RelativeTo(path, root string) string {
	mustAbs("path", path)
	mustAbs("root", root)

	pathParts := splitPath(path)
	rootParts := splitPath(root)

	prefix := 0
	for prefix < len(pathParts) && prefix < len(rootParts) && pathParts[prefix] == rootParts[prefix] {
		prefix++
	}

	if prefix == 0 {
		return path
	}

	var b strings.Builder
	for i := prefix; i < len(rootParts); i++ {
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString("..")
	}
	for _, part := range pathParts[prefix:] {
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(part)
	}

	if b.Len() == 0 {
		return "."
	}
	return filepath.FromSlash(b.String())
}

// VersionFromMtime returns the millisecond count since the Unix epoch,
// the opaque monotonic token exposed to callers as an asset's version.
func VersionFromMtime(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}

func splitPath(p string) []string {
	clean := filepath.Clean(p)
	clean = filepath.ToSlash(clean)
	parts := strings.Split(clean, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func mustAbs(name, p string) {
	if !filepath.IsAbs(p) {
		panic(fmt.Sprintf("pathutil: %s must be absolute, got %q", name, p))
	}
}
