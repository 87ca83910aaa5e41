// Package urlrewrite implements the one deterministic URL→path
// rewrite used by both fetch_articles (internal/tools) and the
// citation gate (internal/gate), so a citation's ref and a fetched
// article's path are always compared in the same normalized form.
package urlrewrite

import "strings"

// knownBlobPrefixes are GitHub-blob-style URL prefixes stripped before
// treating the remainder as the corpus path, per spec §6: "strip a
// known GitHub blob prefix and treat the remainder as the corpus
// path".
var knownBlobPrefixes = []string{
	"https://github.com/",
	"https://raw.githubusercontent.com/",
}

// ToPath rewrites a GitHub-blob or raw URL (or an already-bare path)
// into its corpus path. For github.com blob URLs, the /blob/<ref>/
// segment is dropped; for raw.githubusercontent.com URLs, the
// /<ref>/ segment after the repo slug is dropped. A value with no
// recognized prefix is returned unchanged — it is already a bare
// corpus path.
func ToPath(ref string) string {
	for _, prefix := range knownBlobPrefixes {
		if !strings.HasPrefix(ref, prefix) {
			continue
		}
		rest := strings.TrimPrefix(ref, prefix)
		segments := strings.SplitN(rest, "/", 5)
		// owner/repo/blob/ref/path... or owner/repo/ref/path...
		if len(segments) < 4 {
			return rest
		}
		if segments[2] == "blob" {
			if len(segments) < 5 {
				return rest
			}
			return segments[4]
		}
		return strings.SplitN(rest, "/", 4)[3]
	}
	return ref
}

// ToPaths rewrites a batch of refs, preserving order.
func ToPaths(refs []string) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = ToPath(r)
	}
	return out
}
