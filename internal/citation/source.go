// Package citation implements the citation-reconciliation engine: it turns
// retrieved source snippets plus the generation service's self-reported
// grounding metadata into a deduplicated numbered catalog, an answer with
// inline [n] markers, and a rendered sources block. Everything here is pure
// and request-scoped.
package citation

import "strings"

const (
	bucketScheme     = "gs://"
	storageURLPrefix = "https://storage.cloud.google.com/"
	storageURLSuffix = "?authuser=0"
)

// NormalizeSourceURL rewrites a gs://bucket/path storage location as an
// authenticated browser URL. Anything else, including the empty string,
// passes through unchanged.
func NormalizeSourceURL(location string) string {
	if strings.HasPrefix(location, bucketScheme) {
		return storageURLPrefix + strings.TrimPrefix(location, bucketScheme) + storageURLSuffix
	}
	return location
}
