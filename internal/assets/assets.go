// Package assets owns the output-directory layout: artifact naming,
// content hashing, and the mapping from on-disk artifacts to the public
// URLs they are served under.
package assets

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Reserved directories under the output root.
const (
	// BundleDir holds client hydration bundles.
	BundleDir = "__tabi"
	// StylesDir holds compiled stylesheets.
	StylesDir = "__styles"
	// SSRDir holds transient server-render artifacts, dev only.
	SSRDir = "__ssr"
)

// HashLength is the number of hex characters kept from the digest.
const HashLength = 8

// ContentHash returns the first 8 hex characters of the SHA-256 digest of
// content, uppercased. Identical input always yields the identical hash,
// which is what makes production filenames cache-safe.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)

	return strings.ToUpper(fmt.Sprintf("%x", sum)[:HashLength])
}

// BundleFileName names a client bundle artifact. Production names carry
// the content hash; dev names are deterministic so rebuilds overwrite in
// place.
func BundleFileName(routeFileName, hash string) string {
	if hash == "" {
		return routeFileName + ".js"
	}

	return routeFileName + "-" + hash + ".js"
}

// StylesheetFileName names a compiled stylesheet, with the same hash
// convention as bundles.
func StylesheetFileName(name, hash string) string {
	if hash == "" {
		return name + ".css"
	}

	return name + "-" + hash + ".css"
}

// SSREntryFileName names a transient synthesized entry. The timestamp and
// counter pair is unique for the life of the process.
func SSREntryFileName(ts int64, n uint64) string {
	return fmt.Sprintf("__entry_%d_%d.tsx", ts, n)
}

// SSRBundleFileName names a transient server bundle artifact.
func SSRBundleFileName(ts int64, n uint64) string {
	return fmt.Sprintf("__bundle_%d_%d.mjs", ts, n)
}

// PublicPath joins a base path and URL segments into the public path an
// artifact is served under. The base path may be empty; segments use
// forward slashes regardless of platform.
func PublicPath(basePath string, segments ...string) string {
	var b strings.Builder

	base := strings.TrimSuffix(basePath, "/")
	if base != "" && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	b.WriteString(base)

	for _, seg := range segments {
		seg = strings.Trim(seg, "/")
		if seg == "" {
			continue
		}
		b.WriteString("/")
		b.WriteString(seg)
	}

	if b.Len() == 0 {
		return "/"
	}

	return b.String()
}

// BundlePublicPath returns the URL for a client bundle file.
func BundlePublicPath(basePath, fileName string) string {
	return PublicPath(basePath, BundleDir, fileName)
}

// StylesheetPublicPath returns the URL for a compiled stylesheet.
func StylesheetPublicPath(basePath, fileName string) string {
	return PublicPath(basePath, StylesDir, fileName)
}
