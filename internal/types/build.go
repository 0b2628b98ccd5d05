package types

// BuildMode selects between the development and production bundling
// profiles.
type BuildMode string

const (
	// ModeDevelopment keeps output readable: no minification, inline
	// source maps, deterministic artifact names overwritten in place.
	ModeDevelopment BuildMode = "development"
	// ModeProduction minifies, drops source maps, and names artifacts by
	// content hash so they can coexist indefinitely.
	ModeProduction BuildMode = "production"
)

// Variant selects which synthesized entry a bundle run compiles.
type Variant string

const (
	// VariantClient bundles the hydration entry, self-contained.
	VariantClient Variant = "client"
	// VariantSSR bundles the server-render entry with the framework
	// runtime left external.
	VariantSSR Variant = "ssr"
)

// BundleOutput describes one artifact the bundler produced.
type BundleOutput struct {
	// OutputPath is the absolute path of the artifact on disk
	OutputPath string
	// PublicPath is the URL the artifact is served under
	PublicPath string
	// Hash is the 8-character uppercase content hash (production only)
	Hash string
}

// BuildResult is the ephemeral outcome of building one page. Nothing here
// is persisted between requests except the bundle artifacts on disk.
type BuildResult struct {
	// HTML is the fully rendered document
	HTML string
	// BundlePublicPath is the URL of the client hydration bundle
	BundlePublicPath string
	// StylesheetPublicPath is the URL of the compiled stylesheet, when
	// the site carries a style config ("" otherwise)
	StylesheetPublicPath string
}
