// Package internal contains the implementation packages for tabi.
//
// These follow Go's internal package convention: they are not
// importable from outside the module and exist to serve the tabi CLI.
//
// # Package Organization
//
// The packages split along the stages of the build pipeline:
//
//   - manifest: pages/public scanning and the immutable route manifest
//   - synth: entry module synthesis for client and server bundles
//   - bundler: esbuild orchestration with content-hashed outputs
//   - render: out-of-process JS rendering of synthesized server bundles
//   - styles: stylesheet compilation via an external CLI
//   - builder: page and site assembly on top of the stages above
//   - devserver: dev HTTP server, file watching and live reload
//   - scaffold: starter files for new projects
//
// Supporting packages: config (viper-backed configuration), errors
// (structured error taxonomy with diagnostics), logging (slog wrapper),
// types (shared value types), validation (path, route, command and
// origin checks), watcher (debounced fsnotify) and version (build
// metadata).
//
// # Data Flow
//
// The manifest is the hub: the scanner produces it, a holder publishes
// it atomically, and the builder, dev server and synthesizer all read
// the same snapshot. Builds never mutate a manifest; file changes
// produce a fresh one and bump its generation.
//
// External processes are confined to three seams: esbuild runs in
// process through its Go API, rendering and stylesheet compilation each
// run an allowlisted command with a timeout, and isolate mode moves the
// whole page build into a worker subprocess speaking a one-line JSON
// protocol.
package internal
