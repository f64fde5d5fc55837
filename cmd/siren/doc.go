// Package main hosts the siren CLI entrypoint and command graph.
//
// The Cobra command tree maps terminal invocations onto the internal
// packages: `get` and `sync` drive the download workflow, `albums`, `songs`,
// `album` and `song` browse the Monster Siren catalog, `cache` edits the local
// metadata cache, and `config` and `doctor` help set things up. Configuration
// is resolved once per invocation and shared by every subcommand.
//
// Keep this package thin. New behavior belongs in internal/ first and is
// surfaced here as a command or flag.
package main
