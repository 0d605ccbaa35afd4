// Package version exposes build metadata for nursery-speaker.
//
// Version, Commit and BuildTime are injected with -ldflags at build time.
// Full is printed by the `version` subcommand, UserAgent is sent with every
// request to the command source.
package version
