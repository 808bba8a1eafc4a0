// Package version exposes build metadata for expo-up.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags.
// Short and Full render them for the CLI; UserAgent identifies the tool to
// the update server.
package version
