// Package cli implements the spontis command-line interface.
//
// The root command loads configuration from the environment (optionally
// seeded from a .env file) and dispatches to subcommands: run executes the
// whole feed pipeline, views rebuilds the derived views from an existing
// feed, validate schema-checks a feed, sources lists the registry, report
// summarizes the last run and serve exposes the feed over HTTP.
package cli
