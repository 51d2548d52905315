// Package storage persists pipeline artifacts under a data directory.
//
// Layout:
//
//	events.json           canonical feed
//	today.json            derived views
//	tonight.json
//	heatmap.json
//	events.ics            optional calendar export
//	generated/meta.json   run metadata
//
// Every write goes to a temporary file in the target directory and is renamed
// into place, so readers never observe a partial file.
package storage
