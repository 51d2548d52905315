// Package normalize sanitizes raw source records into canonical events.
//
// The Sanitizer enforces the required source/title/url fields, coerces scalar
// values to trimmed strings, cleans tag and source lists, parses timestamps into
// the fixed zone and drops anything empty so no placeholder value reaches the
// feed. Records that cannot be repaired come back as a *Rejection.
package normalize
