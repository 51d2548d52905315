// Package event defines the canonical event listing and the time handling
// shared by every pipeline stage.
//
// All timestamps are normalized to a single fixed zone (Europe/Oslo unless
// configured otherwise) with second precision. Raw records from sources stay
// untyped (Raw) until the sanitizer turns them into Events.
package event
