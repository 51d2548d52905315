// Package source collects raw event records from configured sources.
//
// Sources are described in a YAML registry and come in three kinds: the
// TicketCo public API, a generic HTML listing page parsed with CSS selectors,
// and a JSON file written by an external scraper. Collect fetches them
// concurrently while keeping each source's failure isolated.
package source
