// Package calendar exports the event feed as an iCalendar (RFC 5545) file.
package calendar
