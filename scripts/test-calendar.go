package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spontis-app/spontis/internal/calendar"
	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/pipeline"
)

func main() {
	zone, err := event.LoadZone("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading zone: %v\n", err)
		os.Exit(1)
	}

	now := time.Now().In(zone)
	tonight := time.Date(now.Year(), now.Month(), now.Day(), 20, 0, 0, 0, zone)

	// Two listings of the same concert from different sources
	raws := []event.Raw{
		{
			"source":    "USF Verftet",
			"title":     "Jazz Night: Trio Bergen",
			"url":       "https://usf.no/jazz-night",
			"venue":     "USF Verftet",
			"starts_at": tonight.Format(time.RFC3339),
			"tags":      []any{"music"},
		},
		{
			"source":    "Bergen Live",
			"title":     "Jazz night - Trio Bergen",
			"url":       "https://bergenlive.no/jazz",
			"starts_at": tonight.Format(time.RFC3339),
		},
	}

	res := pipeline.Run(raws, pipeline.Options{Zone: zone, Now: now})
	icsContent := calendar.GenerateICS(res.Events, zone)

	// Write to file (owner read/write only for security)
	filename := "test-spontis-feed.ics"
	if err := os.WriteFile(filename, []byte(icsContent), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated calendar file: %s (%d events)\n\n", filename, len(res.Events))
	fmt.Println("Test it by:")
	fmt.Println("1. Open the .ics file with your calendar app (double-click)")
	fmt.Println("2. Or import it into Google Calendar, Apple Calendar, or Outlook")
	fmt.Println("\nFile contents preview:")
	fmt.Println("---")
	fmt.Println(icsContent)
}
