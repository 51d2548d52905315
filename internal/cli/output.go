package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spontis-app/spontis/internal/report"
	"github.com/spontis-app/spontis/internal/schema"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

func parseFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if format != FormatText && format != FormatJSON {
		return "", usagef("invalid format: %s (must be 'text' or 'json')", s)
	}
	return format, nil
}

// writeJSON outputs v as indented JSON
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// sourceRow is one line of the sources listing.
type sourceRow struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	EnvFlag string `json:"env_flag,omitempty"`
	Enabled bool   `json:"enabled"`
	Target  string `json:"target,omitempty"`
}

func writeSources(w io.Writer, rows []sourceRow, format OutputFormat) error {
	if format == FormatJSON {
		if rows == nil {
			rows = []sourceRow{}
		}
		return writeJSON(w, rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "No sources configured.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tENABLED\tFLAG\tTARGET")
	enabled := 0
	for _, r := range rows {
		state := "no"
		if r.Enabled {
			state = "yes"
			enabled++
		}
		flag := r.EnvFlag
		if flag == "" {
			flag = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.Type, state, flag, r.Target)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal: %d sources, %d enabled\n", len(rows), enabled)
	return nil
}

func writeValidation(w io.Writer, path string, rep schema.FeedReport, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, rep)
	}

	if rep.OK() {
		fmt.Fprintf(w, "%s: %d events, all valid\n", path, rep.Total)
		return nil
	}

	fmt.Fprintf(w, "%s: %d of %d events invalid\n", path, len(rep.Problems), rep.Total)
	for _, p := range rep.Problems {
		title := p.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "\n  #%d %s\n", p.Index, title)
		for _, msg := range p.Errors {
			fmt.Fprintf(w, "     %s\n", msg)
		}
	}
	return nil
}

func writeRunSummary(w io.Writer, meta *report.Meta, out string) error {
	p := meta.Pipeline
	_, err := fmt.Fprintf(w, "Wrote %d events to %s (raw: %d, rejected: %d, merged: %d, stale: %d, failed sources: %d)\n",
		meta.TotalEvents, out, p.Raw, p.Rejected+p.Invalid, p.DedupeMerged+p.Merged, p.Stale, len(meta.SourceFailures))
	return err
}
