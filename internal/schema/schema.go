// Package schema validates events against the published JSON Schema.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/spontis-app/spontis/internal/event"
)

const schemaURL = "event.schema.json"

//go:embed event.schema.json
var schemaJSON []byte

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// Schema returns the compiled event schema.
func Schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		c.AssertFormat = true
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("compiling event schema: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// Raw returns the embedded schema document.
func Raw() []byte {
	return append([]byte(nil), schemaJSON...)
}

// ValidateEvent checks a single event.
func ValidateEvent(e *event.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding event: %w", err)
	}
	return validate(doc)
}

func validate(doc any) error {
	sch, err := Schema()
	if err != nil {
		return err
	}
	return sch.Validate(doc)
}

// Problem describes one invalid event in a feed.
type Problem struct {
	Index  int      `json:"index"`
	Title  string   `json:"title,omitempty"`
	Errors []string `json:"errors"`
}

// FeedReport summarizes validation of a whole feed.
type FeedReport struct {
	Total    int       `json:"total"`
	Valid    int       `json:"valid"`
	Problems []Problem `json:"problems,omitempty"`
}

// OK reports whether every event passed.
func (r FeedReport) OK() bool {
	return len(r.Problems) == 0
}

// ValidateFeed validates a JSON array of events. The error is reserved for
// input that is not a JSON array at all.
func ValidateFeed(data []byte) (FeedReport, error) {
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return FeedReport{}, fmt.Errorf("feed is not a JSON array: %w", err)
	}

	report := FeedReport{Total: len(items)}
	for i, item := range items {
		err := validate(item)
		if err == nil {
			report.Valid++
			continue
		}
		p := Problem{Index: i + 1, Errors: messages(err)}
		if m, ok := item.(map[string]any); ok {
			p.Title, _ = m["title"].(string)
		}
		report.Problems = append(report.Problems, p)
	}
	return report, nil
}

// messages flattens a validation error into leaf messages.
func messages(err error) []string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}
	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			loc := v.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", loc, v.Message))
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(verr)
	return out
}
