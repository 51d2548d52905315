package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Kinds of source a registry entry can describe.
const (
	KindTicketCo = "ticketco"
	KindHTML     = "html"
	KindFile     = "file"
)

// Config is one registry entry.
type Config struct {
	Name           string          `yaml:"name" json:"name"`
	Type           string          `yaml:"type" json:"type"`
	EnvFlag        string          `yaml:"env_flag,omitempty" json:"env_flag,omitempty"`
	DefaultEnabled *bool           `yaml:"default_enabled,omitempty" json:"default_enabled,omitempty"`
	TicketCo       *TicketCoConfig `yaml:"ticketco,omitempty" json:"ticketco,omitempty"`
	HTML           *HTMLConfig     `yaml:"html,omitempty" json:"html,omitempty"`
	File           *FileConfig     `yaml:"file,omitempty" json:"file,omitempty"`
}

// TicketCoConfig lists the organizer slugs to query.
type TicketCoConfig struct {
	Slugs        []string `yaml:"slugs" json:"slugs"`
	DefaultVenue string   `yaml:"default_venue,omitempty" json:"default_venue,omitempty"`
	DefaultTags  []string `yaml:"default_tags,omitempty" json:"default_tags,omitempty"`
}

// HTMLConfig describes a listing page and the selectors for each item.
type HTMLConfig struct {
	URL           string   `yaml:"url" json:"url"`
	Item          string   `yaml:"item" json:"item"`
	Title         string   `yaml:"title" json:"title"`
	Link          string   `yaml:"link,omitempty" json:"link,omitempty"`
	Time          string   `yaml:"time,omitempty" json:"time,omitempty"`
	TimeAttribute string   `yaml:"time_attr,omitempty" json:"time_attr,omitempty"`
	Venue         string   `yaml:"venue,omitempty" json:"venue,omitempty"`
	DefaultVenue  string   `yaml:"default_venue,omitempty" json:"default_venue,omitempty"`
	DefaultTags   []string `yaml:"default_tags,omitempty" json:"default_tags,omitempty"`
}

// FileConfig points at a JSON array of raw records on disk.
type FileConfig struct {
	Path string `yaml:"path" json:"path"`
}

type registryFile struct {
	Sources []Config `yaml:"sources"`
}

// LoadRegistry reads and validates a YAML registry file. Relative file
// source paths are resolved against the registry's directory.
func LoadRegistry(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source registry: %w", err)
	}
	cfgs, err := ParseRegistry(data)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for i := range cfgs {
		if f := cfgs[i].File; f != nil && !filepath.IsAbs(f.Path) {
			f.Path = filepath.Join(dir, f.Path)
		}
	}
	return cfgs, nil
}

// ParseRegistry decodes registry YAML.
func ParseRegistry(data []byte) ([]Config, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing source registry: %w", err)
	}

	seen := make(map[string]bool, len(file.Sources))
	for i := range file.Sources {
		c := &file.Sources[i]
		c.Name = strings.TrimSpace(c.Name)
		c.Type = strings.ToLower(strings.TrimSpace(c.Type))
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("source %d: %w", i+1, err)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("source %d: duplicate name %q", i+1, c.Name)
		}
		seen[c.Name] = true
	}
	return file.Sources, nil
}

// Validate checks that the entry names a known kind with its settings.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch c.Type {
	case KindTicketCo:
		if c.TicketCo == nil || len(c.TicketCo.Slugs) == 0 {
			return fmt.Errorf("%s: ticketco.slugs is required", c.Name)
		}
	case KindHTML:
		if c.HTML == nil || c.HTML.URL == "" || c.HTML.Item == "" || c.HTML.Title == "" {
			return fmt.Errorf("%s: html.url, html.item and html.title are required", c.Name)
		}
	case KindFile:
		if c.File == nil || c.File.Path == "" {
			return fmt.Errorf("%s: file.path is required", c.Name)
		}
	default:
		return fmt.Errorf("%s: unknown type %q", c.Name, c.Type)
	}
	return nil
}

// IsDefaultEnabled reports the enabled state when the flag is unset.
func (c *Config) IsDefaultEnabled() bool {
	return c.DefaultEnabled == nil || *c.DefaultEnabled
}

// Enabled decides whether the source runs. Without an env flag it always
// runs. With one, an unset flag means the default; a default-enabled source
// is only turned off by "0" and a default-disabled one only turned on by "1".
func (c *Config) Enabled(lookup func(string) (string, bool)) bool {
	if c.EnvFlag == "" {
		return true
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw, ok := lookup(c.EnvFlag)
	if !ok {
		return c.IsDefaultEnabled()
	}
	if c.IsDefaultEnabled() {
		return raw != "0"
	}
	return raw == "1"
}

// Deps carries what sources need to fetch.
type Deps struct {
	Client Getter
	Zone   *time.Location
}

// Build constructs the enabled sources in registry order.
func Build(cfgs []Config, deps Deps, lookup func(string) (string, bool)) ([]Source, error) {
	var out []Source
	for i := range cfgs {
		c := &cfgs[i]
		if !c.Enabled(lookup) {
			continue
		}
		src, err := New(c, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// New constructs the source for a single registry entry.
func New(c *Config, deps Deps) (Source, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Type {
	case KindTicketCo:
		return NewTicketCo(c.Name, *c.TicketCo, deps.Client, deps.Zone), nil
	case KindHTML:
		return NewHTML(c.Name, *c.HTML, deps.Client, deps.Zone), nil
	default:
		return NewFile(c.Name, c.File.Path), nil
	}
}
