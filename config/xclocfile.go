package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/xcloc/langtable"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// FileName is the project settings file.
const FileName = ".xcloc.yaml"

// ErrInvalidSetting is wrapped by every validation error of .xcloc.yaml.
var ErrInvalidSetting = errors.New("invalid setting")

// File is the .xcloc.yaml structure. Zero values mean "not set"; command
// line flags override whatever is set here.
type File struct {
	// Input is the catalog to translate, relative to the project root.
	Input string `yaml:"input,omitempty"`
	// Output is where the translated catalog goes.
	Output string `yaml:"output,omitempty"`
	// Languages replaces the default locale table.
	Languages Languages `yaml:"languages,omitempty"`

	BatchSize         int           `yaml:"batch_size,omitempty"`
	MaxWorkers        int           `yaml:"max_workers,omitempty"`
	BatchDelay        time.Duration `yaml:"batch_delay,omitempty"`
	Sequential        bool          `yaml:"sequential,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"`

	Provider string        `yaml:"provider,omitempty"`
	Model    string        `yaml:"model,omitempty"`
	BaseURL  string        `yaml:"base_url,omitempty"`
	Prompt   string        `yaml:"prompt,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	// MaxRetries is nil when unset so that 0 can turn retries off.
	MaxRetries *int   `yaml:"max_retries,omitempty"`
	Proxy      string `yaml:"proxy,omitempty"`
}

// Languages is either a list of codes or an ordered "code: Name" mapping.
// Codes given as a list get their names from the locale table.
type Languages []langtable.Locale

// UnmarshalYAML accepts a sequence of codes or a mapping of code to name,
// keeping document order.
func (l *Languages) UnmarshalYAML(node *yaml.Node) error {
	var out Languages
	switch node.Kind {
	case yaml.SequenceNode:
		for _, n := range node.Content {
			if n.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: language must be a code", n.Line)
			}
			out = append(out, langtable.Locale{Code: n.Value})
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, v := node.Content[i], node.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: name of %q must be a string", v.Line, k.Value)
			}
			out = append(out, langtable.Locale{Code: k.Value, Name: v.Value})
		}
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			break
		}
		for _, code := range strings.FieldsFunc(node.Value, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, langtable.Locale{Code: code})
		}
	default:
		return fmt.Errorf("line %d: languages must be a list or a mapping", node.Line)
	}
	*l = out
	return nil
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadFile loads and validates .xcloc.yaml from rootDir. It returns nil
// if the file does not exist.
func LoadFile(rootDir string) (*File, error) {
	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

func (f *File) validate() error {
	switch {
	case f.BatchSize < 0:
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidSetting, f.BatchSize)
	case f.MaxWorkers < 0:
		return fmt.Errorf("%w: max_workers must be positive, got %d", ErrInvalidSetting, f.MaxWorkers)
	case f.BatchDelay < 0:
		return fmt.Errorf("%w: batch_delay must not be negative, got %s", ErrInvalidSetting, f.BatchDelay)
	case f.RequestsPerSecond < 0:
		return fmt.Errorf("%w: requests_per_second must not be negative, got %g", ErrInvalidSetting, f.RequestsPerSecond)
	case f.Timeout < 0:
		return fmt.Errorf("%w: timeout must not be negative, got %s", ErrInvalidSetting, f.Timeout)
	case f.MaxRetries != nil && *f.MaxRetries < 0:
		return fmt.Errorf("%w: max_retries must not be negative, got %d", ErrInvalidSetting, *f.MaxRetries)
	}

	resolved := make(Languages, 0, len(f.Languages))
	seen := make(map[string]bool)
	for _, l := range f.Languages {
		loc, err := langtable.WithName(l.Code, l.Name)
		if err != nil {
			return fmt.Errorf("%w: languages: %v", ErrInvalidSetting, err)
		}
		if seen[loc.Code] {
			continue
		}
		seen[loc.Code] = true
		resolved = append(resolved, loc)
	}
	f.Languages = resolved
	return nil
}

// Locales returns the configured locale table, or the default one.
func (f *File) Locales() []langtable.Locale {
	if f == nil || len(f.Languages) == 0 {
		return langtable.Default()
	}
	return append([]langtable.Locale(nil), f.Languages...)
}
