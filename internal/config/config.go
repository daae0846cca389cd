// Package config loads deadctor's YAML configuration.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/deadctor/internal/generated"
	"github.com/phobologic/deadctor/internal/model"
	"github.com/phobologic/deadctor/internal/rule/ctorreach"
)

// FileName is the configuration file looked up in the analyzed root.
const FileName = ".deadctor.yaml"

// DefaultMaxFileSize skips files larger than 1 MB.
const DefaultMaxFileSize = 1_000_000

var (
	ErrUnknownMarkerKind = errors.New("unknown marker kind")
	ErrInvalidSeverity   = errors.New("invalid severity")
)

// Config holds all deadctor configuration.
type Config struct {
	// Workers bounds parse and analysis parallelism (0 = GOMAXPROCS).
	Workers int `yaml:"workers"`
	// UseIndex precomputes construction sites once per compilation.
	UseIndex    bool   `yaml:"use_index"`
	MaxFileSize int    `yaml:"max_file_size"`
	Severity    string `yaml:"severity"`

	ExemptBases        []string `yaml:"exempt_bases"`
	ExemptMarkers      []string `yaml:"exempt_markers"`
	TrustExternalBases bool     `yaml:"trust_external_bases"`

	// Markers maps a marker kind to the attribute names of that kind.
	Markers map[string][]string `yaml:"markers"`

	Generated GeneratedConfig `yaml:"generated"`
}

// GeneratedConfig configures generated-code detection.
type GeneratedConfig struct {
	Patterns      []string `yaml:"patterns"`
	HeaderMarkers []string `yaml:"header_markers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	exempt := make([]string, 0, len(ctorreach.DefaultExemptMarkers))
	for _, k := range ctorreach.DefaultExemptMarkers {
		exempt = append(exempt, string(k))
	}
	return &Config{
		UseIndex:      true,
		MaxFileSize:   DefaultMaxFileSize,
		Severity:      string(model.SeverityWarning),
		ExemptBases:   slices.Clone(ctorreach.DefaultExemptBases),
		ExemptMarkers: exempt,
		Markers: map[string][]string{
			string(model.MarkerSerialization): {
				"Serializable", "DataContract", "KnownType", "JsonObject",
				"JsonConverter", "JsonConstructor", "JsonSerializable",
				"ProtoContract", "MessagePackObject", "XmlRoot", "XmlType",
			},
			string(model.MarkerInjection): {
				"Export", "InheritedExport", "PartCreationPolicy",
				"ImportingConstructor", "Inject", "Injectable", "Service",
				"Component", "ActivatorUtilitiesConstructor",
			},
			string(model.MarkerInterop): {
				"StructLayout", "ComImport", "ComVisible", "Guid",
				"ClassInterface", "InterfaceType",
			},
			string(model.MarkerGenerated): {
				"GeneratedCode", "CompilerGenerated",
			},
			string(model.MarkerInformational): {
				"Obsolete", "DebuggerDisplay", "DebuggerStepThrough",
				"DebuggerNonUserCode", "Description", "DisplayName",
				"SuppressMessage", "ExcludeFromCodeCoverage",
				"EditorBrowsable", "Browsable",
			},
		},
		Generated: GeneratedConfig{
			Patterns:      slices.Clone(generated.DefaultPatterns),
			HeaderMarkers: slices.Clone(generated.DefaultHeaderMarkers),
		},
	}
}

// Load reads the configuration at path on top of the defaults. A missing
// file is not an error when optional is set.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks severities and marker kinds.
func (c *Config) Validate() error {
	if _, ok := model.ParseSeverity(c.Severity); !ok {
		return fmt.Errorf("%w %q", ErrInvalidSeverity, c.Severity)
	}
	for _, k := range c.ExemptMarkers {
		if !knownKind(k) {
			return fmt.Errorf("exempt_markers: %w %q", ErrUnknownMarkerKind, k)
		}
	}
	for k := range c.Markers {
		if !knownKind(k) || k == string(model.MarkerUnrecognized) {
			return fmt.Errorf("markers: %w %q", ErrUnknownMarkerKind, k)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

func knownKind(k string) bool {
	return slices.Contains(model.MarkerKinds, model.MarkerKind(k))
}

// MarkerTable returns the attribute-name lookup built from Markers.
func (c *Config) MarkerTable() model.MarkerTable {
	mt := make(model.MarkerTable)
	for kind, names := range c.Markers {
		for _, n := range names {
			mt[model.NormalizeAttribute(n)] = model.MarkerKind(kind)
		}
	}
	return mt
}

// ExemptMarkerKinds returns ExemptMarkers as marker kinds.
func (c *Config) ExemptMarkerKinds() []model.MarkerKind {
	kinds := make([]model.MarkerKind, 0, len(c.ExemptMarkers))
	for _, k := range c.ExemptMarkers {
		kinds = append(kinds, model.MarkerKind(k))
	}
	return kinds
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Hash returns a digest of the effective configuration and the version of
// the tool, used to invalidate cached results when either changes.
func (c *Config) Hash(toolVersion string) string {
	data, err := c.Marshal()
	if err != nil {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(toolVersion))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
