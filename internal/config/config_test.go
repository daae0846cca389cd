package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/deadctor/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	if !cfg.UseIndex {
		t.Error("index should be on by default")
	}
	if cfg.Severity != string(model.SeverityWarning) {
		t.Errorf("Severity = %q, want warning", cfg.Severity)
	}
	if slices.Contains(cfg.ExemptMarkers, string(model.MarkerInformational)) {
		t.Error("informational markers should not exempt by default")
	}
}

func TestLoadMissingOptional(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), FileName), true)
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("missing optional config should yield defaults (-want +got):\n%s", diff)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), FileName), false)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `workers: 3
use_index: false
severity: error
exempt_bases:
  - Native.HandleBase
exempt_markers: [serialization]
trust_external_bases: true
generated:
  patterns: ["Migrations/"]
`)
	cfg, err := Load(path, false)
	require.NoError(t, err)

	if cfg.Workers != 3 || cfg.UseIndex || cfg.Severity != "error" || !cfg.TrustExternalBases {
		t.Errorf("scalar overrides not applied: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"Native.HandleBase"}, cfg.ExemptBases); diff != "" {
		t.Errorf("ExemptBases (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.MarkerKind{model.MarkerSerialization}, cfg.ExemptMarkerKinds()); diff != "" {
		t.Errorf("ExemptMarkerKinds (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Migrations/"}, cfg.Generated.Patterns); diff != "" {
		t.Errorf("patterns (-want +got):\n%s", diff)
	}
	// Keys absent from the file keep their defaults.
	if cfg.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("MaxFileSize = %d, want default", cfg.MaxFileSize)
	}
	if len(cfg.Generated.HeaderMarkers) == 0 {
		t.Error("header markers should keep their defaults")
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"bad severity", "severity: loud\n", ErrInvalidSeverity},
		{"bad exempt marker", "exempt_markers: [magic]\n", ErrUnknownMarkerKind},
		{"bad marker table kind", "markers:\n  magic: [Foo]\n", ErrUnknownMarkerKind},
		{"unrecognized is not assignable", "markers:\n  unrecognized: [Foo]\n", ErrUnknownMarkerKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tt.content), false)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	_, err := Load(writeConfig(t, "workers: [1, 2]\n"), false)
	if err == nil {
		t.Error("malformed YAML should fail")
	}
	_, err = Load(writeConfig(t, "workers: -1\n"), false)
	if err == nil {
		t.Error("negative workers should fail")
	}
}

func TestMarkerTable(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Markers = map[string][]string{
		string(model.MarkerSerialization): {"DataContractAttribute", "System.Serializable"},
		string(model.MarkerInformational): {"Obsolete"},
	}
	want := model.MarkerTable{
		"DataContract": model.MarkerSerialization,
		"Serializable": model.MarkerSerialization,
		"Obsolete":     model.MarkerInformational,
	}
	if diff := cmp.Diff(want, cfg.MarkerTable()); diff != "" {
		t.Errorf("MarkerTable (-want +got):\n%s", diff)
	}
}

func TestHash(t *testing.T) {
	t.Parallel()

	a, b := Default(), Default()
	if a.Hash("1.0.0") != b.Hash("1.0.0") {
		t.Error("equal configs should hash equal")
	}
	if a.Hash("1.0.0") == a.Hash("1.1.0") {
		t.Error("a new tool version should change the hash")
	}
	b.TrustExternalBases = true
	if a.Hash("1.0.0") == b.Hash("1.0.0") {
		t.Error("different configs should hash differently")
	}
}
