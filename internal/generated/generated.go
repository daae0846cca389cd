// Package generated decides whether a declaration fragment was produced by a
// tool rather than written by hand.
package generated

import (
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/deadctor/internal/model"
)

// DefaultPatterns are gitignore-style path patterns of generated C# files.
var DefaultPatterns = []string{
	"*.g.cs",
	"*.g.i.cs",
	"*.generated.cs",
	"*.Generated.cs",
	"*.designer.cs",
	"*.Designer.cs",
	"*.AssemblyInfo.cs",
	"*.AssemblyAttributes.cs",
	"TemporaryGeneratedFile_*.cs",
	"obj/",
}

// DefaultHeaderMarkers are substrings of a file's leading comments that mark
// it as generated. Matching is case-insensitive.
var DefaultHeaderMarkers = []string{
	"<auto-generated",
	"<autogenerated",
}

// Detector implements the generated-code predicate.
type Detector struct {
	patterns      *ignore.GitIgnore
	headerMarkers []string
}

// New returns a Detector for the given path patterns and header markers.
func New(patterns, headerMarkers []string) *Detector {
	markers := make([]string, 0, len(headerMarkers))
	for _, m := range headerMarkers {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, strings.ToLower(m))
		}
	}
	return &Detector{
		patterns:      ignore.CompileIgnoreLines(patterns...),
		headerMarkers: markers,
	}
}

// IsGeneratedFile reports whether a file is generated, judged by its path
// and its leading comments.
func (d *Detector) IsGeneratedFile(path, header string) bool {
	if d.patterns != nil && d.patterns.MatchesPath(filepath.ToSlash(path)) {
		return true
	}
	lower := strings.ToLower(header)
	for _, m := range d.headerMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// IsGenerated reports whether a fragment is generated: it is declared in a
// generated file or carries a generated-code attribute.
func (d *Detector) IsGenerated(f *model.Fragment) bool {
	if model.HasMarkerKind(f.Markers, model.MarkerGenerated) {
		return true
	}
	if f.Tree != nil {
		return d.IsGeneratedFile(f.Tree.Path, f.Tree.Header)
	}
	return d.IsGeneratedFile(f.Name.File, "")
}
