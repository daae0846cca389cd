package model

import (
	"cmp"
	"fmt"
	"slices"
)

// Location is a 1-based position in a source file.
type Location struct {
	File   string `json:"file" msgpack:"file"`
	Line   int    `json:"line" msgpack:"line"`
	Column int    `json:"column" msgpack:"column"`
}

// IsValid reports whether the location points into a file.
func (l Location) IsValid() bool {
	return l.File != "" && l.Line > 0
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// CompareLocations orders locations by file, line and column.
func CompareLocations(a, b Location) int {
	return cmp.Or(
		cmp.Compare(a.File, b.File),
		cmp.Compare(a.Line, b.Line),
		cmp.Compare(a.Column, b.Column),
	)
}

// Severity is the reported severity of a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ParseSeverity validates a severity name.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeverityInfo, SeverityWarning, SeverityError:
		return Severity(s), true
	}
	return "", false
}

// Diagnostic is one finding reported by a rule.
type Diagnostic struct {
	Rule     string   `json:"rule" msgpack:"rule"`
	Severity Severity `json:"severity" msgpack:"severity"`
	Location Location `json:"location" msgpack:"location"`
	Message  string   `json:"message" msgpack:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s [%s]", d.Location, d.Severity, d.Message, d.Rule)
}

// SortDiagnostics sorts ds by location, then rule, then message.
func SortDiagnostics(ds []Diagnostic) {
	slices.SortStableFunc(ds, func(a, b Diagnostic) int {
		return cmp.Or(
			CompareLocations(a.Location, b.Location),
			cmp.Compare(a.Rule, b.Rule),
			cmp.Compare(a.Message, b.Message),
		)
	})
}

// Report is the complete result of one analysis run.
type Report struct {
	Root        string       `json:"root" msgpack:"root"`
	Files       int          `json:"files" msgpack:"files"`
	Types       int          `json:"types" msgpack:"types"`
	Diagnostics []Diagnostic `json:"diagnostics" msgpack:"diagnostics"`
}
