// Package output renders analysis reports.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/phobologic/deadctor/internal/model"
	"github.com/phobologic/deadctor/internal/toon"
)

// Format names an output format.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	TOON Format = "toon"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case Text, JSON, TOON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format %q (want text, json or toon)", s)
}

// Write renders r to w. Colors apply to the text format only.
func Write(w io.Writer, f Format, r *model.Report, useColor bool) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case TOON:
		_, err := fmt.Fprintln(w, toon.Encode(r))
		return err
	default:
		return writeText(w, r, useColor)
	}
}

func writeText(w io.Writer, r *model.Report, useColor bool) error {
	for _, d := range r.Diagnostics {
		sev := severityColor(d.Severity)
		if useColor {
			sev.EnableColor()
		} else {
			sev.DisableColor()
		}
		if _, err := fmt.Fprintf(w, "%s: %s: %s [%s]\n",
			d.Location, sev.Sprint(d.Severity), d.Message, d.Rule); err != nil {
			return err
		}
	}
	return nil
}

func severityColor(s model.Severity) *color.Color {
	switch s {
	case model.SeverityError:
		return color.New(color.FgRed, color.Bold)
	case model.SeverityInfo:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgYellow, color.Bold)
	}
}
