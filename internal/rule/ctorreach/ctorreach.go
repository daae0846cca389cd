// Package ctorreach implements the class-not-instantiable rule: a class whose
// constructors are all private and which is never constructed anywhere in the
// compilation is dead code.
//
// Each type symbol goes through four gates in order of cost: the classifier
// and the constructor filter look only at the symbol, the searcher scans the
// whole compilation, and the collector and reporter run only when the search
// came back empty. Any uncertainty along the way skips the type.
package ctorreach

import (
	"context"

	"go.uber.org/zap"

	"github.com/phobologic/deadctor/internal/analysis"
	"github.com/phobologic/deadctor/internal/model"
)

const (
	// RuleID is the stable identifier of the rule.
	RuleID = "S3453"
	// MessageFormat is the diagnostic message template.
	MessageFormat = "This class can't be instantiated; make %s 'public'."

	singularPhrase = "its constructor"
	pluralPhrase   = "at least one of its constructors"
)

// DefaultExemptBases are framework base types whose derived classes must keep
// constructor accessibility under runtime control.
var DefaultExemptBases = []string{
	"System.Runtime.InteropServices.SafeHandle",
	"Microsoft.Win32.SafeHandles.SafeHandleZeroOrMinusOneIsInvalid",
	"Microsoft.Win32.SafeHandles.SafeHandleMinusOneIsInvalid",
	"System.Runtime.InteropServices.CriticalHandle",
	"Microsoft.Win32.SafeHandles.CriticalHandleZeroOrMinusOneIsInvalid",
	"Microsoft.Win32.SafeHandles.CriticalHandleMinusOneIsInvalid",
}

// DefaultExemptMarkers are the marker kinds that change instantiation
// semantics. Any attribute not otherwise classified counts.
var DefaultExemptMarkers = []model.MarkerKind{
	model.MarkerSerialization,
	model.MarkerInjection,
	model.MarkerInterop,
	model.MarkerGenerated,
	model.MarkerUnrecognized,
}

// Options configures a Checker.
type Options struct {
	ExemptBases   []string
	ExemptMarkers []model.MarkerKind
	// TrustExternalBases treats base classes outside the compilation as
	// harmless instead of skipping the type.
	TrustExternalBases bool
	// IsGenerated reports generated fragments. Nil means none are.
	IsGenerated func(*model.Fragment) bool
	// Searcher finds construction sites. Nil means a linear scan.
	Searcher Searcher
	Severity model.Severity
}

// Checker holds the configured rule.
type Checker struct {
	opts        Options
	exemptFull  map[string]struct{}
	exemptShort map[string]struct{}
}

// New returns a Checker for opts.
func New(opts Options) *Checker {
	if opts.Searcher == nil {
		opts.Searcher = ScanSearcher{}
	}
	if opts.IsGenerated == nil {
		opts.IsGenerated = func(*model.Fragment) bool { return false }
	}
	if opts.Severity == "" {
		opts.Severity = model.SeverityWarning
	}
	c := &Checker{
		opts:        opts,
		exemptFull:  make(map[string]struct{}),
		exemptShort: make(map[string]struct{}),
	}
	for _, b := range opts.ExemptBases {
		b = normalizeTypeName(b)
		c.exemptFull[b] = struct{}{}
		c.exemptShort[shortName(b)] = struct{}{}
	}
	return c
}

// Rule returns the rule registration for the analysis driver.
func (c *Checker) Rule() *analysis.Rule {
	return &analysis.Rule{
		Descriptor: analysis.Descriptor{
			ID:            RuleID,
			Title:         "Classes should not have only private constructors",
			Severity:      c.opts.Severity,
			MessageFormat: MessageFormat,
		},
		Run: c.run,
	}
}

func (c *Checker) run(ctx context.Context, pass *analysis.Pass) error {
	sym := pass.Symbol
	if ok, reason := c.Eligible(sym); !ok {
		pass.Logger.Debug("skipping type", zap.String("reason", reason))
		return nil
	}
	ctors, ok, reason := c.LockedConstructors(sym)
	if !ok {
		pass.Logger.Debug("skipping type", zap.String("reason", reason))
		return nil
	}

	constructed, err := c.opts.Searcher.Constructed(ctx, pass.Compilation, sym)
	if err != nil {
		return err
	}
	if constructed {
		return nil
	}

	Report(pass, ctors, c.Fragments(sym))
	return nil
}
