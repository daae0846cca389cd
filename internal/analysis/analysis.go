// Package analysis runs rules over every type symbol of a compilation.
//
// A Rule is invoked once per declared type with a Pass describing that type.
// Rules read the immutable compilation and report diagnostics through the
// pass; the driver collects them in a shared sink.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/deadctor/internal/model"
)

// Descriptor describes the diagnostics a rule produces.
type Descriptor struct {
	ID       string
	Title    string
	Severity model.Severity
	// MessageFormat has exactly one %s substitution slot.
	MessageFormat string
}

// Rule is one check over type symbols.
type Rule struct {
	Descriptor Descriptor
	Run        func(ctx context.Context, pass *Pass) error
}

// ID returns the rule's stable identifier.
func (r *Rule) ID() string {
	return r.Descriptor.ID
}

// Pass carries the inputs of one rule invocation.
type Pass struct {
	Rule        *Rule
	Symbol      *model.TypeSymbol
	Compilation *model.Compilation
	Severity    model.Severity
	Logger      *zap.Logger

	report func(model.Diagnostic)
}

// Report records a diagnostic.
func (p *Pass) Report(d model.Diagnostic) {
	p.report(d)
}

// Reportf records a diagnostic at loc whose message is the rule's message
// format applied to arg.
func (p *Pass) Reportf(loc model.Location, arg string) {
	p.report(model.Diagnostic{
		Rule:     p.Rule.ID(),
		Severity: p.Severity,
		Location: loc,
		Message:  fmt.Sprintf(p.Rule.Descriptor.MessageFormat, arg),
	})
}

// Sink is an append-only, concurrency-safe diagnostic collector.
type Sink struct {
	mu    sync.Mutex
	diags []model.Diagnostic
}

// Add appends a diagnostic.
func (s *Sink) Add(d model.Diagnostic) {
	s.mu.Lock()
	s.diags = append(s.diags, d)
	s.mu.Unlock()
}

// Diagnostics returns a sorted copy of the collected diagnostics.
func (s *Sink) Diagnostics() []model.Diagnostic {
	s.mu.Lock()
	out := make([]model.Diagnostic, len(s.diags))
	copy(out, s.diags)
	s.mu.Unlock()
	model.SortDiagnostics(out)
	return out
}

// Options configures Run.
type Options struct {
	// Workers bounds concurrent rule invocations. Zero means GOMAXPROCS.
	Workers int
	// Severity overrides the default severity per rule id.
	Severity map[string]model.Severity
	Logger   *zap.Logger
}

// Run invokes every rule once per type symbol of comp and returns the
// collected diagnostics sorted by location. Rule failures are logged and
// skipped; only cancellation of ctx is returned as an error, together with
// whatever was reported before it.
func Run(ctx context.Context, comp *model.Compilation, rules []*Rule, opts Options) ([]model.Diagnostic, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var sink Sink
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

dispatch:
	for sym := range comp.Types() {
		for _, r := range rules {
			if gctx.Err() != nil {
				break dispatch
			}
			pass := &Pass{
				Rule:        r,
				Symbol:      sym,
				Compilation: comp,
				Severity:    severity(r, opts.Severity),
				Logger:      logger.With(zap.String("rule", r.ID()), zap.String("type", sym.FullName)),
				report:      sink.Add,
			}
			g.Go(func() error {
				return invoke(gctx, pass)
			})
		}
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return sink.Diagnostics(), err
}

func severity(r *Rule, overrides map[string]model.Severity) model.Severity {
	if s, ok := overrides[r.ID()]; ok {
		return s
	}
	if r.Descriptor.Severity == "" {
		return model.SeverityWarning
	}
	return r.Descriptor.Severity
}

// invoke runs one rule on one symbol. Panics and rule errors degrade to a
// skipped symbol.
func invoke(ctx context.Context, pass *Pass) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pass.Logger.Error("rule panicked", zap.Any("panic", r))
			err = nil
		}
	}()

	if err := pass.Rule.Run(ctx, pass); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		pass.Logger.Warn("rule failed, skipping type", zap.Error(err))
	}
	return nil
}
