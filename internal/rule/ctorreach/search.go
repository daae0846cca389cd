package ctorreach

import (
	"context"

	"github.com/phobologic/deadctor/internal/model"
)

// Searcher answers whether a type is constructed anywhere in a compilation.
type Searcher interface {
	Constructed(ctx context.Context, comp *model.Compilation, sym *model.TypeSymbol) (bool, error)
}

// ScanSearcher scans every syntax tree and stops at the first site that
// constructs the type. ctx is checked between trees.
type ScanSearcher struct{}

// Constructed implements Searcher.
func (ScanSearcher) Constructed(ctx context.Context, comp *model.Compilation, sym *model.TypeSymbol) (bool, error) {
	return comp.Constructs(ctx, sym.ID)
}
