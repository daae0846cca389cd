// Package index precomputes which types are constructed where, once per
// compilation, so per-type reachability checks become map lookups.
package index

import (
	"context"
	"slices"

	"github.com/phobologic/deadctor/internal/model"
)

// Index maps each constructed type to the sites that construct it.
type Index struct {
	comp  *model.Compilation
	sites map[model.TypeID][]model.ConstructionSite
}

// Build scans every tree of comp once. It returns ctx.Err() if cancelled
// between trees.
func Build(ctx context.Context, comp *model.Compilation) (*Index, error) {
	idx := &Index{
		comp:  comp,
		sites: make(map[model.TypeID][]model.ConstructionSite),
	}
	for _, tree := range comp.Trees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range tree.Sites {
			site := tree.Sites[i]
			seen := make(map[model.TypeID]struct{}, len(site.Targets))
			for _, id := range site.Targets {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				idx.sites[id] = append(idx.sites[id], site)
			}
		}
	}

	// Sort for deterministic output
	for id := range idx.sites {
		slices.SortStableFunc(idx.sites[id], func(a, b model.ConstructionSite) int {
			return model.CompareLocations(a.Location, b.Location)
		})
	}
	return idx, nil
}

// Count returns how many sites may construct id.
func (x *Index) Count(id model.TypeID) int {
	return len(x.sites[id])
}

// Sites returns the sites that may construct id, ordered by location.
func (x *Index) Sites(id model.TypeID) []model.ConstructionSite {
	return x.sites[id]
}

// Constructed reports whether sym has any construction site. A compilation
// other than the indexed one falls back to a linear scan.
func (x *Index) Constructed(ctx context.Context, comp *model.Compilation, sym *model.TypeSymbol) (bool, error) {
	if comp != x.comp {
		return comp.Constructs(ctx, sym.ID)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return x.Count(sym.ID) > 0, nil
}
