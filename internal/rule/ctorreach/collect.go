package ctorreach

import "github.com/phobologic/deadctor/internal/model"

// Fragments returns the reportable declaration fragments of sym in
// declaration order: generated fragments and fragments without a name
// location are left out.
func (c *Checker) Fragments(sym *model.TypeSymbol) []*model.Fragment {
	var out []*model.Fragment
	for _, f := range sym.Fragments {
		if f.Malformed || !f.Name.IsValid() || c.opts.IsGenerated(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}
