package ctorreach

import (
	"fmt"

	"github.com/phobologic/deadctor/internal/model"
)

// LockedConstructors returns the instance constructors of sym when all of
// them are locked to the declaring type and the type is not a static-utility
// class. Otherwise ok is false and reason explains why.
func (c *Checker) LockedConstructors(sym *model.TypeSymbol) (ctors []*model.Member, ok bool, reason string) {
	ctors = sym.Constructors()
	if len(ctors) == 0 {
		// Without any constructor the compiler supplies a public one.
		return nil, false, "only the implicit constructor"
	}
	for _, ctor := range ctors {
		switch {
		case ctor.Static:
			return nil, false, "static constructor in candidate set"
		case ctor.Implicit && ctor.Access != model.Private:
			return nil, false, "implicit " + ctor.Access.String() + " constructor"
		case ctor.Access != model.Private:
			return nil, false, ctor.Access.String() + " constructor"
		}
		for _, kind := range c.opts.ExemptMarkers {
			if model.HasMarkerKind(ctor.Markers, kind) {
				return nil, false, fmt.Sprintf("constructor carries a %s marker", kind)
			}
		}
	}

	if isStaticUtility(sym.NonConstructors()) {
		return nil, false, "static utility class"
	}
	return ctors, true, ""
}

// isStaticUtility reports whether there is at least one other member and
// every one of them is static.
func isStaticUtility(members []*model.Member) bool {
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if !m.Static {
			return false
		}
	}
	return true
}
