package ctorreach

import (
	"fmt"
	"strings"

	"github.com/phobologic/deadctor/internal/model"
)

// Eligible reports whether the rule applies to sym at all. When it does not,
// the second result names the reason.
func (c *Checker) Eligible(sym *model.TypeSymbol) (bool, string) {
	switch {
	case sym == nil:
		return false, "no symbol information"
	case sym.Kind != model.Class:
		return false, fmt.Sprintf("%s is not a class", sym.Kind)
	case sym.Static:
		return false, "static class"
	case sym.Incomplete:
		return false, "declaration has syntax errors"
	}

	for _, kind := range c.opts.ExemptMarkers {
		if sym.HasMarker(kind) {
			return false, fmt.Sprintf("carries a %s marker", kind)
		}
	}

	for _, base := range sym.BaseChain {
		if c.isExemptBase(base) {
			return false, "derives from exempt base " + base
		}
	}
	if !sym.BaseChainComplete && !c.opts.TrustExternalBases {
		return false, "base type chain is not fully resolved"
	}
	return true, ""
}

// isExemptBase matches by full name, or by simple name when the base was
// written unqualified.
func (c *Checker) isExemptBase(name string) bool {
	name = normalizeTypeName(name)
	if _, ok := c.exemptFull[name]; ok {
		return true
	}
	_, ok := c.exemptShort[shortName(name)]
	return ok
}

func normalizeTypeName(name string) string {
	name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "global::"))
	if i := strings.IndexAny(name, "<`"); i >= 0 {
		name = name[:i]
	}
	return name
}

func shortName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
