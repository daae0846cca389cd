package lang

import (
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
)

func init() {
	Languages["csharp"] = &Language{
		Name:       "csharp",
		Extensions: []string{".cs"},
		lang:       csharp.GetLanguage(),
	}
}

// CSharp returns the registered C# language.
func CSharp() *Language {
	return Languages["csharp"]
}

// Modifiers returns the modifier keywords of a C# declaration node.
func Modifiers(node *sitter.Node, source []byte) []string {
	var mods []string
	for _, m := range ChildrenOfType(node, "modifier") {
		mods = append(mods, strings.TrimSpace(NodeText(m, source)))
	}
	return mods
}

// HasModifier reports whether mods contains any of the given keywords.
func HasModifier(mods []string, keywords ...string) bool {
	for _, k := range keywords {
		if slices.Contains(mods, k) {
			return true
		}
	}
	return false
}

// AttributeNames returns the names of the attributes applied to a C#
// declaration node, as written. Lists without a target specifier are always
// included. Lists with an explicit target (e.g. [method: X]) are included
// only when the target is one of targets.
func AttributeNames(node *sitter.Node, source []byte, targets ...string) []string {
	var names []string
	for _, list := range ChildrenOfType(node, "attribute_list") {
		if specifier := ChildOfType(list, "attribute_target_specifier"); specifier != nil {
			t := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(NodeText(specifier, source)), ":"))
			if !slices.Contains(targets, t) {
				continue
			}
		}
		for _, attr := range ChildrenOfType(list, "attribute") {
			name := FieldOrChild(attr, "name", "identifier", "qualified_name", "generic_name", "alias_qualified_name")
			if name == nil {
				continue
			}
			names = append(names, NodeText(name, source))
		}
	}
	return names
}
