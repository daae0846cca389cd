// Package model defines the resolved program model that rules read.
//
// Everything in this package is produced once by the resolver and treated as
// immutable afterwards, so values may be shared freely across goroutines.
package model

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
)

// TypeID identifies a TypeSymbol within one Compilation.
type TypeID int

// NoType is the TypeID used where no type applies (e.g. top-level code).
const NoType TypeID = -1

// TypeKind is the declared kind of a type.
type TypeKind string

const (
	Class     TypeKind = "class"
	Struct    TypeKind = "struct"
	Interface TypeKind = "interface"
	Enum      TypeKind = "enum"
	Record    TypeKind = "record"
	Delegate  TypeKind = "delegate"
)

// Accessibility is the declared accessibility of a type or member.
// Values are ordered from most to least restrictive.
type Accessibility int

const (
	AccessUnknown Accessibility = iota
	Private
	PrivateProtected
	Protected
	Internal
	ProtectedInternal
	Public
)

var accessNames = [...]string{
	AccessUnknown:     "unknown",
	Private:           "private",
	PrivateProtected:  "private protected",
	Protected:         "protected",
	Internal:          "internal",
	ProtectedInternal: "protected internal",
	Public:            "public",
}

func (a Accessibility) String() string {
	if a < 0 || int(a) >= len(accessNames) {
		return fmt.Sprintf("Accessibility(%d)", int(a))
	}
	return accessNames[a]
}

// MarkerKind groups attributes by how they affect instantiation.
type MarkerKind string

const (
	MarkerSerialization MarkerKind = "serialization"
	MarkerInjection     MarkerKind = "dependency_injection"
	MarkerInterop       MarkerKind = "interop"
	MarkerGenerated     MarkerKind = "generated"
	MarkerInformational MarkerKind = "informational"
	MarkerUnrecognized  MarkerKind = "unrecognized"
)

// MarkerKinds lists every recognized marker kind.
var MarkerKinds = []MarkerKind{
	MarkerSerialization,
	MarkerInjection,
	MarkerInterop,
	MarkerGenerated,
	MarkerInformational,
	MarkerUnrecognized,
}

// Marker is one attribute applied to a declaration, classified by kind.
type Marker struct {
	Name string
	Kind MarkerKind
}

// MarkerTable maps normalized attribute names to marker kinds.
type MarkerTable map[string]MarkerKind

// Classify returns the marker for an attribute name as written in source.
// Unknown attributes are MarkerUnrecognized.
func (mt MarkerTable) Classify(written string) Marker {
	name := NormalizeAttribute(written)
	kind, ok := mt[name]
	if !ok {
		kind = MarkerUnrecognized
	}
	return Marker{Name: name, Kind: kind}
}

// NormalizeAttribute strips namespace qualifiers, generic arguments and the
// conventional "Attribute" suffix from an attribute name.
func NormalizeAttribute(written string) string {
	name := strings.TrimSpace(written)
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexAny(name, ".:"); i >= 0 {
		name = name[i+1:]
	}
	if len(name) > len("Attribute") {
		name = strings.TrimSuffix(name, "Attribute")
	}
	return name
}

// HasMarkerKind reports whether any marker in ms has the given kind.
func HasMarkerKind(ms []Marker, kind MarkerKind) bool {
	for _, m := range ms {
		if m.Kind == kind {
			return true
		}
	}
	return false
}

// MemberKind is the kind of a type member.
type MemberKind string

const (
	Constructor       MemberKind = "constructor"
	StaticConstructor MemberKind = "static_constructor"
	Destructor        MemberKind = "destructor"
	Method            MemberKind = "method"
	Field             MemberKind = "field"
	Property          MemberKind = "property"
	Event             MemberKind = "event"
	Indexer           MemberKind = "indexer"
	Operator          MemberKind = "operator"
	NestedType        MemberKind = "nested_type"
)

// Member is one member of a TypeSymbol. Constructors are members of kind
// Constructor; Implicit is set for constructors synthesized by the resolver.
type Member struct {
	Name     string
	Kind     MemberKind
	Access   Accessibility
	Static   bool
	Implicit bool
	Markers  []Marker
	Location Location
}

// Fragment is one syntactic declaration of a type. Partial types have
// several.
type Fragment struct {
	Symbol    TypeID
	Tree      *SyntaxTree
	Name      Location
	Markers   []Marker
	Malformed bool
}

// Path returns the file the fragment was declared in.
func (f *Fragment) Path() string {
	if f.Tree == nil {
		return f.Name.File
	}
	return f.Tree.Path
}

// TypeSymbol is the resolved identity of a declared type.
type TypeSymbol struct {
	ID       TypeID
	Name     string
	Arity    int
	FullName string
	Kind     TypeKind
	Static   bool
	Abstract bool
	Access   Accessibility
	Markers  []Marker

	// Bases holds the base list as written, in declaration order.
	Bases []string
	// BaseChain lists base classes nearest first, ending before object.
	// Resolved entries use the full name, unresolved ones the written name.
	BaseChain []string
	// BaseChainComplete is false when some base could not be resolved.
	BaseChainComplete bool
	// Incomplete is set when a fragment of the type failed to parse.
	Incomplete bool

	Members   []*Member
	Fragments []*Fragment
}

// HasMarker reports whether the symbol carries a marker of the given kind.
func (t *TypeSymbol) HasMarker(kind MarkerKind) bool {
	return HasMarkerKind(t.Markers, kind)
}

// Constructors returns the instance constructors, explicit and implicit.
func (t *TypeSymbol) Constructors() []*Member {
	var ctors []*Member
	for _, m := range t.Members {
		if m.Kind == Constructor {
			ctors = append(ctors, m)
		}
	}
	return ctors
}

// NonConstructors returns every member that is not an instance constructor.
func (t *TypeSymbol) NonConstructors() []*Member {
	var rest []*Member
	for _, m := range t.Members {
		if m.Kind != Constructor {
			rest = append(rest, m)
		}
	}
	return rest
}

func (t *TypeSymbol) String() string {
	return fmt.Sprintf("%s %s", t.Kind, t.FullName)
}

// SiteKind is the syntactic form of a construction site.
type SiteKind string

const (
	ObjectCreation          SiteKind = "object_creation"
	TargetTypedCreation     SiteKind = "target_typed_creation"
	BaseInitializer         SiteKind = "base_initializer"
	ImplicitBaseInitializer SiteKind = "implicit_base_initializer"
)

// ConstructionSite is an expression that instantiates a type directly or
// runs its constructor as a derived type's base initialization.
type ConstructionSite struct {
	Kind SiteKind
	// Target is the type name as written, empty when inferred.
	Target string
	// Targets are the resolved candidates. Ambiguous names resolve to every
	// candidate.
	Targets   []TypeID
	Enclosing TypeID
	Location  Location
}

// Constructs reports whether the site may construct the given type.
func (s *ConstructionSite) Constructs(id TypeID) bool {
	return slices.Contains(s.Targets, id)
}

// SyntaxTree is one parsed source file of the compilation.
type SyntaxTree struct {
	Path string
	// Header holds the leading comments of the file.
	Header string
	Sites  []ConstructionSite
}

// Compilation is the complete, immutable program model.
type Compilation struct {
	Trees []*SyntaxTree
	types []*TypeSymbol
}

// NewCompilation returns a compilation over trees and types. The ID of each
// type must equal its index in types.
func NewCompilation(trees []*SyntaxTree, types []*TypeSymbol) *Compilation {
	return &Compilation{Trees: trees, types: types}
}

// Types yields every declared type symbol once.
func (c *Compilation) Types() iter.Seq[*TypeSymbol] {
	return func(yield func(*TypeSymbol) bool) {
		for _, t := range c.types {
			if !yield(t) {
				return
			}
		}
	}
}

// Type returns the symbol with the given ID, or nil.
func (c *Compilation) Type(id TypeID) *TypeSymbol {
	if id < 0 || int(id) >= len(c.types) {
		return nil
	}
	return c.types[id]
}

// NumTypes returns the number of declared type symbols.
func (c *Compilation) NumTypes() int {
	return len(c.types)
}

// Constructs reports whether any site in the compilation may construct id.
// It stops at the first match and checks ctx between trees.
func (c *Compilation) Constructs(ctx context.Context, id TypeID) (bool, error) {
	for _, tree := range c.Trees {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		for i := range tree.Sites {
			if tree.Sites[i].Constructs(id) {
				return true, nil
			}
		}
	}
	return false, nil
}
