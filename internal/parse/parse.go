// Package parse extracts C# type declarations and construction expressions
// from source files using tree-sitter.
//
// The output is purely syntactic: names are kept as written and resolved
// later by package resolve.
package parse

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/deadctor/internal/lang"
	"github.com/phobologic/deadctor/internal/model"
)

// TypeRef is a type name as written in source.
type TypeRef struct {
	Name       string // simple name without type arguments
	Qualifier  string // namespace or enclosing type prefix, if written
	Arity      int
	Text       string
	Predefined bool // keyword types such as int, string, var
}

// IsZero reports whether the reference carries no usable name.
func (r TypeRef) IsZero() bool {
	return r.Name == ""
}

// MemberDecl is one member declared inside a type body.
type MemberDecl struct {
	Name       string
	Kind       model.MemberKind
	Modifiers  []string
	Attributes []string
	Location   model.Location

	// Initializer is "base" or "this" for constructors with an explicit
	// constructor initializer.
	Initializer    string
	InitializerLoc model.Location
}

// TypeDecl is one syntactic type declaration.
type TypeDecl struct {
	Name      string
	Arity     int
	Namespace string
	// Container is the index in File.Types of the enclosing declaration, or -1.
	Container          int
	Kind               model.TypeKind
	Modifiers          []string
	Attributes         []string
	Bases              []TypeRef
	PrimaryConstructor bool
	Members            []MemberDecl
	Location           model.Location
	// Malformed is set when the declaration has no identifier or contains
	// syntax errors.
	Malformed bool
}

// Creation is an object-creation expression.
type Creation struct {
	Kind model.SiteKind
	// Type is zero for target-typed creations whose type could not be
	// inferred from the surrounding declaration.
	Type      TypeRef
	Enclosing int
	Location  model.Location
}

// File is the syntactic summary of one source file.
type File struct {
	Path      string
	Header    string
	Types     []*TypeDecl
	Creations []Creation
	// Aliases maps each using alias declared in the file to the types it
	// names. Aliases declared in different namespaces of the file share one
	// entry.
	Aliases   map[string][]TypeRef
	HasErrors bool
}

var typeDeclKinds = map[string]model.TypeKind{
	"class_declaration":         model.Class,
	"struct_declaration":        model.Struct,
	"interface_declaration":     model.Interface,
	"enum_declaration":          model.Enum,
	"record_declaration":        model.Record,
	"record_struct_declaration": model.Struct,
	"delegate_declaration":      model.Delegate,
}

// attributeTargets lists the explicit attribute targets that apply to the
// member itself rather than to its return value or parameters.
var attributeTargets = map[model.MemberKind][]string{
	model.Constructor:       {"method"},
	model.StaticConstructor: {"method"},
	model.Destructor:        {"method"},
	model.Method:            {"method"},
	model.Operator:          {"method"},
	model.Field:             {"field"},
	model.Event:             {"event", "field", "method"},
	model.Property:          {"property"},
	model.Indexer:           {"property"},
}

var typeNodeTypes = []string{
	"identifier", "generic_name", "qualified_name", "alias_qualified_name",
	"predefined_type", "nullable_type",
}

// Parse parses a C# source file. The parser must be created for C#.
// path is used only for locations and should be the repo-relative path.
func Parse(ctx context.Context, parser *sitter.Parser, source []byte, path string) (*File, error) {
	f := &File{Path: path}
	if len(source) == 0 {
		return f, nil
	}

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	f.HasErrors = root.HasError()
	f.Header = header(root, source)

	w := &walker{source: source, file: f}
	w.walkChildren(root)
	return f, nil
}

type walker struct {
	source        []byte
	file          *File
	namespaces    []string
	fileNamespace string
	stack         []int
	// broken counts enclosing declarations that lack an identifier.
	broken int
}

func (w *walker) walk(n *sitter.Node) {
	switch n.Type() {
	case "namespace_declaration":
		w.namespaces = append(w.namespaces, w.nameText(n))
		w.walkChildren(n)
		w.namespaces = w.namespaces[:len(w.namespaces)-1]
	case "file_scoped_namespace_declaration":
		w.fileNamespace = w.nameText(n)
		w.walkChildren(n)
	case "using_directive":
		w.usingDirective(n)
	case "object_creation_expression":
		w.objectCreation(n)
	case "implicit_object_creation_expression":
		w.file.Creations = append(w.file.Creations, Creation{
			Kind:      model.TargetTypedCreation,
			Type:      w.inferTarget(n),
			Enclosing: w.enclosing(),
			Location:  w.location(n),
		})
		w.walkChildren(n)
	default:
		if kind, ok := typeDeclKinds[n.Type()]; ok {
			w.typeDecl(n, kind)
			return
		}
		w.walkChildren(n)
	}
}

func (w *walker) walkChildren(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.walk(n.NamedChild(i))
	}
}

func (w *walker) typeDecl(n *sitter.Node, kind model.TypeKind) {
	if kind == model.Record && lang.ChildOfType(n, "struct") != nil {
		kind = model.Struct
	}

	d := &TypeDecl{
		Kind:       kind,
		Namespace:  w.namespace(),
		Container:  w.enclosing(),
		Modifiers:  lang.Modifiers(n, w.source),
		Attributes: lang.AttributeNames(n, w.source, "type"),
		Location:   w.location(n),
	}

	nameNode := lang.FieldOrChild(n, "name", "identifier")
	if nameNode != nil && !nameNode.IsMissing() {
		d.Name = lang.NodeText(nameNode, w.source)
		d.Location = w.location(nameNode)
	}
	d.Malformed = w.broken > 0 || d.Name == "" || n.HasError()

	if tp := lang.ChildOfType(n, "type_parameter_list"); tp != nil {
		d.Arity = len(lang.ChildrenOfType(tp, "type_parameter"))
	}
	bases := lang.FieldOrChild(n, "bases", "base_list")
	if bases != nil {
		d.Bases = w.baseList(bases)
	}
	if kind != model.Delegate && kind != model.Interface {
		d.PrimaryConstructor = lang.ChildOfType(n, "parameter_list") != nil
	}

	idx := len(w.file.Types)
	w.file.Types = append(w.file.Types, d)
	w.addMember(MemberDecl{
		Name:       d.Name,
		Kind:       model.NestedType,
		Modifiers:  d.Modifiers,
		Attributes: d.Attributes,
		Location:   d.Location,
	})

	w.stack = append(w.stack, idx)
	if d.Name == "" {
		w.broken++
	}
	defer func() {
		w.stack = w.stack[:len(w.stack)-1]
		if d.Name == "" {
			w.broken--
		}
	}()

	// Primary constructor base arguments may construct objects too.
	if bases != nil {
		w.walkChildren(bases)
	}

	body := lang.FieldOrChild(n, "body", "declaration_list")
	if body == nil || kind == model.Enum {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		w.member(body.NamedChild(i))
	}
}

func (w *walker) member(c *sitter.Node) {
	var m MemberDecl
	switch c.Type() {
	case "constructor_declaration":
		m = w.memberDecl(c, model.Constructor, w.nameNode(c))
		if lang.HasModifier(m.Modifiers, "static") {
			m.Kind = model.StaticConstructor
		}
		if init := lang.ChildOfType(c, "constructor_initializer"); init != nil {
			switch {
			case lang.ChildOfType(init, "base") != nil:
				m.Initializer = "base"
			case lang.ChildOfType(init, "this") != nil:
				m.Initializer = "this"
			}
			m.InitializerLoc = w.location(init)
		}
	case "destructor_declaration":
		m = w.memberDecl(c, model.Destructor, w.nameNode(c))
	case "method_declaration":
		m = w.memberDecl(c, model.Method, w.nameNode(c))
	case "field_declaration":
		m = w.memberDecl(c, model.Field, w.declaratorName(c))
	case "event_field_declaration":
		m = w.memberDecl(c, model.Event, w.declaratorName(c))
	case "event_declaration":
		m = w.memberDecl(c, model.Event, w.nameNode(c))
	case "property_declaration":
		m = w.memberDecl(c, model.Property, w.nameNode(c))
	case "indexer_declaration":
		m = w.memberDecl(c, model.Indexer, nil)
		m.Name = "this[]"
	case "operator_declaration", "conversion_operator_declaration":
		m = w.memberDecl(c, model.Operator, nil)
		m.Name = "operator"
	default:
		w.walk(c)
		return
	}
	w.addMember(m)
	w.walkChildren(c)
}

func (w *walker) memberDecl(c *sitter.Node, kind model.MemberKind, name *sitter.Node) MemberDecl {
	m := MemberDecl{
		Kind:       kind,
		Modifiers:  lang.Modifiers(c, w.source),
		Attributes: lang.AttributeNames(c, w.source, attributeTargets[kind]...),
		Location:   w.location(c),
	}
	if name != nil {
		m.Name = lang.NodeText(name, w.source)
		m.Location = w.location(name)
	}
	return m
}

func (w *walker) nameNode(c *sitter.Node) *sitter.Node {
	n := lang.FieldOrChild(c, "name", "identifier")
	if n == nil || n.IsMissing() {
		return nil
	}
	return n
}

// declaratorName returns the first variable name of a field or event field.
func (w *walker) declaratorName(c *sitter.Node) *sitter.Node {
	decl := lang.ChildOfType(c, "variable_declaration")
	if decl == nil {
		return nil
	}
	v := lang.ChildOfType(decl, "variable_declarator")
	if v == nil {
		return nil
	}
	return w.nameNode(v)
}

func (w *walker) addMember(m MemberDecl) {
	if c := w.enclosing(); c >= 0 {
		w.file.Types[c].Members = append(w.file.Types[c].Members, m)
	}
}

// usingDirective records using X = T; aliases. Namespace and static
// imports carry no alias and are skipped.
func (w *walker) usingDirective(n *sitter.Node) {
	if lang.ChildOfType(n, "=") == nil || n.NamedChildCount() < 2 {
		return
	}
	alias := n.ChildByFieldName("name")
	if alias == nil {
		alias = n.NamedChild(0)
	}
	target := w.typeRef(n.NamedChild(int(n.NamedChildCount()) - 1))
	if alias.Type() != "identifier" || target.IsZero() {
		return
	}
	name := lang.NodeText(alias, w.source)
	if w.file.Aliases == nil {
		w.file.Aliases = make(map[string][]TypeRef)
	}
	w.file.Aliases[name] = append(w.file.Aliases[name], target)
}

func (w *walker) objectCreation(n *sitter.Node) {
	c := Creation{
		Kind:      model.ObjectCreation,
		Enclosing: w.enclosing(),
		Location:  w.location(n),
	}
	if typ := lang.FieldOrChild(n, "type", typeNodeTypes...); typ != nil {
		c.Type = w.typeRef(typ)
	}
	w.file.Creations = append(w.file.Creations, c)
	w.walkChildren(n)
}

// inferPassThrough lists the expressions whose type is the type of the
// expression around them.
var inferPassThrough = map[string]bool{
	"equals_value_clause":      true,
	"parenthesized_expression": true,
	"conditional_expression":   true,
}

// inferTarget finds the type a target-typed new() expression creates by
// looking at the declaration it initializes or the member it returns from.
func (w *walker) inferTarget(n *sitter.Node) TypeRef {
	p := n.Parent()
	for p != nil && inferPassThrough[p.Type()] {
		p = p.Parent()
	}
	if p == nil {
		return TypeRef{}
	}

	switch p.Type() {
	case "variable_declarator":
		if decl := p.Parent(); decl != nil && decl.Type() == "variable_declaration" {
			return w.declaredType(decl)
		}
	case "property_declaration":
		return w.declaredType(p)
	case "return_statement", "arrow_expression_clause":
		for q := p.Parent(); q != nil; q = q.Parent() {
			switch q.Type() {
			case "method_declaration", "local_function_statement", "property_declaration":
				return w.declaredType(q)
			case "lambda_expression", "anonymous_method_expression", "constructor_declaration":
				return TypeRef{}
			}
			if _, ok := typeDeclKinds[q.Type()]; ok {
				return TypeRef{}
			}
		}
	}
	return TypeRef{}
}

func (w *walker) declaredType(n *sitter.Node) TypeRef {
	typ := n.ChildByFieldName("type")
	if typ == nil {
		typ = n.ChildByFieldName("returns")
	}
	if typ == nil {
		return TypeRef{}
	}
	r := w.typeRef(typ)
	if r.Predefined {
		return TypeRef{}
	}
	return r
}

func (w *walker) typeRef(n *sitter.Node) TypeRef {
	r := TypeRef{Text: lang.NodeText(n, w.source)}
	switch n.Type() {
	case "identifier":
		r.Name = r.Text
	case "generic_name":
		if id := lang.FieldOrChild(n, "name", "identifier"); id != nil {
			r.Name = lang.NodeText(id, w.source)
		}
		if args := lang.ChildOfType(n, "type_argument_list"); args != nil {
			r.Arity = max(1, int(args.NamedChildCount()))
		}
	case "qualified_name", "alias_qualified_name":
		name := n.ChildByFieldName("name")
		if name == nil && n.NamedChildCount() > 0 {
			name = n.NamedChild(int(n.NamedChildCount()) - 1)
		}
		if name == nil {
			return r
		}
		inner := w.typeRef(name)
		inner.Text = r.Text
		inner.Qualifier = strings.TrimSuffix(strings.TrimSuffix(r.Text[:len(r.Text)-len(lang.NodeText(name, w.source))], "."), "::")
		return inner
	case "nullable_type":
		if n.NamedChildCount() > 0 {
			inner := w.typeRef(n.NamedChild(0))
			inner.Text = r.Text
			return inner
		}
	case "predefined_type", "implicit_type":
		r.Name = r.Text
		r.Predefined = true
	}
	if r.Name == "var" {
		r.Predefined = true
	}
	return r
}

func (w *walker) baseList(bl *sitter.Node) []TypeRef {
	var refs []TypeRef
	for i := 0; i < int(bl.NamedChildCount()); i++ {
		c := bl.NamedChild(i)
		switch c.Type() {
		case "argument_list":
			continue
		case "primary_constructor_base_type":
			if c.NamedChildCount() == 0 {
				continue
			}
			c = c.NamedChild(0)
		}
		if r := w.typeRef(c); !r.IsZero() {
			refs = append(refs, r)
		}
	}
	return refs
}

func (w *walker) nameText(n *sitter.Node) string {
	name := lang.FieldOrChild(n, "name", "identifier", "qualified_name")
	return lang.NodeText(name, w.source)
}

func (w *walker) namespace() string {
	parts := make([]string, 0, len(w.namespaces)+1)
	if w.fileNamespace != "" {
		parts = append(parts, w.fileNamespace)
	}
	parts = append(parts, w.namespaces...)
	return strings.Join(parts, ".")
}

func (w *walker) enclosing() int {
	if len(w.stack) == 0 {
		return -1
	}
	return w.stack[len(w.stack)-1]
}

func (w *walker) location(n *sitter.Node) model.Location {
	line, col := lang.Position(n)
	return model.Location{File: w.file.Path, Line: line, Column: col}
}

// header returns the comments that precede the first declaration.
func header(root *sitter.Node, source []byte) string {
	var b strings.Builder
	for i := 0; i < int(root.NamedChildCount()); i++ {
		c := root.NamedChild(i)
		if c.Type() != "comment" {
			break
		}
		b.WriteString(lang.NodeText(c, source))
		b.WriteByte('\n')
	}
	return b.String()
}
