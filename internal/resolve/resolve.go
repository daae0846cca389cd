// Package resolve binds parsed C# files into a model.Compilation: partial
// declarations are merged into type symbols, type names are resolved against
// the declared types, and construction sites are attached to their trees.
//
// Resolution is name based. Where a name is ambiguous every candidate is
// kept, so downstream rules see more construction sites rather than fewer.
package resolve

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/phobologic/deadctor/internal/lang"
	"github.com/phobologic/deadctor/internal/model"
	"github.com/phobologic/deadctor/internal/parse"
)

// Options configures Build.
type Options struct {
	Markers model.MarkerTable
	Logger  *zap.Logger
}

// declInfo ties a parsed declaration to its symbol and scope.
type declInfo struct {
	file  int
	decl  *parse.TypeDecl
	sym   model.TypeID
	scope []string // lookup prefixes, innermost first
}

type binder struct {
	opts    Options
	files   []*parse.File
	trees   []*model.SyntaxTree
	symbols []*model.TypeSymbol
	byKey   map[string]model.TypeID
	bySimp  map[string][]model.TypeID
	decls   [][]*declInfo // per file, per TypeDecl index
	// per symbol: declarations, candidate base classes, unresolved base name
	symDecls [][]*declInfo
	baseIDs  [][]model.TypeID
	extBase  []string
}

// Build resolves files into an immutable compilation.
func Build(files []*parse.File, opts Options) *model.Compilation {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	b := &binder{
		opts:   opts,
		files:  files,
		byKey:  make(map[string]model.TypeID),
		bySimp: make(map[string][]model.TypeID),
	}

	for _, f := range files {
		b.trees = append(b.trees, &model.SyntaxTree{Path: f.Path, Header: f.Header})
	}
	b.declare()
	b.synthesizeConstructors()
	b.resolveBases()
	b.bindSites()

	opts.Logger.Debug("compilation built",
		zap.Int("trees", len(b.trees)),
		zap.Int("types", len(b.symbols)))
	return model.NewCompilation(b.trees, b.symbols)
}

func metadataName(name string, arity int) string {
	if arity > 0 {
		return fmt.Sprintf("%s`%d", name, arity)
	}
	return name
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// declare creates one symbol per distinct full name and one fragment per
// declaration.
func (b *binder) declare() {
	b.decls = make([][]*declInfo, len(b.files))
	for fi, f := range b.files {
		b.decls[fi] = make([]*declInfo, len(f.Types))
		for di, d := range f.Types {
			info := &declInfo{file: fi, decl: d, sym: model.NoType}
			b.decls[fi][di] = info

			var outer string
			if d.Container >= 0 {
				c := b.decls[fi][d.Container]
				if c.sym == model.NoType {
					continue
				}
				outer = b.symbols[c.sym].FullName
				info.scope = append([]string{outer}, c.scope...)
			} else {
				info.scope = namespaceScope(d.Namespace)
				outer = d.Namespace
			}
			if d.Name == "" {
				b.opts.Logger.Warn("skipping declaration without a name",
					zap.String("file", f.Path),
					zap.Int("line", d.Location.Line))
				continue
			}

			key := join(outer, metadataName(d.Name, d.Arity))
			id, ok := b.byKey[key]
			if !ok {
				id = b.newSymbol(key, d)
			}
			info.sym = id
			b.merge(b.symbols[id], info, b.trees[fi])
		}
	}
}

func namespaceScope(ns string) []string {
	var scope []string
	for ns != "" {
		scope = append(scope, ns)
		i := strings.LastIndexByte(ns, '.')
		if i < 0 {
			break
		}
		ns = ns[:i]
	}
	return append(scope, "")
}

func (b *binder) newSymbol(key string, d *parse.TypeDecl) model.TypeID {
	id := model.TypeID(len(b.symbols))
	access := model.Internal
	if d.Container >= 0 {
		access = model.Private
	}
	b.symbols = append(b.symbols, &model.TypeSymbol{
		ID:                id,
		Name:              d.Name,
		Arity:             d.Arity,
		FullName:          key,
		Kind:              d.Kind,
		Access:            access,
		BaseChainComplete: true,
	})
	b.symDecls = append(b.symDecls, nil)
	b.byKey[key] = id
	simple := metadataName(d.Name, d.Arity)
	b.bySimp[simple] = append(b.bySimp[simple], id)
	return id
}

func (b *binder) merge(sym *model.TypeSymbol, info *declInfo, tree *model.SyntaxTree) {
	d := info.decl
	b.symDecls[sym.ID] = append(b.symDecls[sym.ID], info)

	if d.Kind != sym.Kind {
		b.opts.Logger.Debug("partial declarations disagree on kind",
			zap.String("type", sym.FullName),
			zap.String("kept", string(sym.Kind)),
			zap.String("ignored", string(d.Kind)))
	}
	sym.Static = sym.Static || lang.HasModifier(d.Modifiers, "static")
	sym.Abstract = sym.Abstract || lang.HasModifier(d.Modifiers, "abstract")
	if a := accessibility(d.Modifiers); a != model.AccessUnknown {
		sym.Access = a
	}
	if d.Malformed {
		sym.Incomplete = true
	}

	fragMarkers := b.markers(d.Attributes)
	sym.Markers = appendMarkers(sym.Markers, fragMarkers)
	for _, base := range d.Bases {
		if !slices.Contains(sym.Bases, base.Text) {
			sym.Bases = append(sym.Bases, base.Text)
		}
	}

	sym.Fragments = append(sym.Fragments, &model.Fragment{
		Symbol:    sym.ID,
		Tree:      tree,
		Name:      d.Location,
		Markers:   fragMarkers,
		Malformed: d.Malformed,
	})

	defaultAccess := model.Private
	if sym.Kind == model.Interface {
		defaultAccess = model.Public
	}
	for _, md := range d.Members {
		if md.Kind == model.NestedType && md.Name == "" {
			continue
		}
		m := &model.Member{
			Name:     md.Name,
			Kind:     md.Kind,
			Access:   accessibility(md.Modifiers),
			Markers:  b.markers(md.Attributes),
			Location: md.Location,
		}
		if m.Access == model.AccessUnknown {
			m.Access = defaultAccess
		}
		switch md.Kind {
		case model.Operator, model.StaticConstructor:
			m.Static = true
		case model.NestedType:
			m.Static = lang.HasModifier(md.Modifiers, "static")
		default:
			m.Static = lang.HasModifier(md.Modifiers, "static", "const")
		}
		sym.Members = append(sym.Members, m)
	}
}

func (b *binder) markers(attrs []string) []model.Marker {
	var ms []model.Marker
	for _, a := range attrs {
		ms = append(ms, b.opts.Markers.Classify(a))
	}
	return ms
}

func appendMarkers(dst, src []model.Marker) []model.Marker {
	for _, m := range src {
		if !slices.Contains(dst, m) {
			dst = append(dst, m)
		}
	}
	return dst
}

// synthesizeConstructors adds the constructors the compiler would declare
// implicitly.
func (b *binder) synthesizeConstructors() {
	for _, sym := range b.symbols {
		if sym.Static {
			continue
		}
		switch sym.Kind {
		case model.Class, model.Record, model.Struct:
		default:
			continue
		}

		primary, sealed := false, false
		for _, info := range b.symDecls[sym.ID] {
			primary = primary || info.decl.PrimaryConstructor
			sealed = sealed || lang.HasModifier(info.decl.Modifiers, "sealed")
		}
		explicit := len(sym.Constructors()) > 0
		loc := model.Location{}
		if len(sym.Fragments) > 0 {
			loc = sym.Fragments[0].Name
		}

		switch {
		case primary:
			sym.Members = append(sym.Members, implicitCtor(model.Public, loc))
		case sym.Kind == model.Struct:
			sym.Members = append(sym.Members, implicitCtor(model.Public, loc))
		case !explicit && sym.Abstract:
			sym.Members = append(sym.Members, implicitCtor(model.Protected, loc))
		case !explicit:
			sym.Members = append(sym.Members, implicitCtor(model.Public, loc))
		}

		if sym.Kind == model.Record {
			access := model.Protected
			if sealed {
				access = model.Private
			}
			copyCtor := implicitCtor(access, loc)
			sym.Members = append(sym.Members, copyCtor)
		}
	}
}

func implicitCtor(access model.Accessibility, loc model.Location) *model.Member {
	return &model.Member{
		Name:     ".ctor",
		Kind:     model.Constructor,
		Access:   access,
		Implicit: true,
		Location: loc,
	}
}

// lookup resolves a written type name to candidate symbols. scope lists the
// enclosing type and namespace prefixes, innermost first.
func (b *binder) lookup(ref parse.TypeRef, scope []string) []model.TypeID {
	if ref.IsZero() || ref.Predefined {
		return nil
	}
	simple := metadataName(ref.Name, ref.Arity)
	cands := b.bySimp[simple]
	if len(cands) <= 1 {
		return cands
	}

	if ref.Qualifier != "" {
		q := strings.TrimPrefix(ref.Qualifier, "global::")
		var matched []model.TypeID
		for _, id := range cands {
			full := b.symbols[id].FullName
			if full == join(q, simple) || strings.HasSuffix(full, "."+join(q, simple)) {
				matched = append(matched, id)
			}
		}
		if len(matched) > 0 {
			return matched
		}
		return cands
	}

	for _, prefix := range scope {
		if id, ok := b.byKey[join(prefix, simple)]; ok {
			return []model.TypeID{id}
		}
	}
	return cands
}

// refTargets resolves ref as written in file fi. A simple name that is also
// a using alias resolves to the candidates of both readings.
func (b *binder) refTargets(fi int, ref parse.TypeRef, scope []string) []model.TypeID {
	ids := b.lookup(ref, scope)
	aliased := b.files[fi].Aliases[ref.Name]
	if ref.Qualifier != "" || ref.Arity > 0 || len(aliased) == 0 {
		return ids
	}
	ids = slices.Clone(ids)
	for _, target := range aliased {
		for _, id := range b.lookup(target, scope) {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// enclosingTypes returns the symbol of declaration idx in file fi followed
// by the symbols of every declaration containing it.
func (b *binder) enclosingTypes(fi, idx int) []model.TypeID {
	var ids []model.TypeID
	for idx >= 0 {
		info := b.decls[fi][idx]
		if info.sym != model.NoType && !slices.Contains(ids, info.sym) {
			ids = append(ids, info.sym)
		}
		idx = info.decl.Container
	}
	return ids
}

// resolveBases computes direct base classes and the base chain of every
// class-like symbol.
func (b *binder) resolveBases() {
	n := len(b.symbols)
	b.baseIDs = make([][]model.TypeID, n)
	b.extBase = make([]string, n)

	for _, sym := range b.symbols {
		if sym.Kind != model.Class && sym.Kind != model.Record {
			continue
		}
		for _, info := range b.symDecls[sym.ID] {
			if len(info.decl.Bases) == 0 {
				continue
			}
			// Only the first entry of a base list can be a class.
			first := info.decl.Bases[0]
			cands := b.refTargets(info.file, first, info.scope)
			if len(cands) == 0 {
				if isObject(first) || looksLikeInterface(first.Name) {
					continue
				}
				b.extBase[sym.ID] = first.Text
				continue
			}
			for _, id := range cands {
				k := b.symbols[id].Kind
				if (k == model.Class || k == model.Record) && id != sym.ID && !slices.Contains(b.baseIDs[sym.ID], id) {
					b.baseIDs[sym.ID] = append(b.baseIDs[sym.ID], id)
				}
			}
		}
	}

	for _, sym := range b.symbols {
		sym.BaseChain, sym.BaseChainComplete = b.chain(sym.ID)
	}
}

func (b *binder) chain(id model.TypeID) ([]string, bool) {
	var chain []string
	seen := map[model.TypeID]bool{id: true}
	cur := id
	for {
		bases := b.baseIDs[cur]
		switch {
		case len(bases) == 1:
			next := bases[0]
			if seen[next] {
				return chain, false
			}
			seen[next] = true
			chain = append(chain, b.symbols[next].FullName)
			cur = next
		case len(bases) > 1:
			for _, alt := range bases {
				chain = append(chain, b.symbols[alt].FullName)
			}
			return chain, false
		case b.extBase[cur] != "":
			return append(chain, b.extBase[cur]), false
		default:
			return chain, true
		}
	}
}

func isObject(r parse.TypeRef) bool {
	switch r.Text {
	case "object", "Object", "System.Object", "global::System.Object":
		return true
	}
	return false
}

// looksLikeInterface applies the IName convention to types outside the
// compilation.
func looksLikeInterface(name string) bool {
	r := []rune(name)
	return len(r) >= 2 && r[0] == 'I' && unicode.IsUpper(r[1])
}

// bindSites resolves creation expressions and derives base initializer sites.
func (b *binder) bindSites() {
	for fi, f := range b.files {
		tree := b.trees[fi]
		for _, c := range f.Creations {
			site := model.ConstructionSite{
				Kind:      c.Kind,
				Target:    c.Type.Text,
				Enclosing: model.NoType,
				Location:  c.Location,
			}
			var scope []string
			if c.Enclosing >= 0 {
				info := b.decls[fi][c.Enclosing]
				site.Enclosing = info.sym
				scope = info.scope
				if info.sym != model.NoType {
					scope = append([]string{b.symbols[info.sym].FullName}, scope...)
				}
			} else {
				scope = []string{""}
			}
			switch {
			case !c.Type.IsZero():
				site.Targets = b.refTargets(fi, c.Type, scope)
			case c.Kind == model.TargetTypedCreation:
				// A private constructor is reachable from the type itself
				// and from any type nested in it.
				site.Targets = b.enclosingTypes(fi, c.Enclosing)
			}
			tree.Sites = append(tree.Sites, site)
		}
	}

	for _, sym := range b.symbols {
		bases := b.baseIDs[sym.ID]
		if len(bases) == 0 || sym.Static {
			continue
		}
		explicit := false
		for _, info := range b.symDecls[sym.ID] {
			tree := b.trees[info.file]
			target := ""
			if len(info.decl.Bases) > 0 {
				target = info.decl.Bases[0].Text
			}
			for _, m := range info.decl.Members {
				if m.Kind != model.Constructor || lang.HasModifier(m.Modifiers, "static") {
					continue
				}
				explicit = true
				switch m.Initializer {
				case "base":
					tree.Sites = append(tree.Sites, model.ConstructionSite{
						Kind:      model.BaseInitializer,
						Target:    target,
						Targets:   bases,
						Enclosing: sym.ID,
						Location:  m.InitializerLoc,
					})
				case "":
					tree.Sites = append(tree.Sites, model.ConstructionSite{
						Kind:      model.ImplicitBaseInitializer,
						Target:    target,
						Targets:   bases,
						Enclosing: sym.ID,
						Location:  m.Location,
					})
				}
			}
		}
		if !explicit && len(sym.Fragments) > 0 {
			frag := sym.Fragments[0]
			frag.Tree.Sites = append(frag.Tree.Sites, model.ConstructionSite{
				Kind:      model.ImplicitBaseInitializer,
				Target:    sym.Bases[0],
				Targets:   bases,
				Enclosing: sym.ID,
				Location:  frag.Name,
			})
		}
	}
}

func accessibility(mods []string) model.Accessibility {
	pub := lang.HasModifier(mods, "public")
	prot := lang.HasModifier(mods, "protected")
	intl := lang.HasModifier(mods, "internal")
	priv := lang.HasModifier(mods, "private")
	switch {
	case pub:
		return model.Public
	case prot && intl:
		return model.ProtectedInternal
	case priv && prot:
		return model.PrivateProtected
	case prot:
		return model.Protected
	case intl:
		return model.Internal
	case priv:
		return model.Private
	}
	return model.AccessUnknown
}
