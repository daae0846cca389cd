package ctorreach

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/deadctor/internal/analysis"
	"github.com/phobologic/deadctor/internal/generated"
	"github.com/phobologic/deadctor/internal/index"
	"github.com/phobologic/deadctor/internal/lang"
	"github.com/phobologic/deadctor/internal/model"
	"github.com/phobologic/deadctor/internal/parse"
	"github.com/phobologic/deadctor/internal/resolve"
)

const (
	singular = "This class can't be instantiated; make its constructor 'public'."
	plural   = "This class can't be instantiated; make at least one of its constructors 'public'."
)

var scenarioMarkers = model.MarkerTable{
	"Serializable":         model.MarkerSerialization,
	"ImportingConstructor": model.MarkerInjection,
	"GeneratedCode":        model.MarkerGenerated,
	"Obsolete":             model.MarkerInformational,
}

// analyzeSources runs the rule over path/source pairs with both searchers
// and checks they agree.
func analyzeSources(t *testing.T, pairs ...string) []string {
	t.Helper()
	require.Zero(t, len(pairs)%2)

	p := lang.CSharp().NewParser()
	defer p.Close()
	var files []*parse.File
	for i := 0; i < len(pairs); i += 2 {
		f, err := parse.Parse(context.Background(), p, []byte(pairs[i+1]), pairs[i])
		require.NoError(t, err)
		files = append(files, f)
	}
	comp := resolve.Build(files, resolve.Options{Markers: scenarioMarkers})

	idx, err := index.Build(context.Background(), comp)
	require.NoError(t, err)
	detector := generated.New(generated.DefaultPatterns, generated.DefaultHeaderMarkers)

	var results [2][]string
	for i, searcher := range []Searcher{ScanSearcher{}, idx} {
		c := New(Options{
			ExemptBases:   DefaultExemptBases,
			ExemptMarkers: DefaultExemptMarkers,
			IsGenerated:   detector.IsGenerated,
			Searcher:      searcher,
		})
		diags, err := analysis.Run(context.Background(), comp, []*analysis.Rule{c.Rule()}, analysis.Options{Workers: 4})
		require.NoError(t, err)
		for _, d := range diags {
			results[i] = append(results[i], d.Location.String()+" "+d.Message)
		}
	}
	if diff := cmp.Diff(results[0], results[1]); diff != "" {
		t.Fatalf("scan and index disagree (-scan +index):\n%s", diff)
	}
	return results[0]
}

func TestScenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files []string
		want  []string
	}{
		{
			name:  "single private constructor never used",
			files: []string{"A.cs", "class A\n{\n    private A() { }\n}\n"},
			want:  []string{"A.cs:1:7 " + singular},
		},
		{
			name: "only static members besides constructor",
			files: []string{"A.cs", `class A
{
    private A() { }
    public static void Run() { }
    public const int Max = 1;
}`},
		},
		{
			name: "two private constructors, one used elsewhere",
			files: []string{
				"A.cs", `class A
{
    private A() { }
    private A(int x) { }
    public int X;
}`,
				"B.cs", `class B
{
    object Make() { return new A(1); }
}`,
			},
		},
		{
			name: "partial class across two files",
			files: []string{
				"A.cs", "partial class A\n{\n    private A() { }\n    private A(int x) { }\n}\n",
				"A.More.cs", "\n\n\npartial class A\n{\n    public int X;\n}\n",
			},
			want: []string{
				"A.More.cs:4:15 " + plural,
				"A.cs:1:15 " + plural,
			},
		},
		{
			name:  "implicit constructor",
			files: []string{"A.cs", "class A { public int X; }"},
		},
		{
			name:  "abstract with implicit protected constructor",
			files: []string{"A.cs", "abstract class A { public int X; }"},
		},
		{
			name:  "protected constructor",
			files: []string{"A.cs", "class A { protected A() { } public int X; }"},
		},
		{
			name:  "constructor without modifier is private",
			files: []string{"A.cs", "class A { A() { } public int X; }"},
			want:  []string{"A.cs:1:7 " + singular},
		},
		{
			name: "constructed by itself",
			files: []string{"A.cs", `class A
{
    public static readonly A Instance = new A();
    private A() { }
    public int X;
}`},
		},
		{
			name: "target-typed creation",
			files: []string{"A.cs", `class A
{
    private A() { }
    public int X;
    public static A Create() => new();
}`},
		},
		{
			name: "target-typed assignment in nested type",
			files: []string{"A.cs", `class A
{
    private A() { }
    public int X;
    class B { void M(A a) { a = new(); } }
}`},
		},
		{
			name: "target-typed argument in nested type",
			files: []string{"A.cs", `class A
{
    private A() { }
    public int X;
    static void Use(A a) { }
    class B { void M() { Use(new()); } }
}`},
		},
		{
			name: "target-typed conditional in nested type",
			files: []string{"A.cs", `class A
{
    private A() { }
    public int X;
    class B { object M(bool b) { A r = b ? new() : null; return r; } }
}`},
		},
		{
			name: "target-typed argument in unrelated type",
			files: []string{
				"A.cs", "class A { private A() { } public int X; }",
				"B.cs", "class B { void M() { Use(new()); } static void Use(A a) { } }",
			},
			want: []string{"A.cs:1:7 " + singular},
		},
		{
			name:  "constructed through a using alias",
			files: []string{"A.cs", "namespace N { using X = A; class A { private A() { } public int Y; static object M() => new X(); } }"},
		},
		{
			name: "used as a base class",
			files: []string{
				"A.cs", "class A { private A() { } public int X; }",
				"B.cs", "class B : A { public B() { } }",
			},
		},
		{
			name: "nested class constructed by its container",
			files: []string{"Outer.cs", `class Outer
{
    private class Inner
    {
        private Inner() { }
        public int X;
    }
    object Make() { return new Inner(); }
}`},
		},
		{
			name: "exempt framework base",
			files: []string{"Handle.cs", `class Handle : SafeHandleZeroOrMinusOneIsInvalid
{
    private Handle() : base(true) { }
    protected override bool ReleaseHandle() => true;
}`},
		},
		{
			name: "exempt base through a local intermediate",
			files: []string{
				"Base.cs", "abstract class NativeBase : System.Runtime.InteropServices.SafeHandle { protected NativeBase() : base(default, true) { } }",
				"Handle.cs", "class Handle : NativeBase { private Handle() { } public int X; }",
			},
		},
		{
			name: "unresolved external base is skipped",
			files: []string{"A.cs", "class A : Controller { private A() { } public int X; }"},
		},
		{
			name:  "external interface does not block",
			files: []string{"A.cs", "class A : IDisposable { private A() { } public void Dispose() { } }"},
			want:  []string{"A.cs:1:7 " + singular},
		},
		{
			name:  "serialization attribute",
			files: []string{"A.cs", "[Serializable] class A { private A() { } public int X; }"},
		},
		{
			name:  "unrecognized attribute",
			files: []string{"A.cs", "[SomethingCustom] class A { private A() { } public int X; }"},
		},
		{
			name:  "informational attribute does not exempt",
			files: []string{"A.cs", "[Obsolete] class A { private A() { } public int X; }"},
			want:  []string{"A.cs:1:18 " + singular},
		},
		{
			name:  "injection attribute on constructor",
			files: []string{"A.cs", "class A { [ImportingConstructor] private A() { } public int X; }"},
		},
		{
			name:  "injection attribute with method target",
			files: []string{"A.cs", "class A { [method: ImportingConstructor] private A() { } public int X; }"},
		},
		{
			name:  "return attribute on constructor does not exempt",
			files: []string{"A.cs", "class A { [return: ImportingConstructor] private A() { } public int X; }"},
			want:  []string{"A.cs:1:7 " + singular},
		},
		{
			name:  "generated file",
			files: []string{"A.g.cs", "class A { private A() { } public int X; }"},
		},
		{
			name: "generated fragment of partial class",
			files: []string{
				"A.cs", "partial class A { private A() { } public int X; }",
				"A.Designer.cs", "partial class A { public int Y; }",
			},
			want: []string{"A.cs:1:15 " + singular},
		},
		{
			name:  "auto-generated header",
			files: []string{"A.cs", "// <auto-generated/>\nclass A { private A() { } public int X; }"},
		},
		{
			name:  "static class",
			files: []string{"A.cs", "static class A { static A() { } public static int X; }"},
		},
		{
			name:  "struct",
			files: []string{"A.cs", "struct A { private A(int x) { } public int X; }"},
		},
		{
			name:  "record",
			files: []string{"A.cs", "record A { private A() { } public int X; }"},
		},
		{
			name: "syntax error in declaration",
			files: []string{"A.cs", `class A
{
    private A( { }
    public int X;
}`},
		},
		{
			name: "ambiguous creation keeps both candidates",
			files: []string{
				"One.cs", "namespace One { class Widget { private Widget() { } public int X; } }",
				"Two.cs", "namespace Two { class Widget { private Widget() { } public int X; } }",
				"Main.cs", "class Program { object W() { return new Widget(); } }",
			},
		},
		{
			name: "qualified creation picks one candidate",
			files: []string{
				"One.cs", "namespace One { class Widget { private Widget() { } public int X; } }",
				"Two.cs", "namespace Two { class Widget { private Widget() { } public int X; } }",
				"Main.cs", "class Program { object W() { return new One.Widget(); } }",
			},
			want: []string{"Two.cs:1:23 " + singular},
		},
		{
			name: "generic arity distinguishes types",
			files: []string{
				"Box.cs", "class Box<T> { private Box() { } public T Value; }",
				"Use.cs", "class Box { public static object Make() => new Box(); }",
			},
			want: []string{"Box.cs:1:7 " + singular},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := analyzeSources(t, tt.files...)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("diagnostics (-want +got):\n%s", diff)
			}
		})
	}
}
