package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phobologic/deadctor/internal/model"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const registrySource = `namespace Shop
{
    public class Registry
    {
        private Registry() { }
    }
}
`

const wantRegistry = "Registry.cs:3:18: warning: This class can't be instantiated; make its constructor 'public'. [S3453]"

// createSampleRepo writes a project with one dead class (Registry), one
// class constructed through its private constructor (Singleton), and one
// static utility holder (Helpers).
func createSampleRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "Registry.cs", registrySource)
	writeTestFile(t, dir, "Singleton.cs", `namespace Shop
{
    public sealed class Singleton
    {
        public static readonly Singleton Instance = new Singleton();
        private Singleton() { }
    }
}
`)
	writeTestFile(t, dir, "Helpers.cs", `namespace Shop
{
    public class Helpers
    {
        private Helpers() { }
        public static int Twice(int x) => x * 2;
    }
}
`)
	return dir
}

func TestRunText(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	got := strings.TrimSpace(stdout.String())
	if got != wantRegistry {
		t.Errorf("output:\n%s\nwant:\n%s", got, wantRegistry)
	}
}

func TestRunNoIndexMatchesIndex(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var indexed, scanned, stderr bytes.Buffer
	if err := run([]string{dir}, &indexed, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := run([]string{"--no-index", "--workers", "1", dir}, &scanned, &stderr); err != nil {
		t.Fatalf("run --no-index: %v", err)
	}
	if indexed.String() != scanned.String() {
		t.Errorf("index and scan disagree:\nindex:\n%s\nscan:\n%s", indexed.String(), scanned.String())
	}
}

func TestRunJSON(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--format", "json", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	var r model.Report
	if err := json.Unmarshal(stdout.Bytes(), &r); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, stdout.String())
	}
	if r.Files != 3 {
		t.Errorf("Files = %d, want 3", r.Files)
	}
	if len(r.Diagnostics) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(r.Diagnostics))
	}
	d := r.Diagnostics[0]
	if d.Rule != "S3453" || d.Location.File != "Registry.cs" || d.Location.Line != 3 {
		t.Errorf("unexpected diagnostic %+v", d)
	}
}

func TestRunTOON(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-f", "toon", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	out := stdout.String()
	if !strings.Contains(out, "files: 3") {
		t.Errorf("missing file count:\n%s", out)
	}
	if !strings.Contains(out, "diagnostics[1]{file,line,column,rule,severity,message}:") {
		t.Errorf("missing diagnostics table:\n%s", out)
	}
	if !strings.Contains(out, "Registry.cs,3,18,S3453,warning,") {
		t.Errorf("missing Registry row:\n%s", out)
	}
}

func TestRunBadFormat(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"--format", "xml", dir}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestRunFail(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"--fail", dir}, &stdout, &stderr)
	if !errors.Is(err, errFindings) {
		t.Errorf("expected errFindings, got %v", err)
	}
}

func TestRunFailClean(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "Widget.cs", "public class Widget { public Widget() { } }\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--fail", dir}, &stdout, &stderr); err != nil {
		t.Errorf("clean project should pass, got %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("expected no output, got:\n%s", stdout.String())
	}
}

func TestRunCache(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	cachePath := filepath.Join(t.TempDir(), "cache.msgpack")

	// Backdate sources so the cache written next is newer than all of them.
	past := time.Now().Add(-time.Hour)
	for _, name := range []string{"Registry.cs", "Singleton.cs", "Helpers.cs"} {
		if err := os.Chtimes(filepath.Join(dir, name), past, past); err != nil {
			t.Fatal(err)
		}
	}

	var first, stderr bytes.Buffer
	if err := run([]string{"--cache", cachePath, dir}, &first, &stderr); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := os.Stat(cachePath); err != nil {
		t.Fatalf("cache not written: %v", err)
	}

	var second bytes.Buffer
	if err := run([]string{"--cache", cachePath, "-v", dir}, &second, &stderr); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.String() != second.String() {
		t.Errorf("cached output differs:\nfirst:\n%s\nsecond:\n%s", first.String(), second.String())
	}
	if !strings.Contains(stderr.String(), "using cached report") {
		t.Errorf("expected cache hit to be logged, stderr:\n%s", stderr.String())
	}
}

// Not parallel: it changes the package-level version.
func TestRunCacheVersionChange(t *testing.T) {
	dir := createSampleRepo(t)
	cachePath := filepath.Join(t.TempDir(), "cache.msgpack")
	past := time.Now().Add(-time.Hour)
	for _, name := range []string{"Registry.cs", "Singleton.cs", "Helpers.cs"} {
		if err := os.Chtimes(filepath.Join(dir, name), past, past); err != nil {
			t.Fatal(err)
		}
	}

	old := version
	t.Cleanup(func() { version = old })

	version = "1.0.0"
	var out, stderr bytes.Buffer
	if err := run([]string{"--cache", cachePath, dir}, &out, &stderr); err != nil {
		t.Fatalf("first run: %v", err)
	}

	version = "1.1.0"
	stderr.Reset()
	if err := run([]string{"--cache", cachePath, "-v", dir}, &out, &stderr); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if strings.Contains(stderr.String(), "using cached report") {
		t.Errorf("cache from another version should not be used, stderr:\n%s", stderr.String())
	}
}

func TestRunConfigFile(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	writeTestFile(t, dir, ".deadctor.yaml", "severity: error\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), ": error: ") {
		t.Errorf("severity from config not applied:\n%s", stdout.String())
	}
}

func TestRunInvalidConfig(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	cfg := filepath.Join(t.TempDir(), "bad.yaml")
	writeTestFile(t, filepath.Dir(cfg), filepath.Base(cfg), "severity: loud\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{"--config", cfg, dir}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "invalid severity") {
		t.Errorf("expected invalid severity error, got %v", err)
	}
}

func TestRunNoFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "README.md", "# nothing here\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{dir}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "no C# files found") {
		t.Errorf("expected no-files error, got %v", err)
	}
}

func TestRunMaxFileSize(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "Registry.cs", registrySource)

	var stdout, stderr bytes.Buffer
	err := run([]string{"--max-file-size", "10", dir}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "size limit") {
		t.Errorf("expected size limit error, got %v", err)
	}
	if !strings.Contains(stderr.String(), "file skipped: too large") {
		t.Errorf("expected skip warning, stderr:\n%s", stderr.String())
	}
}

func TestRunNotDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "Registry.cs", registrySource)

	var stdout, stderr bytes.Buffer
	err := run([]string{filepath.Join(dir, "Registry.cs")}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("expected not-a-directory error, got %v", err)
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--version"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "deadctor ") {
		t.Errorf("unexpected version output: %q", stdout.String())
	}
}

func TestRunRules(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"rules"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"S3453", "warning", "This class can't be instantiated; make %s 'public'."} {
		if !strings.Contains(out, want) {
			t.Errorf("rules output missing %q:\n%s", want, out)
		}
	}
}
