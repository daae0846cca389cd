// Package discover finds the C# source files that make up a compilation.
//
// In a git checkout the tracked and untracked-but-not-ignored files are
// used. Otherwise the root .gitignore is applied. Build output directories
// are never entered: obj/ holds compiler-generated sources such as
// AssemblyInfo and XAML code-behind that would duplicate declarations from
// the project, and bin/ and packages/ hold restored or built copies.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/deadctor/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to repo root
	Language string
	Size     int64
}

// skipDirs are matched by directory name at any depth.
var skipDirs = map[string]struct{}{
	"bin":          {},
	"obj":          {},
	"packages":     {},
	"node_modules": {},
	"TestResults":  {},
	"artifacts":    {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	".vs":          {},
	".idea":        {},
}

// Files discovers parseable source files under root, sorted by path.
// If languages is non-empty, only files matching one of the listed languages
// are returned. The walk stops with ctx.Err() when ctx is cancelled.
func Files(ctx context.Context, root string, languages []string) ([]FileEntry, error) {
	langSet := make(map[string]struct{}, len(languages))
	for _, l := range languages {
		langSet[l] = struct{}{}
	}
	gitFiles := gitLsFiles(ctx, root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		ext := filepath.Ext(name)
		langName := lang.ForExtension(ext)
		if langName == "" {
			return nil
		}

		if len(langSet) > 0 {
			if _, ok := langSet[langName]; !ok {
				return nil
			}
		}

		entry := FileEntry{Path: rel, Language: langName}
		if info, err := d.Info(); err == nil {
			entry.Size = info.Size()
		}
		results = append(results, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b FileEntry) int {
		return strings.Compare(a.Path, b.Path)
	})

	return results, nil
}

// gitLsFiles returns the files git would consider part of the working tree,
// or nil when root is not a git checkout or git is unavailable.
func gitLsFiles(ctx context.Context, root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
