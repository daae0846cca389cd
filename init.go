package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/deadctor/internal/config"
)

const (
	sentinelStart = "# deadctor:start"
	sentinelEnd   = "# deadctor:end"

	// defaultCacheName is the conventional --cache path.
	defaultCacheName = ".deadctor-cache"
)

type initFlags struct {
	dryRun    bool
	force     bool
	gitignore bool
}

// newInitCmd implements `deadctor init`, which writes the default
// configuration to <dir>/.deadctor.yaml.
func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var f initFlags

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write the default configuration file",
		Long: `Write the default deadctor configuration to <dir>/` + config.FileName + `.

dir defaults to the current directory. An existing file is left alone unless
--force is given. With --gitignore, a block listing the conventional cache
file (` + defaultCacheName + `) is added to <dir>/.gitignore, wrapped in
sentinel comments so it can be updated in place on later runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(dir, &f, stdout, stderr)
		},
	}
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print what would be written without modifying any file")
	cmd.Flags().BoolVar(&f.force, "force", false, "overwrite an existing configuration file")
	cmd.Flags().BoolVar(&f.gitignore, "gitignore", false, "add the cache file to .gitignore")
	return cmd
}

func runInit(dir string, f *initFlags, stdout, stderr io.Writer) error {
	body, err := generateConfig()
	if err != nil {
		return err
	}

	if f.dryRun {
		_, _ = fmt.Fprint(stdout, body)
		if f.gitignore {
			existing, _ := os.ReadFile(filepath.Join(dir, ".gitignore"))
			_, _ = fmt.Fprint(stdout, applySection(string(existing), generateSection()))
		}
		return nil
	}

	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil && !f.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	_, _ = fmt.Fprintf(stderr, "wrote default configuration to %s\n", path)

	if f.gitignore {
		gi := filepath.Join(dir, ".gitignore")
		existing, _ := os.ReadFile(gi)
		updated := applySection(string(existing), generateSection())
		if err := os.WriteFile(gi, []byte(updated), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", gi, err)
		}
		_, _ = fmt.Fprintf(stderr, "wrote deadctor section to %s\n", gi)
	}
	return nil
}

// generateConfig renders the default configuration with a short header.
func generateConfig() (string, error) {
	data, err := config.Default().Marshal()
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	header := `# deadctor configuration.
# Flags given on the command line override these values.
`
	return header + string(data), nil
}

// generateSection returns the sentinel-wrapped .gitignore block.
func generateSection() string {
	return sentinelStart + "\n" + defaultCacheName + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if len(content) == 0 {
		return section + "\n"
	}
	return content + "\n" + section + "\n"
}
