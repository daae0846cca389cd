// deadctor reports C# classes that can never be instantiated because every
// constructor is private and nothing in the project constructs them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phobologic/deadctor/internal/config"
	"github.com/phobologic/deadctor/internal/logging"
	"github.com/phobologic/deadctor/internal/output"
)

var version = "dev"

// errFindings is returned by --fail runs that produced diagnostics.
var errFindings = errors.New("diagnostics reported")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errFindings) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

type rootFlags struct {
	configPath  string
	format      string
	cachePath   string
	workers     int
	noIndex     bool
	maxFileSize int
	verbose     bool
	fail        bool
	noColor     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:           "deadctor [path]",
		Short:         "Find C# classes that can never be instantiated",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runAnalyze(cmd, root, &f, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("deadctor {{.Version}}\n")

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "config file (default <path>/"+config.FileName+")")
	fl.StringVarP(&f.format, "format", "f", string(output.Text), "output format: text, json or toon")
	fl.StringVar(&f.cachePath, "cache", "", "cache file path")
	fl.IntVarP(&f.workers, "workers", "j", 0, "parallel workers (0 = GOMAXPROCS)")
	fl.BoolVar(&f.noIndex, "no-index", false, "scan the compilation per type instead of building a site index")
	fl.IntVar(&f.maxFileSize, "max-file-size", config.DefaultMaxFileSize, "skip files larger than this many bytes")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
	fl.BoolVar(&f.fail, "fail", false, "exit with status 1 when diagnostics are reported")
	fl.BoolVar(&f.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(newInitCmd(stdout, stderr), newRulesCmd(stdout))
	return cmd
}

func runAnalyze(cmd *cobra.Command, root string, f *rootFlags, stdout, stderr io.Writer) error {
	format, err := output.ParseFormat(f.format)
	if err != nil {
		return err
	}

	root, err = filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	cfg, err := loadConfig(root, f.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg, f)

	logger := logging.New(stderr, f.verbose)
	defer func() { _ = logger.Sync() }()
	logger.Debug("analyzing", zap.String("root", root), zap.Int("workers", cfg.Workers), zap.Bool("index", cfg.UseIndex))

	report, err := analyze(cmd.Context(), root, cfg, f.cachePath, logger)
	if err != nil {
		return err
	}

	useColor := !f.noColor && !color.NoColor && stdout == io.Writer(os.Stdout)
	if err := output.Write(stdout, format, report, useColor); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if f.fail && len(report.Diagnostics) > 0 {
		return errFindings
	}
	return nil
}

// loadConfig reads the explicit config file, or the optional one in root.
func loadConfig(root, path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path, false)
	}
	return config.Load(filepath.Join(root, config.FileName), true)
}

// applyFlags overrides config values with flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f *rootFlags) {
	fl := cmd.Flags()
	if fl.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fl.Changed("no-index") {
		cfg.UseIndex = !f.noIndex
	}
	if fl.Changed("max-file-size") {
		cfg.MaxFileSize = f.maxFileSize
	}
}

func newRulesCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the rules deadctor runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules, err := buildRules(cmd.Context(), config.Default(), nil)
			if err != nil {
				return err
			}
			for _, r := range rules {
				d := r.Descriptor
				if _, err := fmt.Fprintf(stdout, "%s\t%s\t%s\n\t%s\n", d.ID, d.Severity, d.Title, d.MessageFormat); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
