package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/phobologic/deadctor/internal/analysis"
	"github.com/phobologic/deadctor/internal/cache"
	"github.com/phobologic/deadctor/internal/config"
	"github.com/phobologic/deadctor/internal/discover"
	"github.com/phobologic/deadctor/internal/generated"
	"github.com/phobologic/deadctor/internal/index"
	"github.com/phobologic/deadctor/internal/lang"
	"github.com/phobologic/deadctor/internal/model"
	"github.com/phobologic/deadctor/internal/parse"
	"github.com/phobologic/deadctor/internal/resolve"
	"github.com/phobologic/deadctor/internal/rule/ctorreach"
)

// analyze runs the whole pipeline over the C# files under root: discover,
// parse, resolve, then every rule over every declared type.
func analyze(ctx context.Context, root string, cfg *config.Config, cachePath string, logger *zap.Logger) (*model.Report, error) {
	files, err := discover.Files(ctx, root, []string{"csharp"})
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no C# files found")
	}

	files = filterBySize(files, cfg.MaxFileSize, logger)
	if len(files) == 0 {
		return nil, fmt.Errorf("no C# files found (all exceeded size limit)")
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	configHash := cfg.Hash(version)
	if cachePath != "" {
		if r, ok := cache.Load(cachePath, root, paths, configHash); ok {
			logger.Debug("using cached report", zap.String("cache", cachePath))
			return r, nil
		}
	}

	parsed := parseFilesConcurrent(ctx, root, files, cfg.Workers, logger)
	if len(parsed) == 0 {
		return nil, fmt.Errorf("no files could be parsed")
	}

	comp := resolve.Build(parsed, resolve.Options{
		Markers: cfg.MarkerTable(),
		Logger:  logger,
	})

	rules, err := buildRules(ctx, cfg, comp)
	if err != nil {
		return nil, err
	}
	diags, err := analysis.Run(ctx, comp, rules, analysis.Options{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	report := &model.Report{
		Root:        filepath.Base(root),
		Files:       len(parsed),
		Types:       comp.NumTypes(),
		Diagnostics: diags,
	}

	if cachePath != "" {
		if err := cache.Save(cachePath, paths, configHash, report); err != nil {
			logger.Warn("failed to write cache", zap.String("cache", cachePath), zap.Error(err))
		}
	}
	return report, nil
}

// buildRules configures every rule. comp may be nil when only descriptors
// are needed.
func buildRules(ctx context.Context, cfg *config.Config, comp *model.Compilation) ([]*analysis.Rule, error) {
	var searcher ctorreach.Searcher = ctorreach.ScanSearcher{}
	if cfg.UseIndex && comp != nil {
		idx, err := index.Build(ctx, comp)
		if err != nil {
			return nil, fmt.Errorf("indexing construction sites: %w", err)
		}
		searcher = idx
	}

	detector := generated.New(cfg.Generated.Patterns, cfg.Generated.HeaderMarkers)
	checker := ctorreach.New(ctorreach.Options{
		ExemptBases:        cfg.ExemptBases,
		ExemptMarkers:      cfg.ExemptMarkerKinds(),
		TrustExternalBases: cfg.TrustExternalBases,
		IsGenerated:        detector.IsGenerated,
		Searcher:           searcher,
		Severity:           model.Severity(cfg.Severity),
	})
	return []*analysis.Rule{checker.Rule()}, nil
}

func filterBySize(files []discover.FileEntry, maxSize int, logger *zap.Logger) []discover.FileEntry {
	if maxSize <= 0 {
		return files
	}
	var kept []discover.FileEntry
	for _, f := range files {
		if f.Size > int64(maxSize) {
			logger.Warn("file skipped: too large", zap.String("file", f.Path), zap.Int("limit", maxSize))
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func parseFilesConcurrent(ctx context.Context, root string, files []discover.FileEntry, workers int, logger *zap.Logger) []*parse.File {
	type result struct {
		index int
		file  *parse.File
	}

	numWorkers := workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each goroutine gets its own parser
			parser := lang.CSharp().NewParser()
			defer parser.Close()

			for idx := range work {
				f := files[idx]
				source, err := os.ReadFile(filepath.Join(root, f.Path))
				if err != nil {
					logger.Warn("failed to read file", zap.String("file", f.Path), zap.Error(err))
					continue
				}

				pf, err := parse.Parse(ctx, parser, source, filepath.ToSlash(f.Path))
				if err != nil {
					logger.Warn("failed to parse file", zap.String("file", f.Path), zap.Error(err))
					continue
				}
				if pf.HasErrors {
					logger.Warn("file has syntax errors; affected declarations are skipped", zap.String("file", f.Path))
				}
				results <- result{index: idx, file: pf}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results in original order
	indexed := make([]*parse.File, len(files))
	for r := range results {
		indexed[r.index] = r.file
	}

	var parsed []*parse.File
	for _, pf := range indexed {
		if pf != nil {
			parsed = append(parsed, pf)
		}
	}
	return parsed
}
