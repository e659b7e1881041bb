// Package lint runs the smartcast analyzer over files, sources and packages
// and post-processes the issues: severities from the config, suppression
// comments and ignored rules.
package lint

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/packages"

	"github.com/gnolang/smartcast/internal/nolint"
	"github.com/gnolang/smartcast/internal/smartcast"
	tt "github.com/gnolang/smartcast/internal/types"
)

type LintEngine interface {
	Run(filePath string) ([]tt.Issue, error)
	RunSource(source []byte) ([]tt.Issue, error)
	IgnoreRule(rule string)
}

// Engine analyzes Go code with one analyzer configuration.
type Engine struct {
	logger   *zap.Logger
	config   Config
	analyzer *analysis.Analyzer
	cache    *Cache

	mu      sync.RWMutex
	ignored map[string]bool
}

var _ LintEngine = (*Engine)(nil)

// New builds an engine. A nil logger disables logging.
func New(logger *zap.Logger, config Config) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:   logger,
		config:   config,
		analyzer: smartcast.New(logger.Named(smartcast.Name), config.Options()),
		ignored:  make(map[string]bool),
	}
}

// SetCache makes Run reuse and record per-file results in c.
func (e *Engine) SetCache(c *Cache) {
	e.cache = c
}

func (e *Engine) IgnoreRule(rule string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ignored[rule] = true
}

func (e *Engine) isIgnored(rule string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ignored[rule]
}

// Run analyzes the package containing filePath and keeps the issues that
// fall inside that file.
func (e *Engine) Run(filePath string) ([]tt.Issue, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if issues, ok := e.cache.Get(abs); ok {
			e.logger.Debug("cache hit", zap.String("file", abs))
			return e.withoutIgnored(issues), nil
		}
	}
	issues, err := e.runFile(abs)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if err := e.cache.Put(abs, issues); err != nil {
			e.logger.Warn("caching issues", zap.String("file", abs), zap.Error(err))
		}
	}
	return e.withoutIgnored(issues), nil
}

func (e *Engine) runFile(abs string) ([]tt.Issue, error) {
	pkgs, err := e.load(filepath.Dir(abs), "file="+abs)
	if err != nil {
		return nil, err
	}

	var issues []tt.Issue
	for _, pkg := range pkgs {
		found, err := e.runPackage(pkg)
		if err != nil {
			return nil, err
		}
		for _, issue := range found {
			if sameFile(issue.Filename, abs) {
				issues = append(issues, issue)
			}
		}
	}
	return issues, nil
}

// RunSource analyzes a standalone file held in memory.
func (e *Engine) RunSource(source []byte) ([]tt.Issue, error) {
	const filename = "source.go"
	issues, err := tt.RunAnalyzer(filename, source, e.analyzer)
	if err != nil {
		return nil, fmt.Errorf("error analyzing source: %w", err)
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, source, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	managers := map[string]*nolint.Manager{filename: nolint.ParseComments(f, fset)}
	return e.withoutIgnored(e.postProcess(issues, managers)), nil
}

// RunPackages analyzes every package matched by patterns, relative to dir.
func (e *Engine) RunPackages(ctx context.Context, dir string, patterns ...string) ([]tt.Issue, error) {
	pkgs, err := e.loadContext(ctx, dir, patterns...)
	if err != nil {
		return nil, err
	}
	return processItems(ctx, e.logger, pkgs, e.config.workers(), "packages",
		func(pkg *packages.Package) string { return pkg.PkgPath },
		func(pkg *packages.Package) ([]tt.Issue, error) {
			issues, err := e.runPackage(pkg)
			return e.withoutIgnored(issues), err
		})
}

func (e *Engine) load(dir string, patterns ...string) ([]*packages.Package, error) {
	return e.loadContext(context.Background(), dir, patterns...)
}

func (e *Engine) loadContext(ctx context.Context, dir string, patterns ...string) ([]*packages.Package, error) {
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedTypes | packages.NeedTypesSizes |
			packages.NeedSyntax | packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading %v: %w", patterns, err)
	}
	e.logger.Debug("loaded packages", zap.Strings("patterns", patterns), zap.Int("count", len(pkgs)))
	return pkgs, nil
}

func (e *Engine) runPackage(pkg *packages.Package) ([]tt.Issue, error) {
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("package %s: %v", pkg.PkgPath, pkg.Errors[0])
	}
	issues, err := tt.RunPass(e.analyzer, pkg.Fset, pkg.Syntax, pkg.Types, pkg.TypesInfo, pkg.TypesSizes)
	if err != nil {
		return nil, fmt.Errorf("package %s: %w", pkg.PkgPath, err)
	}
	managers := make(map[string]*nolint.Manager, len(pkg.Syntax))
	for _, f := range pkg.Syntax {
		managers[pkg.Fset.Position(f.Package).Filename] = nolint.ParseComments(f, pkg.Fset)
	}
	return e.postProcess(issues, managers), nil
}

// postProcess applies configured severities and drops disabled and
// suppressed issues.
func (e *Engine) postProcess(issues []tt.Issue, managers map[string]*nolint.Manager) []tt.Issue {
	out := issues[:0]
	for _, issue := range issues {
		issue.Severity = e.config.severity(issue.Rule)
		if issue.Severity == tt.SeverityOff {
			continue
		}
		if m, ok := managers[issue.Filename]; ok && m.IsNolint(issue.Start, issue.Rule) {
			continue
		}
		out = append(out, issue)
	}
	return out
}

func (e *Engine) withoutIgnored(issues []tt.Issue) []tt.Issue {
	var out []tt.Issue
	for _, issue := range issues {
		if !e.isIgnored(issue.Rule) {
			out = append(out, issue)
		}
	}
	return out
}

func sameFile(a, b string) bool {
	if a == b {
		return true
	}
	ai, err1 := os.Stat(a)
	bi, err2 := os.Stat(b)
	return err1 == nil && err2 == nil && os.SameFile(ai, bi)
}

func ProcessSources(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	sources [][]byte,
	processor func(LintEngine, []byte) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	var allIssues []tt.Issue
	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			return allIssues, err
		}
		issues, err := processor(engine, source)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing source", zap.Int("source", i), zap.Error(err))
			}
			return nil, err
		}
		allIssues = append(allIssues, issues...)
	}
	return allIssues, nil
}

func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	paths []string,
	processor func(LintEngine, string) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	var allIssues []tt.Issue
	for _, path := range paths {
		issues, err := ProcessPath(ctx, logger, engine, path, processor)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return allIssues, err
		}
		allIssues = append(allIssues, issues...)
	}
	return allIssues, nil
}

// ProcessPath analyzes a file, or every Go file under a directory on a
// bounded worker pool. On cancellation it returns what finished so far
// together with the context error.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine LintEngine,
	path string,
	processor func(LintEngine, string) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}
	if !info.IsDir() {
		if !hasDesiredExtension(path) {
			return nil, nil
		}
		return processor(engine, path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && p != path && (d.Name() == "testdata" || d.Name()[0] == '.') {
			return filepath.SkipDir
		}
		if !d.IsDir() && hasDesiredExtension(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking %s: %w", path, err)
	}

	return processItems(ctx, logger, files, 0, path,
		func(fp string) string { return fp },
		func(fp string) ([]tt.Issue, error) { return processor(engine, fp) })
}

// processItems runs work over items with at most workers goroutines and a
// progress bar on stderr when it is a terminal. Failed items are logged and
// skipped.
func processItems[T any](
	ctx context.Context,
	logger *zap.Logger,
	items []T,
	workers int,
	description string,
	name func(T) string,
	work func(T) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	if workers <= 0 {
		workers = DefaultConfig().workers()
	}
	bar := newProgressBar(len(items), description, os.Stderr)

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		issues = []tt.Issue{}
	)
	sem := make(chan struct{}, workers)

loop:
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			defer func() { <-sem }()

			found, err := work(item)
			_ = bar.Add(1)
			if err != nil {
				logger.Error("Error processing", zap.String("item", name(item)), zap.Error(err))
				return
			}
			mu.Lock()
			issues = append(issues, found...)
			mu.Unlock()
		}(item)
	}
	wg.Wait()
	_ = bar.Finish()

	sortIssues(issues)
	return issues, ctx.Err()
}

func newProgressBar(total int, description string, w io.Writer) *progressbar.ProgressBar {
	visible := false
	if f, ok := w.(*os.File); ok {
		visible = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionSetDescription(description),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func sortIssues(issues []tt.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i].Start, issues[j].Start
		if issues[i].Filename != issues[j].Filename {
			return issues[i].Filename < issues[j].Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

func ProcessFile(engine LintEngine, filePath string) ([]tt.Issue, error) {
	return engine.Run(filePath)
}

func ProcessSource(engine LintEngine, source []byte) ([]tt.Issue, error) {
	return engine.RunSource(source)
}

func hasDesiredExtension(path string) bool {
	return filepath.Ext(path) == ".go"
}
