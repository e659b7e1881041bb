package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/smartcast/formatter"
	tt "github.com/gnolang/smartcast/internal/types"
	"github.com/gnolang/smartcast/lint"
)

var (
	ignoreRules     string
	checkJsonOutput bool
	outPath         string
	byFile          bool
	cacheDir        string
	clearCache      bool
	readStdin       bool
)

// checkCmd: smartcast check [packages...]
var checkCmd = &cobra.Command{
	Use:   "check [packages...]",
	Short: "Report redundant nil checks and type assertions",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			args = []string{"./..."}
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		engine := lint.New(logger, config)
		if ignoreRules != "" {
			for _, rule := range strings.Split(ignoreRules, ",") {
				engine.IgnoreRule(strings.TrimSpace(rule))
			}
		}

		var (
			issues  []tt.Issue
			sources map[string]*tt.SourceCode
			err     error
		)
		switch {
		case readStdin:
			issues, sources, err = checkStdin(ctx, engine, cmd.InOrStdin())
		case byFile:
			issues, err = checkFiles(ctx, engine, args)
		default:
			issues, err = engine.RunPackages(ctx, ".", args...)
		}
		if err != nil {
			logger.Error("Error checking", zap.Strings("args", args), zap.Error(err))
			os.Exit(1)
		}

		if err := printIssues(cmd.OutOrStdout(), logger, issues, sources, checkJsonOutput, outPath); err != nil {
			logger.Error("Error printing issues", zap.Error(err))
			os.Exit(1)
		}
		if len(issues) > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	checkCmd.Flags().StringVar(&ignoreRules, "ignore", "", "Comma-separated list of rules to ignore")
	checkCmd.Flags().BoolVar(&checkJsonOutput, "json", false, "Output issues in JSON format")
	checkCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (when using JSON)")
	checkCmd.Flags().BoolVar(&byFile, "files", false, "Treat arguments as files and directories instead of package patterns")
	checkCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Reuse per-file results stored in this directory (with --files)")
	checkCmd.Flags().BoolVar(&clearCache, "clear-cache", false, "Discard cached results before checking")
	checkCmd.Flags().BoolVar(&readStdin, "stdin", false, "Check a single Go file read from standard input")
}

func checkFiles(ctx context.Context, engine *lint.Engine, paths []string) ([]tt.Issue, error) {
	if cacheDir == "" {
		return lint.ProcessFiles(ctx, logger, engine, paths, lint.ProcessFile)
	}
	cache, err := lint.OpenCache(cacheDir, config, lint.DefaultCacheMaxAge)
	if err != nil {
		return nil, err
	}
	if clearCache {
		cache.InvalidateAll()
	}
	engine.SetCache(cache)

	issues, err := lint.ProcessFiles(ctx, logger, engine, paths, lint.ProcessFile)
	if saveErr := cache.Save(); saveErr != nil {
		logger.Warn("Error saving cache", zap.Error(saveErr))
	}
	return issues, err
}

// checkStdin analyzes one file read from r. The returned sources let the
// text output quote it.
func checkStdin(ctx context.Context, engine *lint.Engine, r io.Reader) ([]tt.Issue, map[string]*tt.SourceCode, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading stdin: %w", err)
	}
	issues, err := lint.ProcessSources(ctx, logger, engine, [][]byte{src}, lint.ProcessSource)
	if err != nil {
		return nil, nil, err
	}
	sources := make(map[string]*tt.SourceCode)
	for _, issue := range issues {
		sources[issue.Filename] = &tt.SourceCode{Lines: strings.Split(string(src), "\n")}
	}
	return issues, sources, nil
}

// printIssues writes issues as JSON or as annotated snippets. Files missing
// from sources are read from disk.
func printIssues(w io.Writer, logger *zap.Logger, issues []tt.Issue, sources map[string]*tt.SourceCode, isJson bool, jsonOutput string) error {
	issuesByFile := make(map[string][]tt.Issue)
	for _, issue := range issues {
		issuesByFile[issue.Filename] = append(issuesByFile[issue.Filename], issue)
	}

	if isJson {
		d, err := json.Marshal(issuesByFile)
		if err != nil {
			return fmt.Errorf("marshalling issues: %w", err)
		}
		if jsonOutput == "" {
			_, err = fmt.Fprintln(w, string(d))
			return err
		}
		return os.WriteFile(jsonOutput, d, 0o644)
	}

	sortedFiles := make([]string, 0, len(issuesByFile))
	for filename := range issuesByFile {
		sortedFiles = append(sortedFiles, filename)
	}
	sort.Strings(sortedFiles)

	for _, filename := range sortedFiles {
		sourceCode, ok := sources[filename]
		if !ok {
			var err error
			sourceCode, err = tt.ReadSourceCode(filename)
			if err != nil {
				logger.Error("Error reading source file", zap.String("file", filename), zap.Error(err))
				continue
			}
		}
		fmt.Fprintln(w, formatter.GenerateFormattedIssue(issuesByFile[filename], sourceCode))
	}
	return nil
}
