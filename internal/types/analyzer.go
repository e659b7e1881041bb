package types

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	gotypes "go/types"
	"os"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// ReadSourceCode reads the content of a file.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return &SourceCode{Lines: strings.Split(string(content), "\n")}, nil
}

// NewTypesInfo returns a types.Info with every map an analyzer may read.
func NewTypesInfo() *gotypes.Info {
	return &gotypes.Info{
		Types:      make(map[ast.Expr]gotypes.TypeAndValue),
		Defs:       make(map[*ast.Ident]gotypes.Object),
		Uses:       make(map[*ast.Ident]gotypes.Object),
		Implicits:  make(map[ast.Node]gotypes.Object),
		Selections: make(map[*ast.SelectorExpr]*gotypes.Selection),
		Scopes:     make(map[ast.Node]*gotypes.Scope),
	}
}

// IssueFromDiagnostic converts an analyzer diagnostic. The diagnostic's
// category names the rule.
func IssueFromDiagnostic(fset *token.FileSet, analyzer *analysis.Analyzer, d analysis.Diagnostic) Issue {
	start := fset.Position(d.Pos)
	end := start
	if d.End.IsValid() {
		end = fset.Position(d.End)
	}
	rule := d.Category
	if rule == "" {
		rule = analyzer.Name
	}
	return Issue{
		Rule:     rule,
		Category: analyzer.Name,
		Severity: SeverityWarning,
		Filename: start.Filename,
		Message:  d.Message,
		Start:    start,
		End:      end,
	}
}

// RunAnalyzer type-checks a single file and runs analyzer over it. Imports
// are resolved from source.
func RunAnalyzer(filename string, code []byte, analyzer *analysis.Analyzer) ([]Issue, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, code, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	info := NewTypesInfo()
	conf := gotypes.Config{Importer: importer.ForCompiler(fset, "source", nil)}
	pkg, err := conf.Check(file.Name.Name, fset, []*ast.File{file}, info)
	if err != nil {
		return nil, fmt.Errorf("type-checking %s: %w", filename, err)
	}

	return RunPass(analyzer, fset, []*ast.File{file}, pkg, info, gotypes.SizesFor("gc", "amd64"))
}

// RunPass runs analyzer over an already type-checked package.
func RunPass(
	analyzer *analysis.Analyzer,
	fset *token.FileSet,
	files []*ast.File,
	pkg *gotypes.Package,
	info *gotypes.Info,
	sizes gotypes.Sizes,
) ([]Issue, error) {
	var issues []Issue
	pass := &analysis.Pass{
		Analyzer:   analyzer,
		Fset:       fset,
		Files:      files,
		Pkg:        pkg,
		TypesInfo:  info,
		TypesSizes: sizes,
		ResultOf:   map[*analysis.Analyzer]interface{}{},
		Report: func(d analysis.Diagnostic) {
			issues = append(issues, IssueFromDiagnostic(fset, analyzer, d))
		},
	}
	if _, err := analyzer.Run(pass); err != nil {
		return nil, err
	}
	return issues, nil
}
