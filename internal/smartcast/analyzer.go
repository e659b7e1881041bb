// Package smartcast drives the dfa engine over Go function bodies and reports
// nil checks and type assertions whose outcome is already decided by earlier
// control flow.
//
// The walk is structured: each statement maps an incoming flow to an
// outgoing one, with a nil flow marking unreachable code. Functions that use
// goto are skipped.
package smartcast

import (
	"errors"
	"fmt"
	"go/ast"

	"github.com/fzipp/gocyclo"
	"go.uber.org/zap"
	"golang.org/x/tools/go/analysis"

	"github.com/gnolang/smartcast/internal/dfa"
)

const Name = "smartcast"

// Rules reported by the analyzer, carried in the diagnostic category.
const (
	RuleNilCheck  = "redundant-nil-check"
	RuleAssertion = "redundant-type-assertion"
)

// Options select what the analyzer reports.
type Options struct {
	NilChecks        bool
	Assertions       bool
	MaxApprovalDepth int
	// MaxComplexity skips functions whose cyclomatic complexity exceeds it.
	// Zero means no limit.
	MaxComplexity int
}

func DefaultOptions() Options {
	return Options{
		NilChecks:        true,
		Assertions:       true,
		MaxApprovalDepth: 64,
	}
}

// Analyzer reports with the default options and no logging.
var Analyzer = New(nil, DefaultOptions())

type runner struct {
	logger *zap.Logger
	opts   Options
}

// New builds an analyzer. A nil logger disables logging.
func New(logger *zap.Logger, opts Options) *analysis.Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &runner{logger: logger, opts: opts}
	return &analysis.Analyzer{
		Name: Name,
		Doc:  "report nil checks and type assertions whose outcome is already known",
		Run:  r.run,
	}
}

func (r *runner) run(pass *analysis.Pass) (interface{}, error) {
	if pass.TypesInfo == nil {
		return nil, errors.New("smartcast: type information is required")
	}

	var firstErr error
	for _, file := range pass.Files {
		ast.Inspect(file, func(n ast.Node) bool {
			var err error
			switch fn := n.(type) {
			case *ast.FuncDecl:
				if fn.Body != nil {
					err = r.analyzeFunc(pass, fn, fn.Body)
				}
			case *ast.FuncLit:
				err = r.analyzeFunc(pass, fn, fn.Body)
			}
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", pass.Fset.Position(n.Pos()), err)
			}
			return true
		})
	}
	return nil, firstErr
}

func (r *runner) analyzeFunc(pass *analysis.Pass, fn ast.Node, body *ast.BlockStmt) (err error) {
	name := funcName(fn)
	if hasGoto(body) {
		r.logger.Debug("skipping function with goto", zap.String("func", name))
		return nil
	}
	if limit := r.opts.MaxComplexity; limit > 0 {
		if c := gocyclo.Complexity(fn); c > limit {
			r.logger.Debug("skipping complex function",
				zap.String("func", name),
				zap.Int("complexity", c),
				zap.Int("limit", limit))
			return nil
		}
	}
	defer dfa.RecoverInvariant(&err)

	w := newWalker(pass, r.logger, r.opts, fn)
	w.scan(body)
	w.block(w.logic.CreateEmptyFlow(), body.List)

	r.logger.Debug("analyzed function",
		zap.String("func", name),
		zap.Int("variables", w.storage.Len()))
	return nil
}

func funcName(fn ast.Node) string {
	if decl, ok := fn.(*ast.FuncDecl); ok {
		return decl.Name.Name
	}
	return "func literal"
}
