// Package nolint finds suppression comments in a Go file.
//
// Two forms are recognized:
//
//	//nolint                     every rule
//	//nolint:rule1,rule2         the listed rules
//	//smartcast:ignore rule1     the listed rules, or every rule when none are listed
//
// A comment at the end of a statement covers that statement. A comment on
// its own line covers the statement or function that starts on the next
// line. A comment above the package clause covers the whole file.
package nolint

import (
	"errors"
	"go/ast"
	"go/token"
	"strings"
)

const (
	nolintPrefix = "//nolint"
	ignorePrefix = "//smartcast:ignore"
)

var errNotDirective = errors.New("not a suppression comment")

// Manager answers whether a position is suppressed for a rule.
type Manager struct {
	scopes map[string][]scope
}

type scope struct {
	rules      map[string]struct{}
	start, end int
}

func (s scope) covers(line int, rule string) bool {
	if line < s.start || line > s.end {
		return false
	}
	if len(s.rules) == 0 {
		return true
	}
	_, ok := s.rules[rule]
	return ok
}

// ParseComments collects the suppression scopes of f.
func ParseComments(f *ast.File, fset *token.FileSet) *Manager {
	m := &Manager{scopes: make(map[string][]scope)}
	stmts := statementsByLine(f, fset)
	pkgLine := fset.Position(f.Package).Line

	for _, group := range f.Comments {
		for _, c := range group.List {
			rules, err := parseDirective(c.Text)
			if err != nil {
				continue
			}
			pos := fset.Position(c.Slash)
			s := scope{rules: rules, start: pos.Line, end: pos.Line}
			switch {
			case pos.Line < pkgLine:
				s.start = 1
				s.end = fset.Position(f.End()).Line
			case isTrailing(fset, c, stmts):
				stmt := stmts[pos.Line]
				s.start = fset.Position(stmt.Pos()).Line
				s.end = fset.Position(stmt.End()).Line
			default:
				if next := nodeAfter(f, fset, stmts, pos.Line); next != nil {
					s.end = fset.Position(next.End()).Line
				}
			}
			m.scopes[pos.Filename] = append(m.scopes[pos.Filename], s)
		}
	}
	return m
}

// IsNolint reports whether rule is suppressed at pos.
func (m *Manager) IsNolint(pos token.Position, rule string) bool {
	for _, s := range m.scopes[pos.Filename] {
		if s.covers(pos.Line, rule) {
			return true
		}
	}
	return false
}

func parseDirective(text string) (map[string]struct{}, error) {
	var list string
	switch {
	case text == nolintPrefix:
	case strings.HasPrefix(text, nolintPrefix+":"):
		list = strings.TrimPrefix(text, nolintPrefix+":")
		if strings.TrimSpace(list) == "" {
			return nil, errors.New("nolint: no rules after colon")
		}
	case text == ignorePrefix:
	case strings.HasPrefix(text, ignorePrefix+" "):
		list = strings.TrimPrefix(text, ignorePrefix+" ")
	default:
		return nil, errNotDirective
	}

	rules := make(map[string]struct{})
	for _, r := range strings.FieldsFunc(list, func(c rune) bool { return c == ',' || c == ' ' }) {
		rules[r] = struct{}{}
	}
	return rules, nil
}

// statementsByLine maps each line to the first statement starting on it.
func statementsByLine(f *ast.File, fset *token.FileSet) map[int]ast.Stmt {
	stmts := make(map[int]ast.Stmt)
	ast.Inspect(f, func(n ast.Node) bool {
		if stmt, ok := n.(ast.Stmt); ok {
			line := fset.Position(stmt.Pos()).Line
			if _, seen := stmts[line]; !seen {
				stmts[line] = stmt
			}
		}
		return true
	})
	return stmts
}

func isTrailing(fset *token.FileSet, c *ast.Comment, stmts map[int]ast.Stmt) bool {
	pos := fset.Position(c.Slash)
	stmt, ok := stmts[pos.Line]
	return ok && fset.Position(stmt.Pos()).Offset < pos.Offset
}

// nodeAfter returns the statement or declaration that starts on the line
// after line.
func nodeAfter(f *ast.File, fset *token.FileSet, stmts map[int]ast.Stmt, line int) ast.Node {
	if stmt, ok := stmts[line+1]; ok {
		return stmt
	}
	for _, decl := range f.Decls {
		if fset.Position(decl.Pos()).Line == line+1 {
			return decl
		}
	}
	return nil
}
