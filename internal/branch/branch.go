// Package branch classifies how a Go statement leaves the enclosing block.
package branch

import (
	"go/ast"
	"go/token"
)

type Kind int

const (
	// Regular statements fall through to the next statement.
	Regular Kind = iota

	// Return leaves the current function.
	Return

	// Continue jumps back to the head of a surrounding loop.
	Continue

	// Break leaves a surrounding loop, switch or select.
	Break

	// Goto jumps to a label.
	Goto

	// Fallthrough transfers control to the next case clause.
	Fallthrough

	// Panic unwinds the current goroutine.
	Panic

	// Exit stops the program.
	Exit
)

func (k Kind) String() string {
	switch k {
	case Regular:
		return "regular"
	case Return:
		return "return"
	case Continue:
		return "continue"
	case Break:
		return "break"
	case Goto:
		return "goto"
	case Fallthrough:
		return "fallthrough"
	case Panic:
		return "panic"
	case Exit:
		return "exit"
	default:
		return "unknown"
	}
}

// LeavesFunction reports whether control never comes back to the function.
func (k Kind) LeavesFunction() bool {
	return k == Return || k == Panic || k == Exit
}

// Call names a function by package and identifier.
type Call struct {
	Pkg  string
	Name string
}

// deviatingFuncs lists calls that never return.
var deviatingFuncs = map[Call]Kind{
	{"os", "Exit"}:     Exit,
	{"log", "Fatal"}:   Exit,
	{"log", "Fatalf"}:  Exit,
	{"log", "Fatalln"}: Exit,
	{"", "panic"}:      Panic,
	{"log", "Panic"}:   Panic,
	{"log", "Panicf"}:  Panic,
	{"log", "Panicln"}: Panic,
}

// CallOf returns the package-qualified name of a call expression.
func CallOf(call *ast.CallExpr) (Call, bool) {
	switch fn := call.Fun.(type) {
	case *ast.Ident:
		return Call{Name: fn.Name}, true
	case *ast.SelectorExpr:
		if ident, ok := fn.X.(*ast.Ident); ok {
			return Call{Pkg: ident.Name, Name: fn.Sel.Name}, true
		}
	}
	return Call{}, false
}

// Of classifies a single statement. Blocks are classified by their last
// statement.
func Of(stmt ast.Stmt) Kind {
	switch stmt := stmt.(type) {
	case *ast.ReturnStmt:
		return Return
	case *ast.BlockStmt:
		return OfBlock(stmt)
	case *ast.BranchStmt:
		switch stmt.Tok {
		case token.BREAK:
			return Break
		case token.CONTINUE:
			return Continue
		case token.GOTO:
			return Goto
		case token.FALLTHROUGH:
			return Fallthrough
		}
	case *ast.ExprStmt:
		call, ok := stmt.X.(*ast.CallExpr)
		if !ok {
			break
		}
		fn, ok := CallOf(call)
		if !ok {
			break
		}
		if kind, ok := deviatingFuncs[fn]; ok {
			return kind
		}
	case *ast.LabeledStmt:
		return Of(stmt.Stmt)
	}
	return Regular
}

// OfBlock classifies a block by its last statement.
func OfBlock(block *ast.BlockStmt) Kind {
	if block == nil || len(block.List) == 0 {
		return Regular
	}
	return Of(block.List[len(block.List)-1])
}
