package scenario

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// clause is a fact (`x is String`, `x !is Int, Long`) or a predicate
// (`b == true`, `s != null`) as written in a scenario file.
type clause struct {
	Var  string    `parser:"@Ident"`
	Fact *factTail `parser:"( @@"`
	Pred *predTail `parser:"| @@ )"`
}

type factTail struct {
	Not   bool     `parser:"@'!'? 'is'"`
	Types []string `parser:"@Ident ( ',' @Ident )*"`
}

type predTail struct {
	Op    string `parser:"@( '==' | '!=' )"`
	Value string `parser:"@( 'true' | 'false' | 'null' )"`
}

var (
	clauseLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "Ident", Pattern: `[a-zA-Z_][\w.]*\??`},
		{Name: "Op", Pattern: `==|!=|!`},
		{Name: "Punct", Pattern: `,`},
	})

	clauseParser = participle.MustBuild[clause](
		participle.Lexer(clauseLexer),
		participle.Elide("Whitespace"),
	)
)

func parseClause(text string) (*clause, error) {
	c, err := clauseParser.ParseString("", text)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", text, err)
	}
	return c, nil
}

func parseFact(text string) (*clause, error) {
	c, err := parseClause(text)
	if err != nil {
		return nil, err
	}
	if c.Fact == nil {
		return nil, fmt.Errorf("%q is not a fact", text)
	}
	return c, nil
}

func parsePredicate(text string) (*clause, error) {
	c, err := parseClause(text)
	if err != nil {
		return nil, err
	}
	if c.Pred == nil {
		return nil, fmt.Errorf("%q is not a predicate", text)
	}
	return c, nil
}
