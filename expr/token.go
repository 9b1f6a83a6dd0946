// Package expr implements the formula language used by apply_formula.
//
// The grammar is deliberately small: numeric literals, column references,
// arithmetic, comparisons and a fixed set of functions. There is no
// assignment and no control flow.
//
//	formula    = additive [ compare additive ]
//	additive   = term { ("+" | "-") term }
//	term       = unary { ("*" | "/") unary }
//	unary      = "-" unary | primary
//	primary    = number | column | func "(" formula ")" | "(" formula ")"
//	compare    = "<" | "<=" | ">" | ">=" | "==" | "!="
//
// Columns are bare identifiers (temp_k) or double-quoted names
// ("air temperature"). Comparisons yield 1 or 0 and do not chain.
//
// Example usage:
//
//	prog, err := expr.Compile("sqrt(u*u + v*v)", []string{"u", "v"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	speed, err := prog.Eval([]float64{3, 4}) // 5
package expr

// TokenType represents the type of a token
type TokenType int

const (
	// Literals
	TokenNumber TokenType = iota
	TokenIdent
	TokenQuotedIdent

	// Arithmetic
	TokenPlus  // +
	TokenMinus // -
	TokenStar  // *
	TokenSlash // /

	// Comparison
	TokenEqual        // ==
	TokenNotEqual     // !=
	TokenLess         // <
	TokenGreater      // >
	TokenLessEqual    // <=
	TokenGreaterEqual // >=

	// Delimiters
	TokenComma      // ,
	TokenLeftParen  // (
	TokenRightParen // )

	// Special
	TokenEOF
	TokenError
)

var tokenNames = map[TokenType]string{
	TokenNumber:       "number",
	TokenIdent:        "identifier",
	TokenQuotedIdent:  "quoted identifier",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenEqual:        "==",
	TokenNotEqual:     "!=",
	TokenLess:         "<",
	TokenGreater:      ">",
	TokenLessEqual:    "<=",
	TokenGreaterEqual: ">=",
	TokenComma:        ",",
	TokenLeftParen:    "(",
	TokenRightParen:   ")",
	TokenEOF:          "end of formula",
	TokenError:        "invalid token",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "unknown"
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	Pos   int // byte offset in the formula
}

func (t TokenType) isComparison() bool {
	switch t {
	case TokenEqual, TokenNotEqual, TokenLess, TokenGreater, TokenLessEqual, TokenGreaterEqual:
		return true
	}
	return false
}
