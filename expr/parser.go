package expr

import (
	"fmt"
	"strconv"

	"github.com/vegasq/nc2parquet/errs"
)

// functions is the whitelist of callable functions.
var functions = map[string]bool{
	"sqrt": true,
	"abs":  true,
}

// Parser parses formula tokens into an AST
type Parser struct {
	tokens []Token
	pos    int
	depth  *depthCounter
}

// NewParser creates a new parser
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens: tokens,
		depth:  &depthCounter{maxDepth: MaxExpressionDepth},
	}
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF, Pos: -1}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF, Pos: -1}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) advance() {
	p.pos++
}

func (p *Parser) expect(tokType TokenType) error {
	if p.current().Type != tokType {
		return p.errorf("expected %v, got %v", tokType, p.describe(p.current()))
	}
	p.advance()
	return nil
}

func (p *Parser) errorf(format string, args ...any) error {
	return fmt.Errorf("at offset %d: "+format, append([]any{p.current().Pos}, args...)...)
}

func (p *Parser) describe(t Token) string {
	switch t.Type {
	case TokenNumber, TokenIdent, TokenError:
		return fmt.Sprintf("%v %q", t.Type, t.Value)
	default:
		return t.Type.String()
	}
}

// Parse parses a formula into an AST. Errors are ExpressionErrors.
func Parse(src string) (Node, error) {
	if err := validateFormula(src); err != nil {
		return nil, errs.Expressionf("%w", err)
	}

	tokens := Tokenize(src)
	if err := validateTokens(tokens); err != nil {
		return nil, errs.Expressionf("%w", err)
	}

	parser := NewParser(tokens)
	node, err := parser.parseFormula()
	if err != nil {
		return nil, errs.Expressionf("parse %q: %w", src, err)
	}

	switch parser.current().Type {
	case TokenEOF:
		return node, nil
	case TokenError:
		return nil, errs.Expressionf("parse %q: invalid character %q at offset %d", src, parser.current().Value, parser.current().Pos)
	default:
		if parser.current().Type.isComparison() {
			return nil, errs.Expressionf("parse %q: comparisons do not chain (offset %d)", src, parser.current().Pos)
		}
		return nil, errs.Expressionf("parse %q: unexpected trailing %s at offset %d", src, parser.describe(parser.current()), parser.current().Pos)
	}
}

// parseFormula parses an optional comparison (lowest precedence)
func (p *Parser) parseFormula() (Node, error) {
	if err := p.depth.Enter(); err != nil {
		return nil, err
	}
	defer p.depth.Exit()

	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	if op := p.current().Type; op.isComparison() {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &Comparison{Left: left, Operator: op, Right: right}, nil
	}
	return left, nil
}

// parseAdditive parses + and - (left associative)
func (p *Parser) parseAdditive() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenPlus || p.current().Type == TokenMinus {
		op := p.current().Type
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

// parseTerm parses * and / (left associative)
func (p *Parser) parseTerm() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenStar || p.current().Type == TokenSlash {
		op := p.current().Type
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Node, error) {
	if p.current().Type != TokenMinus {
		return p.parsePrimary()
	}

	if err := p.depth.Enter(); err != nil {
		return nil, err
	}
	defer p.depth.Exit()

	p.advance()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	// fold negative literals
	if lit, ok := operand.(*Literal); ok {
		return &Literal{Value: -lit.Value}, nil
	}
	return &Unary{Operand: operand}, nil
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.current()
	switch tok.Type {
	case TokenNumber:
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", tok.Value)
		}
		p.advance()
		return &Literal{Value: v}, nil

	case TokenIdent:
		if p.peek().Type == TokenLeftParen {
			return p.parseCall()
		}
		fallthrough

	case TokenQuotedIdent:
		if tok.Value == "" {
			return nil, p.errorf("empty column name")
		}
		if err := validateColumnName(tok.Value); err != nil {
			return nil, err
		}
		p.advance()
		return &ColumnRef{Name: tok.Value, Slot: -1}, nil

	case TokenLeftParen:
		p.advance()
		inner, err := p.parseFormula()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRightParen); err != nil {
			return nil, err
		}
		return inner, nil

	default:
		return nil, p.errorf("expected number, column or '(', got %s", p.describe(tok))
	}
}

// parseCall parses name(arg) for whitelisted functions
func (p *Parser) parseCall() (Node, error) {
	name := p.current().Value
	if !functions[name] {
		return nil, p.errorf("unknown function %q", name)
	}
	p.advance()
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}

	arg, err := p.parseFormula()
	if err != nil {
		return nil, err
	}
	if p.current().Type == TokenComma {
		return nil, p.errorf("%s takes exactly one argument", name)
	}
	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	return &Call{Func: name, Arg: arg}, nil
}
