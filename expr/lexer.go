package expr

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes formula strings. Positions are byte offsets.
type Lexer struct {
	input string
	pos   int // offset of the next character
	cur   int // offset of ch
	start int
	ch    rune
}

// NewLexer creates a new lexer
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next UTF-8 character
func (l *Lexer) readChar() {
	l.cur = l.pos
	if l.pos >= len(l.input) {
		l.ch = 0
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.ch = r
	l.pos += w
}

// peekChar looks at the next character without advancing
func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// readQuoted reads a double-quoted column name. ok is false when the
// closing quote is missing.
func (l *Lexer) readQuoted() (string, bool) {
	var result strings.Builder
	l.readChar() // skip opening quote

	for l.ch != '"' && l.ch != 0 {
		if l.ch == '\\' && (l.peekChar() == '"' || l.peekChar() == '\\') {
			l.readChar()
		}
		result.WriteRune(l.ch)
		l.readChar()
	}

	if l.ch != '"' {
		return result.String(), false
	}
	l.readChar() // skip closing quote
	return result.String(), true
}

// readNumber reads digits, an optional fraction and an optional exponent.
func (l *Lexer) readNumber() string {
	var result strings.Builder

	for unicode.IsDigit(l.ch) || l.ch == '.' {
		result.WriteRune(l.ch)
		l.readChar()
	}

	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if unicode.IsDigit(next) || next == '+' || next == '-' {
			result.WriteRune(l.ch)
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				result.WriteRune(l.ch)
				l.readChar()
			}
			for unicode.IsDigit(l.ch) {
				result.WriteRune(l.ch)
				l.readChar()
			}
		}
	}
	return result.String()
}

func (l *Lexer) readIdentifier() string {
	var result strings.Builder
	for unicode.IsLetter(l.ch) || unicode.IsDigit(l.ch) || l.ch == '_' {
		result.WriteRune(l.ch)
		l.readChar()
	}
	return result.String()
}

func (l *Lexer) token(t TokenType, value string) Token {
	return Token{Type: t, Value: value, Pos: l.start}
}

// single emits a one-character token and advances past it.
func (l *Lexer) single(t TokenType) Token {
	tok := l.token(t, string(l.ch))
	l.readChar()
	return tok
}

// pair emits a two-character token when the next character is '=',
// otherwise alt (or an error token when alt is TokenError).
func (l *Lexer) pair(withEq, alt TokenType) Token {
	first := l.ch
	if l.peekChar() == '=' {
		l.readChar()
		l.readChar()
		return l.token(withEq, string(first)+"=")
	}
	return l.single(alt)
}

// NextToken returns the next token
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()
	l.start = l.cur

	switch l.ch {
	case 0:
		return l.token(TokenEOF, "")
	case '+':
		return l.single(TokenPlus)
	case '-':
		return l.single(TokenMinus)
	case '*':
		return l.single(TokenStar)
	case '/':
		return l.single(TokenSlash)
	case ',':
		return l.single(TokenComma)
	case '(':
		return l.single(TokenLeftParen)
	case ')':
		return l.single(TokenRightParen)
	case '=':
		return l.pair(TokenEqual, TokenError)
	case '!':
		return l.pair(TokenNotEqual, TokenError)
	case '<':
		return l.pair(TokenLessEqual, TokenLess)
	case '>':
		return l.pair(TokenGreaterEqual, TokenGreater)
	case '"':
		name, ok := l.readQuoted()
		if !ok {
			return l.token(TokenError, `"`+name)
		}
		return l.token(TokenQuotedIdent, name)
	}

	if unicode.IsDigit(l.ch) || (l.ch == '.' && unicode.IsDigit(l.peekChar())) {
		return l.token(TokenNumber, l.readNumber())
	}
	if unicode.IsLetter(l.ch) || l.ch == '_' {
		return l.token(TokenIdent, l.readIdentifier())
	}
	return l.single(TokenError)
}

// Tokenize returns all tokens from the input, ending with EOF or the first
// error token.
func Tokenize(input string) []Token {
	lexer := NewLexer(input)
	var tokens []Token

	for {
		tok := lexer.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}

	return tokens
}
