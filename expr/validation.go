package expr

import (
	"errors"
	"fmt"
)

// Input limits for formulas.
const (
	// MaxFormulaLength is the maximum formula length in bytes.
	MaxFormulaLength = 64 * 1024

	// MaxTokens is the maximum number of tokens in a formula.
	MaxTokens = 1000

	// MaxExpressionDepth is the maximum nesting depth.
	MaxExpressionDepth = 100

	// MaxColumnNameLength is the maximum length of a column reference.
	MaxColumnNameLength = 256
)

var (
	// ErrFormulaTooLong is returned when a formula exceeds MaxFormulaLength
	ErrFormulaTooLong = errors.New("formula too long")

	// ErrTooManyTokens is returned when a formula has too many tokens
	ErrTooManyTokens = errors.New("too many tokens in formula")

	// ErrExpressionTooDeep is returned when nesting exceeds MaxExpressionDepth
	ErrExpressionTooDeep = errors.New("expression nesting too deep")

	// ErrColumnNameTooLong is returned when a column reference is too long
	ErrColumnNameTooLong = errors.New("column name too long")
)

func validateFormula(src string) error {
	if len(src) > MaxFormulaLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFormulaTooLong, len(src), MaxFormulaLength)
	}
	return nil
}

func validateTokens(tokens []Token) error {
	if len(tokens) > MaxTokens {
		return fmt.Errorf("%w: %d tokens (max %d)", ErrTooManyTokens, len(tokens), MaxTokens)
	}
	return nil
}

func validateColumnName(name string) error {
	if len(name) > MaxColumnNameLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrColumnNameTooLong, len(name), MaxColumnNameLength)
	}
	return nil
}

// depthCounter tracks expression nesting depth
type depthCounter struct {
	depth    int
	maxDepth int
}

// Enter increments depth and returns error if limit exceeded
func (c *depthCounter) Enter() error {
	c.depth++
	if c.depth > c.maxDepth {
		return fmt.Errorf("%w: %d (max %d)", ErrExpressionTooDeep, c.depth, c.maxDepth)
	}
	return nil
}

// Exit decrements depth
func (c *depthCounter) Exit() {
	c.depth--
}
