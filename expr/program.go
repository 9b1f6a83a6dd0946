package expr

import (
	"math"

	"github.com/vegasq/nc2parquet/errs"
)

// Program is a parsed formula bound to a column layout. It is immutable and
// safe for concurrent use.
type Program struct {
	src     string
	root    Node
	columns []string
}

// Compile parses src and binds its column references to positions in
// columns. A reference to a column not in columns is an ExpressionError.
func Compile(src string, columns []string) (*Program, error) {
	root, err := Parse(src)
	if err != nil {
		return nil, err
	}

	slots := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := slots[c]; !dup {
			slots[c] = i
		}
	}

	var unknown *ColumnRef
	walk(root, func(n Node) {
		ref, ok := n.(*ColumnRef)
		if !ok {
			return
		}
		slot, ok := slots[ref.Name]
		if !ok && unknown == nil {
			unknown = ref
		}
		ref.Slot = slot
	})
	if unknown != nil {
		return nil, errs.Expressionf("formula %q references unknown column %q", src, unknown.Name)
	}

	return &Program{src: src, root: root, columns: columns}, nil
}

// MustCompile is Compile for fixed formulas; it panics on error.
func MustCompile(src string, columns []string) *Program {
	p, err := Compile(src, columns)
	if err != nil {
		panic(err)
	}
	return p
}

// Columns returns the column layout the program was bound to.
func (p *Program) Columns() []string { return p.columns }

// References returns the distinct column names the formula reads, in order
// of first appearance.
func (p *Program) References() []string {
	seen := make(map[string]bool)
	var refs []string
	walk(p.root, func(n Node) {
		if ref, ok := n.(*ColumnRef); ok && !seen[ref.Name] {
			seen[ref.Name] = true
			refs = append(refs, ref.Name)
		}
	})
	return refs
}

// Root returns the AST.
func (p *Program) Root() Node { return p.root }

func (p *Program) String() string { return p.src }

// Eval evaluates the program against one row laid out as Columns().
//
// Division by zero and sqrt of a negative number are ExpressionErrors;
// the result is never an infinity produced by those operations.
func (p *Program) Eval(row []float64) (float64, error) {
	if len(row) != len(p.columns) {
		return 0, errs.Expressionf("formula %q: row has %d values, expected %d", p.src, len(row), len(p.columns))
	}
	return eval(p.root, row)
}

func eval(n Node, row []float64) (float64, error) {
	switch n := n.(type) {
	case *Literal:
		return n.Value, nil

	case *ColumnRef:
		return row[n.Slot], nil

	case *Unary:
		v, err := eval(n.Operand, row)
		if err != nil {
			return 0, err
		}
		return -v, nil

	case *BinaryOp:
		l, err := eval(n.Left, row)
		if err != nil {
			return 0, err
		}
		r, err := eval(n.Right, row)
		if err != nil {
			return 0, err
		}
		switch n.Operator {
		case TokenPlus:
			return l + r, nil
		case TokenMinus:
			return l - r, nil
		case TokenStar:
			return l * r, nil
		case TokenSlash:
			if r == 0 {
				return 0, errs.Expressionf("division by zero in %s", n)
			}
			return l / r, nil
		}

	case *Comparison:
		l, err := eval(n.Left, row)
		if err != nil {
			return 0, err
		}
		r, err := eval(n.Right, row)
		if err != nil {
			return 0, err
		}
		return boolFloat(compare(n.Operator, l, r)), nil

	case *Call:
		v, err := eval(n.Arg, row)
		if err != nil {
			return 0, err
		}
		switch n.Func {
		case "sqrt":
			if v < 0 {
				return 0, errs.Expressionf("sqrt of negative number %g", v)
			}
			return math.Sqrt(v), nil
		case "abs":
			return math.Abs(v), nil
		}
	}
	return 0, errs.Expressionf("cannot evaluate %T", n)
}

func compare(op TokenType, l, r float64) bool {
	switch op {
	case TokenEqual:
		return l == r
	case TokenNotEqual:
		return l != r
	case TokenLess:
		return l < r
	case TokenGreater:
		return l > r
	case TokenLessEqual:
		return l <= r
	case TokenGreaterEqual:
		return l >= r
	}
	return false
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
