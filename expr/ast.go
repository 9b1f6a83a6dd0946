package expr

import (
	"strconv"
	"strings"
)

// Node is a formula AST node.
type Node interface {
	String() string
	node()
}

// Literal is a numeric constant.
type Literal struct {
	Value float64
}

// ColumnRef references a column by name. Slot is the position of the column
// in the row passed to Program.Eval; it is set by Compile.
type ColumnRef struct {
	Name string
	Slot int
}

// Unary is arithmetic negation.
type Unary struct {
	Operand Node
}

// BinaryOp is one of + - * /.
type BinaryOp struct {
	Left     Node
	Operator TokenType
	Right    Node
}

// Comparison compares two operands and yields 1 or 0.
type Comparison struct {
	Left     Node
	Operator TokenType
	Right    Node
}

// Call applies a whitelisted function to one argument.
type Call struct {
	Func string
	Arg  Node
}

func (*Literal) node()    {}
func (*ColumnRef) node()  {}
func (*Unary) node()      {}
func (*BinaryOp) node()   {}
func (*Comparison) node() {}
func (*Call) node()       {}

func (n *Literal) String() string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

func (n *ColumnRef) String() string {
	if isBareIdent(n.Name) {
		return n.Name
	}
	return strconv.Quote(n.Name)
}

func (n *Unary) String() string {
	return "(-" + n.Operand.String() + ")"
}

func (n *BinaryOp) String() string {
	return "(" + n.Left.String() + " " + n.Operator.String() + " " + n.Right.String() + ")"
}

func (n *Comparison) String() string {
	return "(" + n.Left.String() + " " + n.Operator.String() + " " + n.Right.String() + ")"
}

func (n *Call) String() string {
	return n.Func + "(" + n.Arg.String() + ")"
}

func isBareIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		letter := r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
		digit := '0' <= r && r <= '9'
		if !letter && !(digit && i > 0) {
			return false
		}
	}
	return !strings.Contains(s, " ")
}

// walk calls fn for every node of the tree, parents first.
func walk(n Node, fn func(Node)) {
	fn(n)
	switch n := n.(type) {
	case *Unary:
		walk(n.Operand, fn)
	case *BinaryOp:
		walk(n.Left, fn)
		walk(n.Right, fn)
	case *Comparison:
		walk(n.Left, fn)
		walk(n.Right, fn)
	case *Call:
		walk(n.Arg, fn)
	}
}
