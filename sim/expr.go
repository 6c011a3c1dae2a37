package sim

import "fmt"

// BoolOp is a binary boolean operator of a policy expression.
type BoolOp string

const (
	OpAnd BoolOp = "and"
	OpOr  BoolOp = "or"
)

// Grouping selects which pair of operands is parenthesized.
type Grouping string

const (
	// GroupLeft evaluates (A op1 B) op2 C.
	GroupLeft Grouping = "left"
	// GroupRight evaluates A op1 (B op2 C).
	GroupRight Grouping = "right"
)

// ExprSpec is the configured shape of a two-operator expression over three
// criteria. The empty Grouping defaults to GroupLeft.
type ExprSpec struct {
	A     Criterion `yaml:"a"`
	B     Criterion `yaml:"b"`
	C     Criterion `yaml:"c"`
	Op1   BoolOp    `yaml:"op1"`
	Op2   BoolOp    `yaml:"op2"`
	Group Grouping  `yaml:"group"`
}

// ExprKind tags an Expr node.
type ExprKind uint8

const (
	ExprLeaf ExprKind = iota
	ExprAnd
	ExprOr
)

// Expr is an explicit expression tree node. Leaves hold a Criterion whose
// configured checks are ANDed; inner nodes combine their children with the
// same not-applicable-skipping semantics as flat rules.
type Expr struct {
	Kind  ExprKind
	Name  string // leaf label, "A", "B" or "C"
	Leaf  *Criterion
	Left  *Expr
	Right *Expr
}

func leafExpr(name string, c *Criterion) *Expr {
	return &Expr{Kind: ExprLeaf, Name: name, Leaf: c}
}

func nodeExpr(op BoolOp, left, right *Expr) *Expr {
	kind := ExprAnd
	if op == OpOr {
		kind = ExprOr
	}
	return &Expr{Kind: kind, Left: left, Right: right}
}

// Tree builds the depth-2 tree described by e.
func (e *ExprSpec) Tree() *Expr {
	a, b, c := leafExpr("A", &e.A), leafExpr("B", &e.B), leafExpr("C", &e.C)
	if e.Group == GroupRight {
		return nodeExpr(e.Op1, a, nodeExpr(e.Op2, b, c))
	}
	return nodeExpr(e.Op2, nodeExpr(e.Op1, a, b), c)
}

// Eval evaluates the tree for the course targeting illness target.
func (x *Expr) Eval(s *PatientState, target Illness) Verdict {
	switch x.Kind {
	case ExprAnd:
		return Combine(false, x.Left.Eval(s, target), x.Right.Eval(s, target))
	case ExprOr:
		return Combine(true, x.Left.Eval(s, target), x.Right.Eval(s, target))
	default:
		return x.Leaf.Evaluate(s, target, false)
	}
}

// String renders the tree with explicit parentheses, e.g. "(A and B) or C".
func (x *Expr) String() string {
	switch x.Kind {
	case ExprAnd:
		return fmt.Sprintf("(%s and %s)", x.Left, x.Right)
	case ExprOr:
		return fmt.Sprintf("(%s or %s)", x.Left, x.Right)
	default:
		return x.Name
	}
}
