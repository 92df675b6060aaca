// Package expr defines the symbolic expressions carried by types and
// declarations: container sizes, bounds, and initializers.
//
// Expressions are plain values. They are produced by the parser and are
// only ever evaluated by a resolver once data is known, so this package
// has no notion of scope or evaluation.
package expr

import (
	"strconv"
	"strings"
)

// Expr is a symbolic expression.
type Expr interface {
	String() string
	exprNode()
}

// ---------- Expression Types ----------

// Nil is the absent expression. It stands for a missing initializer,
// a missing bound, or an erased size.
type Nil struct{}

func (Nil) exprNode() {}

// String implements Expr.
func (Nil) String() string { return "" }

// IntLit is an integer literal.
type IntLit struct {
	Value int
}

func (IntLit) exprNode() {}

// String implements Expr.
func (l IntLit) String() string { return strconv.Itoa(l.Value) }

// RealLit is a real-valued literal.
type RealLit struct {
	Value float64
}

func (RealLit) exprNode() {}

// String implements Expr.
func (l RealLit) String() string { return strconv.FormatFloat(l.Value, 'g', -1, 64) }

// Variable references a named value, typically a data variable.
type Variable struct {
	Name string
}

func (Variable) exprNode() {}

// String implements Expr.
func (v Variable) String() string { return v.Name }

// Op is a unary or binary arithmetic operator.
type Op int

// Operators.
const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpNeg
)

var opNames = map[Op]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpNeg: "-",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Unary is a prefix operator application.
type Unary struct {
	Op Op
	X  Expr
}

func (Unary) exprNode() {}

// String implements Expr.
func (u Unary) String() string { return u.Op.String() + u.X.String() }

// Binary is an infix operator application.
type Binary struct {
	Left  Expr
	Op    Op
	Right Expr
}

func (Binary) exprNode() {}

// String implements Expr.
func (b Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
}

// IsNil reports whether e is absent, either a nil interface or Nil.
func IsNil(e Expr) bool {
	if e == nil {
		return true
	}
	_, ok := e.(Nil)
	return ok
}

// OrNil returns e, or Nil when e is a nil interface.
func OrNil(e Expr) Expr {
	if e == nil {
		return Nil{}
	}
	return e
}

// Int is shorthand for IntLit{v}.
func Int(v int) Expr { return IntLit{Value: v} }

// Var is shorthand for Variable{name}.
func Var(name string) Expr { return Variable{Name: name} }

// Join renders a list of expressions separated by commas.
func Join(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = OrNil(e).String()
	}
	return strings.Join(parts, ", ")
}
