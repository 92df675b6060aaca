// Package ast holds the declaration nodes of the modeling language.
//
// Every declaration kind reduces to the same triple: a name, a type
// whose sizes are still symbolic, and an optional initializer. Kind
// records which constrained form was written (ordered, simplex,
// cholesky_factor_corr, ...) and Shape keeps that form's own size
// arguments so code generation can reproduce the constraint.
package ast

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/stanfront/pkg/expr"
	"github.com/leapstack-labs/stanfront/pkg/types"
)

// Kind discriminates declaration kinds.
type Kind int

// Declaration kinds.
const (
	KindIllFormed Kind = iota
	KindInt
	KindReal
	KindVector
	KindRowVector
	KindMatrix
	KindSimplex
	KindUnitVector
	KindOrdered
	KindPositiveOrdered
	KindCholeskyFactorCorr
	KindCholeskyFactorCov
	KindCorrMatrix
	KindCovMatrix
)

var kindNames = map[Kind]string{
	KindIllFormed:          "ill_formed",
	KindInt:                "int",
	KindReal:               "real",
	KindVector:             "vector",
	KindRowVector:          "row_vector",
	KindMatrix:             "matrix",
	KindSimplex:            "simplex",
	KindUnitVector:         "unit_vector",
	KindOrdered:            "ordered",
	KindPositiveOrdered:    "positive_ordered",
	KindCholeskyFactorCorr: "cholesky_factor_corr",
	KindCholeskyFactorCov:  "cholesky_factor_cov",
	KindCorrMatrix:         "corr_matrix",
	KindCovMatrix:          "cov_matrix",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Constrained reports whether the kind implies a constraint transform of
// its own. Only unconstrained kinds accept explicit bounds.
func (k Kind) Constrained() bool {
	switch k {
	case KindInt, KindReal, KindVector, KindRowVector, KindMatrix:
		return false
	}
	return k != KindIllFormed
}

// Scope says where a declaration appears.
type Scope int

const (
	// ScopeBlock is a top-level program block (data, parameters, ...).
	ScopeBlock Scope = iota
	// ScopeLocal is a statement-level local variable.
	ScopeLocal
)

func (s Scope) String() string {
	if s == ScopeLocal {
		return "local"
	}
	return "block"
}

// Bounds holds optional lower and upper bounds. Absent bounds are expr.Nil.
type Bounds struct {
	Lower expr.Expr
	Upper expr.Expr
}

// Decl is a variable declaration.
type Decl struct {
	Kind   Kind
	Scope  Scope
	Name   string
	Type   types.Type
	Def    expr.Expr
	Bounds Bounds

	// Shape is the kind's own size arguments as written, e.g. [K] for
	// ordered[K] or [M, N] for cholesky_factor_cov[M, N].
	Shape []expr.Expr
}

// New returns a placeholder declaration with an ill-formed type. The
// parser fills it in once the real values are known.
func New() *Decl {
	return &Decl{
		Kind:   KindIllFormed,
		Type:   types.IllFormed{},
		Def:    expr.Nil{},
		Bounds: Bounds{Lower: expr.Nil{}, Upper: expr.Nil{}},
	}
}

// Option customizes a declaration at construction.
type Option func(*Decl)

// WithDims wraps the declared type in array dimensions, outermost first.
func WithDims(dims ...expr.Expr) Option {
	return func(d *Decl) {
		d.Type = types.ArrayOf(d.Type, dims...)
	}
}

// WithDef sets the initializer.
func WithDef(def expr.Expr) Option {
	return func(d *Decl) { d.Def = expr.OrNil(def) }
}

// WithLower sets the lower bound.
func WithLower(e expr.Expr) Option {
	return func(d *Decl) { d.Bounds.Lower = expr.OrNil(e) }
}

// WithUpper sets the upper bound.
func WithUpper(e expr.Expr) Option {
	return func(d *Decl) { d.Bounds.Upper = expr.OrNil(e) }
}

// Local marks the declaration as a local variable.
func Local() Option {
	return func(d *Decl) { d.Scope = ScopeLocal }
}

func build(kind Kind, name string, t types.Type, shape []expr.Expr, opts []Option) *Decl {
	for i := range shape {
		shape[i] = expr.OrNil(shape[i])
	}
	d := &Decl{
		Kind:   kind,
		Name:   name,
		Type:   t,
		Def:    expr.Nil{},
		Bounds: Bounds{Lower: expr.Nil{}, Upper: expr.Nil{}},
		Shape:  shape,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// NewInt declares an integer.
func NewInt(name string, opts ...Option) *Decl {
	return build(KindInt, name, types.Int{}, nil, opts)
}

// NewReal declares a real.
func NewReal(name string, opts ...Option) *Decl {
	return build(KindReal, name, types.Double{}, nil, opts)
}

// NewVector declares vector[n].
func NewVector(name string, n expr.Expr, opts ...Option) *Decl {
	return build(KindVector, name, types.Vector{N: expr.OrNil(n)}, []expr.Expr{n}, opts)
}

// NewRowVector declares row_vector[n].
func NewRowVector(name string, n expr.Expr, opts ...Option) *Decl {
	return build(KindRowVector, name, types.RowVector{N: expr.OrNil(n)}, []expr.Expr{n}, opts)
}

// NewMatrix declares matrix[m, n].
func NewMatrix(name string, m, n expr.Expr, opts ...Option) *Decl {
	return build(KindMatrix, name, types.Matrix{M: expr.OrNil(m), N: expr.OrNil(n)}, []expr.Expr{m, n}, opts)
}

// NewSimplex declares simplex[k], a vector of k non-negative reals summing to one.
func NewSimplex(name string, k expr.Expr, opts ...Option) *Decl {
	return build(KindSimplex, name, types.Vector{N: expr.OrNil(k)}, []expr.Expr{k}, opts)
}

// NewUnitVector declares unit_vector[k].
func NewUnitVector(name string, k expr.Expr, opts ...Option) *Decl {
	return build(KindUnitVector, name, types.Vector{N: expr.OrNil(k)}, []expr.Expr{k}, opts)
}

// NewOrdered declares ordered[k], a strictly increasing vector.
func NewOrdered(name string, k expr.Expr, opts ...Option) *Decl {
	return build(KindOrdered, name, types.Vector{N: expr.OrNil(k)}, []expr.Expr{k}, opts)
}

// NewPositiveOrdered declares positive_ordered[k].
func NewPositiveOrdered(name string, k expr.Expr, opts ...Option) *Decl {
	return build(KindPositiveOrdered, name, types.Vector{N: expr.OrNil(k)}, []expr.Expr{k}, opts)
}

// NewCholeskyFactorCorr declares cholesky_factor_corr[k], the Cholesky
// factor of a k by k correlation matrix.
func NewCholeskyFactorCorr(name string, k expr.Expr, opts ...Option) *Decl {
	k = expr.OrNil(k)
	return build(KindCholeskyFactorCorr, name, types.Matrix{M: k, N: k}, []expr.Expr{k}, opts)
}

// NewCholeskyFactorCov declares cholesky_factor_cov[m, n]. A nil or Nil n
// means the square form cholesky_factor_cov[m].
func NewCholeskyFactorCov(name string, m, n expr.Expr, opts ...Option) *Decl {
	m = expr.OrNil(m)
	shape := []expr.Expr{m, n}
	if expr.IsNil(n) {
		n = m
		shape = []expr.Expr{m}
	}
	return build(KindCholeskyFactorCov, name, types.Matrix{M: m, N: n}, shape, opts)
}

// NewCorrMatrix declares corr_matrix[k].
func NewCorrMatrix(name string, k expr.Expr, opts ...Option) *Decl {
	k = expr.OrNil(k)
	return build(KindCorrMatrix, name, types.Matrix{M: k, N: k}, []expr.Expr{k}, opts)
}

// NewCovMatrix declares cov_matrix[k].
func NewCovMatrix(name string, k expr.Expr, opts ...Option) *Decl {
	k = expr.OrNil(k)
	return build(KindCovMatrix, name, types.Matrix{M: k, N: k}, []expr.Expr{k}, opts)
}

// IsPlaceholder reports whether d has not been bound yet.
func (d *Decl) IsPlaceholder() bool {
	return d.Kind == KindIllFormed || types.IsIllFormed(d.Type)
}

// HasDef reports whether d has an initializer.
func (d *Decl) HasDef() bool { return !expr.IsNil(d.Def) }

// HasLowerBound reports whether d declares a lower bound.
func (d *Decl) HasLowerBound() bool { return !expr.IsNil(d.Bounds.Lower) }

// HasUpperBound reports whether d declares an upper bound.
func (d *Decl) HasUpperBound() bool { return !expr.IsNil(d.Bounds.Upper) }

// TypeName is the kind label carried into runtime declarations.
func (d *Decl) TypeName() string { return d.Kind.String() }

// ArrayDims is the number of array dimensions of the declared type.
func (d *Decl) ArrayDims() int { return types.ArrayDims(d.Type) }

// Sizes returns the symbolic sizes of the declared type in indexing order.
func (d *Decl) Sizes() []expr.Expr { return types.Size(d.Type) }

// Validate reports metadata the type checker would reject: a missing
// name, bounds on a constrained kind, or bounds on a local variable.
func (d *Decl) Validate() error {
	if d.IsPlaceholder() {
		return fmt.Errorf("declaration %q is an unbound placeholder", d.Name)
	}
	var errs []error
	if d.Name == "" {
		errs = append(errs, fmt.Errorf("%s declaration has no name", d.Kind))
	}
	if d.HasLowerBound() || d.HasUpperBound() {
		if d.Kind.Constrained() {
			errs = append(errs, fmt.Errorf("%s %q cannot declare bounds", d.Kind, d.Name))
		}
		if d.Scope == ScopeLocal {
			errs = append(errs, fmt.Errorf("local variable %q cannot declare bounds", d.Name))
		}
	}
	return errors.Join(errs...)
}

// String renders d in source form, e.g.
// "array[N] vector<lower=0>[K] theta = x".
func (d *Decl) String() string {
	var sb strings.Builder
	if dims := d.ArrayDims(); dims > 0 {
		sb.WriteString("array[")
		sb.WriteString(expr.Join(d.Sizes()[:dims]))
		sb.WriteString("] ")
	}
	sb.WriteString(d.Kind.String())
	if d.HasLowerBound() || d.HasUpperBound() {
		var parts []string
		if d.HasLowerBound() {
			parts = append(parts, "lower="+d.Bounds.Lower.String())
		}
		if d.HasUpperBound() {
			parts = append(parts, "upper="+d.Bounds.Upper.String())
		}
		sb.WriteString("<" + strings.Join(parts, ", ") + ">")
	}
	if len(d.Shape) > 0 {
		sb.WriteString("[" + expr.Join(d.Shape) + "]")
	}
	sb.WriteString(" " + d.Name)
	if d.HasDef() {
		sb.WriteString(" = " + d.Def.String())
	}
	return sb.String()
}

// Walk calls fn for every non-nil declaration in order, stopping early
// when fn returns false.
func Walk(decls []*Decl, fn func(*Decl) bool) {
	for _, d := range decls {
		if d == nil {
			continue
		}
		if !fn(d) {
			return
		}
	}
}
