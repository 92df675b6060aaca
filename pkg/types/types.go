// Package types implements the variable types of the modeling language.
//
// Type is a closed sum: IllFormed, Double, Int, Vector, RowVector, Matrix
// and Array. Array is the only recursive case and may nest to any depth.
// Container types carry their sizes as symbolic expressions; a bare type
// is the same shape with every size erased to expr.Nil.
//
// All queries in this package are total. Asking an array-only question of
// a non-array type yields IllFormed rather than an error, so callers that
// care must check IsArray first.
package types

import (
	"reflect"
	"strings"

	"github.com/leapstack-labs/stanfront/pkg/expr"
)

// Type is one of the variable type variants.
type Type interface {
	String() string
	typeNode()
}

// ---------- Scalar Types ----------

// IllFormed marks an invalid or not-yet-bound type.
type IllFormed struct{}

func (IllFormed) typeNode() {}

func (IllFormed) String() string { return "ill-formed" }

// Double is the real scalar type.
type Double struct{}

func (Double) typeNode() {}

func (Double) String() string { return "real" }

// Int is the integer scalar type.
type Int struct{}

func (Int) typeNode() {}

func (Int) String() string { return "int" }

// ---------- Container Types ----------

// Vector is a column vector of N reals.
type Vector struct {
	N expr.Expr
}

func (Vector) typeNode() {}

func (v Vector) String() string { return "vector" + sizeSuffix(v.N) }

// RowVector is a row vector of N reals.
type RowVector struct {
	N expr.Expr
}

func (RowVector) typeNode() {}

func (v RowVector) String() string { return "row_vector" + sizeSuffix(v.N) }

// Matrix is an M by N matrix of reals.
type Matrix struct {
	M expr.Expr
	N expr.Expr
}

func (Matrix) typeNode() {}

func (m Matrix) String() string { return "matrix" + sizeSuffix(m.M, m.N) }

// Array is an array of Len elements of type Elem.
type Array struct {
	Elem Type
	Len  expr.Expr
}

func (Array) typeNode() {}

func (a Array) String() string {
	var lens []expr.Expr
	var t Type = a
	for {
		arr, ok := t.(Array)
		if !ok {
			break
		}
		lens = append(lens, arr.Len)
		t = orIllFormed(arr.Elem)
	}
	return "array" + sizeSuffix(lens...) + " " + t.String()
}

func sizeSuffix(es ...expr.Expr) string {
	if len(es) == 0 {
		return ""
	}
	allNil := true
	for _, e := range es {
		if !expr.IsNil(e) {
			allNil = false
			break
		}
	}
	if allNil {
		if len(es) == 1 {
			return "[]"
		}
		return "[" + strings.Repeat(",", len(es)-1) + "]"
	}
	return "[" + expr.Join(es) + "]"
}

// ArrayOf nests elem inside one array dimension per entry in dims,
// outermost first: ArrayOf(Matrix{..}, e1, e2) is array[e1, e2] matrix.
// With no dims it returns elem unchanged.
func ArrayOf(elem Type, dims ...expr.Expr) Type {
	t := orIllFormed(elem)
	for i := len(dims) - 1; i >= 0; i-- {
		t = Array{Elem: t, Len: expr.OrNil(dims[i])}
	}
	return t
}

func orIllFormed(t Type) Type {
	if t == nil {
		return IllFormed{}
	}
	return t
}

// IsArray reports whether the top-level variant of t is Array.
func IsArray(t Type) bool {
	_, ok := t.(Array)
	return ok
}

// IsIllFormed reports whether t is IllFormed or nil.
func IsIllFormed(t Type) bool {
	_, ok := orIllFormed(t).(IllFormed)
	return ok
}

// IsScalar reports whether t is Int or Double.
func IsScalar(t Type) bool {
	switch t.(type) {
	case Int, Double:
		return true
	}
	return false
}

// ArrayDims returns the number of nested array wrappers around t.
func ArrayDims(t Type) int {
	n := 0
	for {
		arr, ok := t.(Array)
		if !ok {
			return n
		}
		n++
		t = arr.Elem
	}
}

// ArrayElementType returns the type one array level down, or IllFormed
// if t is not an array.
func ArrayElementType(t Type) Type {
	if arr, ok := t.(Array); ok {
		return orIllFormed(arr.Elem)
	}
	return IllFormed{}
}

// ArrayContains returns the innermost non-array type of an array, or
// IllFormed if t is not an array.
func ArrayContains(t Type) Type {
	if !IsArray(t) {
		return IllFormed{}
	}
	for IsArray(t) {
		t = orIllFormed(t.(Array).Elem)
	}
	return t
}

// ArrayLen returns the outermost array length, or expr.Nil if t is not
// an array.
func ArrayLen(t Type) expr.Expr {
	if arr, ok := t.(Array); ok {
		return expr.OrNil(arr.Len)
	}
	return expr.Nil{}
}

// IntrinsicDims returns 0 for scalars, 1 for vectors and row vectors and
// 2 for matrices. Arrays report the intrinsic dimensions of what they
// contain; IllFormed reports 0.
func IntrinsicDims(t Type) int {
	if IsArray(t) {
		t = ArrayContains(t)
	}
	switch t.(type) {
	case Vector, RowVector:
		return 1
	case Matrix:
		return 2
	}
	return 0
}

// NumDims returns the total number of dimensions: one per array level
// plus the intrinsic dimensions of the innermost type.
func NumDims(t Type) int {
	return ArrayDims(t) + IntrinsicDims(t)
}

// Size returns the size expressions of t in indexing order: array
// lengths outermost first, then the innermost container's sizes (rows
// before columns). Scalars contribute nothing. Erased sizes appear as
// expr.Nil so the result always has NumDims entries.
func Size(t Type) []expr.Expr {
	sizes := make([]expr.Expr, 0, NumDims(t))
	for {
		arr, ok := t.(Array)
		if !ok {
			break
		}
		sizes = append(sizes, expr.OrNil(arr.Len))
		t = orIllFormed(arr.Elem)
	}
	switch v := t.(type) {
	case Vector:
		sizes = append(sizes, expr.OrNil(v.N))
	case RowVector:
		sizes = append(sizes, expr.OrNil(v.N))
	case Matrix:
		sizes = append(sizes, expr.OrNil(v.M), expr.OrNil(v.N))
	}
	return sizes
}

// Bare returns t with every size expression erased. Bare is idempotent.
func Bare(t Type) Type {
	switch v := orIllFormed(t).(type) {
	case Vector:
		return Vector{N: expr.Nil{}}
	case RowVector:
		return RowVector{N: expr.Nil{}}
	case Matrix:
		return Matrix{M: expr.Nil{}, N: expr.Nil{}}
	case Array:
		return Array{Elem: Bare(v.Elem), Len: expr.Nil{}}
	default:
		return v
	}
}

// SameShape reports whether a and b have the same bare type.
func SameShape(a, b Type) bool {
	return Equal(Bare(a), Bare(b))
}

// Equal reports whether a and b are the same variant with equal sizes.
// A nil Type equals IllFormed and a nil size equals expr.Nil.
func Equal(a, b Type) bool {
	a, b = orIllFormed(a), orIllFormed(b)
	switch x := a.(type) {
	case IllFormed, Double, Int:
		return reflect.TypeOf(a) == reflect.TypeOf(b)
	case Vector:
		y, ok := b.(Vector)
		return ok && exprEqual(x.N, y.N)
	case RowVector:
		y, ok := b.(RowVector)
		return ok && exprEqual(x.N, y.N)
	case Matrix:
		y, ok := b.(Matrix)
		return ok && exprEqual(x.M, y.M) && exprEqual(x.N, y.N)
	case Array:
		y, ok := b.(Array)
		return ok && exprEqual(x.Len, y.Len) && Equal(x.Elem, y.Elem)
	}
	return false
}

func exprEqual(a, b expr.Expr) bool {
	return reflect.DeepEqual(expr.OrNil(a), expr.OrNil(b))
}
