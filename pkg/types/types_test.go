package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/stanfront/pkg/expr"
)

func TestNestedArrayOfMatrix(t *testing.T) {
	e1, e2 := expr.Var("J"), expr.Var("K")
	rows, cols := expr.Var("R"), expr.Int(4)

	mat := Matrix{M: rows, N: cols}
	typ := Array{Elem: Array{Elem: mat, Len: e2}, Len: e1}

	assert.True(t, IsArray(typ))
	assert.Equal(t, 2, ArrayDims(typ))
	assert.Equal(t, 4, NumDims(typ))
	assert.Equal(t, mat, ArrayContains(typ))
	assert.Equal(t, Array{Elem: mat, Len: e2}, ArrayElementType(typ))
	assert.Equal(t, e1, ArrayLen(typ))

	want := []expr.Expr{e1, e2, rows, cols}
	if diff := cmp.Diff(want, Size(typ)); diff != "" {
		t.Errorf("Size() mismatch (-want +got):\n%s", diff)
	}
}

func TestArrayOfMatchesExplicitNesting(t *testing.T) {
	e1, e2 := expr.Var("J"), expr.Var("K")
	mat := Matrix{M: expr.Int(3), N: expr.Int(4)}

	got := ArrayOf(mat, e1, e2)
	want := Array{Elem: Array{Elem: mat, Len: e2}, Len: e1}
	assert.True(t, Equal(want, got), "got %s", got)
	assert.Equal(t, mat, ArrayOf(mat))
	assert.True(t, IsIllFormed(ArrayOf(nil)))
}

func TestNonArrayQueries(t *testing.T) {
	tests := []struct {
		name      string
		typ       Type
		intrinsic int
		sizes     []expr.Expr
	}{
		{name: "ill-formed", typ: IllFormed{}, intrinsic: 0, sizes: []expr.Expr{}},
		{name: "nil", typ: nil, intrinsic: 0, sizes: []expr.Expr{}},
		{name: "int", typ: Int{}, intrinsic: 0, sizes: []expr.Expr{}},
		{name: "real", typ: Double{}, intrinsic: 0, sizes: []expr.Expr{}},
		{name: "vector", typ: Vector{N: expr.Var("N")}, intrinsic: 1, sizes: []expr.Expr{expr.Var("N")}},
		{name: "row vector", typ: RowVector{N: expr.Int(2)}, intrinsic: 1, sizes: []expr.Expr{expr.Int(2)}},
		{name: "matrix", typ: Matrix{M: expr.Int(2), N: expr.Var("N")}, intrinsic: 2, sizes: []expr.Expr{expr.Int(2), expr.Var("N")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, IsArray(tt.typ))
			assert.Equal(t, 0, ArrayDims(tt.typ))
			assert.Equal(t, IllFormed{}, ArrayElementType(tt.typ))
			assert.Equal(t, IllFormed{}, ArrayContains(tt.typ))
			assert.Equal(t, expr.Nil{}, ArrayLen(tt.typ))
			assert.Equal(t, tt.intrinsic, NumDims(tt.typ))
			assert.Equal(t, tt.sizes, Size(tt.typ))
		})
	}
}

func TestBareType(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want Type
	}{
		{name: "scalar", typ: Double{}, want: Double{}},
		{name: "vector", typ: Vector{N: expr.Var("N")}, want: Vector{N: expr.Nil{}}},
		{name: "matrix", typ: Matrix{M: expr.Int(3), N: expr.Int(3)}, want: Matrix{M: expr.Nil{}, N: expr.Nil{}}},
		{
			name: "array of row vectors",
			typ:  ArrayOf(RowVector{N: expr.Int(2)}, expr.Var("N"), expr.Int(5)),
			want: Array{Elem: Array{Elem: RowVector{N: expr.Nil{}}, Len: expr.Nil{}}, Len: expr.Nil{}},
		},
		{name: "nil", typ: nil, want: IllFormed{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bare := Bare(tt.typ)
			assert.Equal(t, tt.want, bare)
			assert.True(t, Equal(bare, Bare(bare)), "Bare should be idempotent")
			assert.Equal(t, NumDims(tt.typ), NumDims(bare))
			for _, s := range Size(bare) {
				assert.True(t, expr.IsNil(s))
			}
		})
	}
}

func TestEqual(t *testing.T) {
	v := Vector{N: expr.Binary{Left: expr.Var("N"), Op: expr.OpAdd, Right: expr.Int(1)}}

	assert.True(t, Equal(v, Vector{N: expr.Binary{Left: expr.Var("N"), Op: expr.OpAdd, Right: expr.Int(1)}}))
	assert.False(t, Equal(v, RowVector{N: v.N}))
	assert.False(t, Equal(v, Vector{N: expr.Var("N")}))
	assert.True(t, Equal(nil, IllFormed{}))
	assert.True(t, Equal(Vector{}, Vector{N: expr.Nil{}}))
	assert.False(t, Equal(Int{}, Double{}))
	assert.True(t, SameShape(v, Vector{N: expr.Int(7)}))
	assert.False(t, SameShape(ArrayOf(v, expr.Int(2)), v))
}

func TestString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{typ: Int{}, want: "int"},
		{typ: Double{}, want: "real"},
		{typ: IllFormed{}, want: "ill-formed"},
		{typ: Vector{N: expr.Var("N")}, want: "vector[N]"},
		{typ: Matrix{M: expr.Int(3), N: expr.Var("K")}, want: "matrix[3, K]"},
		{typ: ArrayOf(Matrix{M: expr.Int(3), N: expr.Int(4)}, expr.Int(5)), want: "array[5] matrix[3, 4]"},
		{typ: Bare(ArrayOf(Vector{N: expr.Int(3)}, expr.Int(5), expr.Int(6))), want: "array[,] vector[]"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.NotNil(t, tt.typ)
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}
