// Package sized holds runtime variable declarations: a declaration whose
// sizes have all been evaluated to integers.
package sized

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Decl is an immutable runtime declaration. Sizes are listed in indexing
// order, array dimensions first and then any vector or matrix dimensions,
// so a length-5 array of 3x4 matrices has sizes [5, 3, 4].
type Decl struct {
	name      string
	typeName  string
	arrayDims int
	hasLB     bool
	hasUB     bool
	sizes     []int
}

// New returns a runtime declaration. sizes is copied; later changes to
// the caller's slice do not affect the declaration.
func New(name, typeName string, arrayDims int, hasLB, hasUB bool, sizes []int) *Decl {
	return &Decl{
		name:      name,
		typeName:  typeName,
		arrayDims: arrayDims,
		hasLB:     hasLB,
		hasUB:     hasUB,
		sizes:     slices.Clone(sizes),
	}
}

// Name returns the variable name.
func (d *Decl) Name() string { return d.name }

// TypeName returns the declared type's name, e.g. "cholesky_factor_corr".
func (d *Decl) TypeName() string { return d.typeName }

// ArrayDims returns the number of array dimensions.
func (d *Decl) ArrayDims() int { return d.arrayDims }

// HasLowerBound reports whether the declaration has a lower bound.
func (d *Decl) HasLowerBound() bool { return d.hasLB }

// HasUpperBound reports whether the declaration has an upper bound.
func (d *Decl) HasUpperBound() bool { return d.hasUB }

// Sizes returns the dimension sizes. The returned slice is a copy.
func (d *Decl) Sizes() []int { return slices.Clone(d.sizes) }

// Size returns the i-th dimension size without copying.
func (d *Decl) Size(i int) int { return d.sizes[i] }

// Dims returns the total number of dimensions.
func (d *Decl) Dims() int { return len(d.sizes) }

// NumElements returns the number of scalar elements, the product of all
// sizes. A scalar has one element.
func (d *Decl) NumElements() int {
	n := 1
	for _, s := range d.sizes {
		n *= s
	}
	return n
}

// String renders the declaration as "name: type[s1,s2,...]".
func (d *Decl) String() string {
	if len(d.sizes) == 0 {
		return fmt.Sprintf("%s: %s", d.name, d.typeName)
	}
	parts := make([]string, len(d.sizes))
	for i, s := range d.sizes {
		parts[i] = strconv.Itoa(s)
	}
	return fmt.Sprintf("%s: %s[%s]", d.name, d.typeName, strings.Join(parts, ","))
}
