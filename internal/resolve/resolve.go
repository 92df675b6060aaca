// Package resolve evaluates symbolic sizes against data and materializes
// runtime declarations.
//
// It is a reference resolver for tools and tests: integer literals,
// variables bound in the data, unary minus and the four arithmetic
// operators with integer division. A full type checker would replace it.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/stanfront/pkg/ast"
	"github.com/leapstack-labs/stanfront/pkg/expr"
	"github.com/leapstack-labs/stanfront/pkg/sized"
)

// Data maps variable names to decoded values: int, float64, or nested
// []any for containers.
type Data map[string]any

// SizeError reports a size expression that could not be evaluated.
type SizeError struct {
	Decl   string
	Expr   expr.Expr
	Reason string
}

func (e *SizeError) Error() string {
	if e.Decl == "" {
		return fmt.Sprintf("cannot evaluate size %q: %s", expr.OrNil(e.Expr).String(), e.Reason)
	}
	return fmt.Sprintf("%s: cannot evaluate size %q: %s", e.Decl, expr.OrNil(e.Expr).String(), e.Reason)
}

// LoadData reads a YAML or JSON data file.
func LoadData(path string) (Data, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: data path is supplied by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	d, err := ParseData(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse data file %s: %w", path, err)
	}
	return d, nil
}

// ParseData decodes YAML or JSON data.
func ParseData(content []byte) (Data, error) {
	d := Data{}
	if err := yaml.Unmarshal(content, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// Int returns the integer bound to name.
func (d Data) Int(name string) (int, error) {
	v, ok := d[name]
	if !ok {
		return 0, fmt.Errorf("variable %q not found in data", name)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("variable %q is not an integer", name)
}

// Dims returns the dimensions of the value bound to name: nil for a
// scalar, the lengths of nested lists otherwise (first element wins for
// each level).
func (d Data) Dims(name string) ([]int, error) {
	v, ok := d[name]
	if !ok {
		return nil, fmt.Errorf("variable %q not found in data", name)
	}
	var dims []int
	for {
		list, ok := v.([]any)
		if !ok {
			return dims, nil
		}
		dims = append(dims, len(list))
		if len(list) == 0 {
			return dims, nil
		}
		v = list[0]
	}
}

// Eval evaluates e to an integer.
func Eval(e expr.Expr, d Data) (int, error) {
	switch x := expr.OrNil(e).(type) {
	case expr.Nil:
		return 0, &SizeError{Expr: x, Reason: "size is absent"}
	case expr.IntLit:
		return x.Value, nil
	case expr.RealLit:
		return 0, &SizeError{Expr: x, Reason: "size must be an integer"}
	case expr.Variable:
		n, err := d.Int(x.Name)
		if err != nil {
			return 0, &SizeError{Expr: x, Reason: err.Error()}
		}
		return n, nil
	case expr.Unary:
		v, err := Eval(x.X, d)
		if err != nil {
			return 0, err
		}
		if x.Op != expr.OpNeg {
			return 0, &SizeError{Expr: x, Reason: fmt.Sprintf("unsupported unary operator %s", x.Op)}
		}
		return -v, nil
	case expr.Binary:
		l, err := Eval(x.Left, d)
		if err != nil {
			return 0, err
		}
		r, err := Eval(x.Right, d)
		if err != nil {
			return 0, err
		}
		switch x.Op {
		case expr.OpAdd:
			return l + r, nil
		case expr.OpSub:
			return l - r, nil
		case expr.OpMul:
			return l * r, nil
		case expr.OpDiv:
			if r == 0 {
				return 0, &SizeError{Expr: x, Reason: "division by zero"}
			}
			return l / r, nil
		}
		return 0, &SizeError{Expr: x, Reason: fmt.Sprintf("unsupported operator %s", x.Op)}
	default:
		return 0, &SizeError{Expr: x, Reason: fmt.Sprintf("unsupported expression %T", x)}
	}
}

// Materialize evaluates every size of decl and returns the runtime
// declaration. Negative sizes are rejected.
func Materialize(decl *ast.Decl, d Data) (*sized.Decl, error) {
	if decl.IsPlaceholder() {
		return nil, fmt.Errorf("cannot materialize unbound declaration %q", decl.Name)
	}
	exprs := decl.Sizes()
	sizes := make([]int, len(exprs))
	for i, e := range exprs {
		n, err := Eval(e, d)
		if err != nil {
			var se *SizeError
			if errors.As(err, &se) {
				se.Decl = decl.Name
			}
			return nil, err
		}
		if n < 0 {
			return nil, &SizeError{Decl: decl.Name, Expr: e, Reason: fmt.Sprintf("size %d is negative", n)}
		}
		sizes[i] = n
	}
	return sized.New(decl.Name, decl.TypeName(), decl.ArrayDims(), decl.HasLowerBound(), decl.HasUpperBound(), sizes), nil
}

// MaterializeAll materializes decls in order, stopping at the first error.
func MaterializeAll(decls []*ast.Decl, d Data) ([]*sized.Decl, error) {
	var out []*sized.Decl
	var err error
	ast.Walk(decls, func(decl *ast.Decl) bool {
		var sd *sized.Decl
		sd, err = Materialize(decl, d)
		if err != nil {
			return false
		}
		out = append(out, sd)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CheckShape reports whether the data bound to sd's name has sd's sizes.
func CheckShape(sd *sized.Decl, d Data) error {
	dims, err := d.Dims(sd.Name())
	if err != nil {
		return err
	}
	if !slices.Equal(dims, sd.Sizes()) {
		return fmt.Errorf("variable %q has dimensions %v, declared %v", sd.Name(), dims, sd.Sizes())
	}
	return nil
}
