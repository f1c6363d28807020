// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import (
	"bufio"
	"fmt"
	"io"
	"reflect"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/sumopt/interval"
)

// Term is one independently evaluable piece of an objective over a fixed
// tuple of variables. A Term is immutable and may be shared read-only
// between many Function instances and goroutines.
//
// The args passed to the evaluation methods contain one slice per bound
// variable, each of length VariableDimension(i). Output buffers must be
// fully written, never accumulated into: the engine reuses them between
// terms without zeroing.
type Term interface {
	// NumVariables returns the number of variables the term is evaluated over.
	NumVariables() int
	// VariableDimension returns the dimension of variable i.
	VariableDimension(i int) int
	// Value evaluates the term at args.
	Value(args [][]float64) float64
	// ValueGradient evaluates the term and writes the per-variable
	// gradients into grad, one slice per variable.
	ValueGradient(args, grad [][]float64) float64
	// ValueGradientHessian additionally writes every pairwise second
	// derivative block into hess. Block hess[i][j] has dimensions
	// VariableDimension(i) × VariableDimension(j) and hess[j][i] must be
	// its transpose.
	ValueGradientHessian(args, grad [][]float64, hess [][]*mat.Dense) float64
	// ValueInterval propagates interval bounds through the term.
	ValueInterval(args [][]interval.Interval) interval.Interval
}

// ChangeOfVariables maps between the parametrization the user sees (x) and
// the one the solver works in (t). The two may have different dimensions.
type ChangeOfVariables interface {
	XDimension() int
	TDimension() int
	// TToX writes the user point corresponding to solver point t.
	TToX(x, t []float64)
	// XToT writes the solver point corresponding to user point x.
	XToT(t, x []float64)
	// UpdateGradient transports a gradient from user space to solver space,
	// accumulating the result into tGradOut.
	UpdateGradient(tGradOut, t, xGradIn []float64)
}

// StreamTerm is implemented by terms that can persist themselves to a
// textual stream. The payload must consist of whitespace-separated tokens
// readable back by the matching TermFactory constructor.
type StreamTerm interface {
	Term
	WriteTerm(w io.Writer) error
}

// TermTypeName returns the name a term is identified by in a stream:
// the name of its dynamic Go type. Register factory constructors
// under the same name.
func TermTypeName(t Term) string {
	rt := reflect.TypeOf(t)
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return rt.String()
}

// TermFactory creates terms by registered type name when reading a
// Function from a stream. It is not needed for anything else.
type TermFactory struct {
	creators map[string]func(r *bufio.Reader) (Term, error)
}

// Register associates name with a constructor reading a term payload.
// Registering the same name twice replaces the previous constructor.
func (f *TermFactory) Register(name string, create func(r *bufio.Reader) (Term, error)) {
	if f.creators == nil {
		f.creators = make(map[string]func(r *bufio.Reader) (Term, error))
	}
	f.creators[name] = create
}

// Create reads one term payload of the named type from r.
func (f *TermFactory) Create(name string, r *bufio.Reader) (Term, error) {
	create, ok := f.creators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTerm, name)
	}
	return create(r)
}
