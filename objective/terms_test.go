// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import (
	"bufio"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/sumopt/interval"
)

// quadTerm is 0.5‖x−a‖² over a single variable of dimension len(a).
type quadTerm struct {
	a []float64
}

func (t *quadTerm) NumVariables() int         { return 1 }
func (t *quadTerm) VariableDimension(int) int { return len(t.a) }

func (t *quadTerm) Value(args [][]float64) float64 {
	sum := 0.0
	for i, x := range args[0] {
		d := x - t.a[i]
		sum += 0.5 * d * d
	}
	return sum
}

func (t *quadTerm) ValueGradient(args, grad [][]float64) float64 {
	sum := 0.0
	for i, x := range args[0] {
		d := x - t.a[i]
		grad[0][i] = d
		sum += 0.5 * d * d
	}
	return sum
}

func (t *quadTerm) ValueGradientHessian(args, grad [][]float64, hess [][]*mat.Dense) float64 {
	h := hess[0][0]
	h.Zero()
	for i := range t.a {
		h.Set(i, i, 1)
	}
	return t.ValueGradient(args, grad)
}

func (t *quadTerm) ValueInterval(args [][]interval.Interval) interval.Interval {
	sum := interval.Point(0)
	for i, x := range args[0] {
		sum = sum.Add(x.AddScalar(-t.a[i]).Square().MulScalar(0.5))
	}
	return sum
}

func (t *quadTerm) WriteTerm(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%d ", len(t.a)); err != nil {
		return err
	}
	for _, v := range t.a {
		if _, err := fmt.Fprintf(w, "%.17g ", v); err != nil {
			return err
		}
	}
	return nil
}

func readQuadTerm(r *bufio.Reader) (Term, error) {
	var dim int
	if _, err := fmt.Fscan(r, &dim); err != nil {
		return nil, err
	}
	t := &quadTerm{a: make([]float64, dim)}
	for i := range t.a {
		if _, err := fmt.Fscan(r, &t.a[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// rosenbrockTerm is (1−x)² + 100(y−x²)² over two scalar variables.
type rosenbrockTerm struct{}

func (rosenbrockTerm) NumVariables() int         { return 2 }
func (rosenbrockTerm) VariableDimension(int) int { return 1 }

func (rosenbrockTerm) Value(args [][]float64) float64 {
	x, y := args[0][0], args[1][0]
	return (1-x)*(1-x) + 100*(y-x*x)*(y-x*x)
}

func (t rosenbrockTerm) ValueGradient(args, grad [][]float64) float64 {
	x, y := args[0][0], args[1][0]
	grad[0][0] = -2*(1-x) - 400*x*(y-x*x)
	grad[1][0] = 200 * (y - x*x)
	return t.Value(args)
}

func (t rosenbrockTerm) ValueGradientHessian(args, grad [][]float64, hess [][]*mat.Dense) float64 {
	x, y := args[0][0], args[1][0]
	hess[0][0].Set(0, 0, 2-400*y+1200*x*x)
	hess[0][1].Set(0, 0, -400*x)
	hess[1][0].Set(0, 0, -400*x)
	hess[1][1].Set(0, 0, 200)
	return t.ValueGradient(args, grad)
}

func (rosenbrockTerm) ValueInterval(args [][]interval.Interval) interval.Interval {
	x, y := args[0][0], args[1][0]
	one := interval.Point(1)
	return one.Sub(x).Square().Add(y.Sub(x.Square()).Square().MulScalar(100))
}

func (rosenbrockTerm) WriteTerm(io.Writer) error { return nil }

func readRosenbrockTerm(*bufio.Reader) (Term, error) { return rosenbrockTerm{}, nil }

// dotTerm is uᵀv over two variables of dimension dim.
type dotTerm struct {
	dim int
}

func (t *dotTerm) NumVariables() int         { return 2 }
func (t *dotTerm) VariableDimension(int) int { return t.dim }

func (t *dotTerm) Value(args [][]float64) float64 {
	sum := 0.0
	for i := 0; i < t.dim; i++ {
		sum += args[0][i] * args[1][i]
	}
	return sum
}

func (t *dotTerm) ValueGradient(args, grad [][]float64) float64 {
	copy(grad[0], args[1])
	copy(grad[1], args[0])
	return t.Value(args)
}

func (t *dotTerm) ValueGradientHessian(args, grad [][]float64, hess [][]*mat.Dense) float64 {
	hess[0][0].Zero()
	hess[1][1].Zero()
	hess[0][1].Zero()
	hess[1][0].Zero()
	for i := 0; i < t.dim; i++ {
		hess[0][1].Set(i, i, 1)
		hess[1][0].Set(i, i, 1)
	}
	return t.ValueGradient(args, grad)
}

func (t *dotTerm) ValueInterval(args [][]interval.Interval) interval.Interval {
	sum := interval.Point(0)
	for i := 0; i < t.dim; i++ {
		sum = sum.Add(args[0][i].Mul(args[1][i]))
	}
	return sum
}

// panicTerm fails on every evaluation.
type panicTerm struct{}

func (panicTerm) NumVariables() int         { return 1 }
func (panicTerm) VariableDimension(int) int { return 1 }

func (panicTerm) Value([][]float64) float64 { panic("boom") }

func (panicTerm) ValueGradient([][]float64, [][]float64) float64 { panic("boom") }

func (panicTerm) ValueGradientHessian([][]float64, [][]float64, [][]*mat.Dense) float64 {
	panic("boom")
}

func (panicTerm) ValueInterval([][]interval.Interval) interval.Interval { panic("boom") }

// halfChange reparametrizes a scalar as x = t/2.
type halfChange struct{}

func (halfChange) XDimension() int { return 1 }
func (halfChange) TDimension() int { return 1 }

func (halfChange) TToX(x, t []float64) { x[0] = t[0] / 2 }
func (halfChange) XToT(t, x []float64) { t[0] = 2 * x[0] }

func (halfChange) UpdateGradient(tGradOut, t, xGradIn []float64) {
	tGradOut[0] += xGradIn[0] / 2
}

// padChange maps a scalar x onto two solver scalars, x = t₀ + t₁.
type padChange struct{}

func (padChange) XDimension() int { return 1 }
func (padChange) TDimension() int { return 2 }

func (padChange) TToX(x, t []float64) { x[0] = t[0] + t[1] }

func (padChange) XToT(t, x []float64) { t[0], t[1] = x[0], 0 }

func (padChange) UpdateGradient(tGradOut, t, xGradIn []float64) {
	tGradOut[0] += xGradIn[0]
	tGradOut[1] += xGradIn[0]
}
