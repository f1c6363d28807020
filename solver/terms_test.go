// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/sumopt/interval"
	"github.com/curioloop/sumopt/objective"
)

// sqTerm is 0.5‖x−a‖² over a single variable.
type sqTerm struct {
	a []float64
}

func (t *sqTerm) NumVariables() int         { return 1 }
func (t *sqTerm) VariableDimension(int) int { return len(t.a) }

func (t *sqTerm) Value(args [][]float64) float64 {
	sum := 0.0
	for i, x := range args[0] {
		d := x - t.a[i]
		sum += 0.5 * d * d
	}
	return sum
}

func (t *sqTerm) ValueGradient(args, grad [][]float64) float64 {
	for i, x := range args[0] {
		grad[0][i] = x - t.a[i]
	}
	return t.Value(args)
}

func (t *sqTerm) ValueGradientHessian(args, grad [][]float64, hess [][]*mat.Dense) float64 {
	hess[0][0].Zero()
	for i := range t.a {
		hess[0][0].Set(i, i, 1)
	}
	return t.ValueGradient(args, grad)
}

func (t *sqTerm) ValueInterval(args [][]interval.Interval) interval.Interval {
	sum := interval.Point(0)
	for i, x := range args[0] {
		sum = sum.Add(x.AddScalar(-t.a[i]).Square().MulScalar(0.5))
	}
	return sum
}

// rosenTerm is the Rosenbrock function over two scalar variables.
type rosenTerm struct{}

func (rosenTerm) NumVariables() int         { return 2 }
func (rosenTerm) VariableDimension(int) int { return 1 }

func (rosenTerm) Value(args [][]float64) float64 {
	x, y := args[0][0], args[1][0]
	d := y - x*x
	return (1-x)*(1-x) + 100*d*d
}

func (t rosenTerm) ValueGradient(args, grad [][]float64) float64 {
	x, y := args[0][0], args[1][0]
	grad[0][0] = -2*(1-x) - 400*x*(y-x*x)
	grad[1][0] = 200 * (y - x*x)
	return t.Value(args)
}

func (t rosenTerm) ValueGradientHessian(args, grad [][]float64, hess [][]*mat.Dense) float64 {
	x, y := args[0][0], args[1][0]
	hess[0][0].Set(0, 0, 2-400*y+1200*x*x)
	hess[0][1].Set(0, 0, -400*x)
	hess[1][0].Set(0, 0, -400*x)
	hess[1][1].Set(0, 0, 200)
	return t.ValueGradient(args, grad)
}

func (rosenTerm) ValueInterval(args [][]interval.Interval) interval.Interval {
	x, y := args[0][0], args[1][0]
	one := interval.Point(1)
	return one.Sub(x).Square().Add(y.Sub(x.Square()).Square().MulScalar(100))
}

// badTerm evaluates to a fixed value regardless of its argument.
type badTerm struct {
	value float64
}

func (badTerm) NumVariables() int         { return 1 }
func (badTerm) VariableDimension(int) int { return 1 }

func (t badTerm) Value([][]float64) float64 { return t.value }

func (t badTerm) ValueGradient(_, grad [][]float64) float64 {
	grad[0][0] = 0
	return t.value
}

func (t badTerm) ValueGradientHessian(_, grad [][]float64, hess [][]*mat.Dense) float64 {
	grad[0][0] = 0
	hess[0][0].Set(0, 0, 0)
	return t.value
}

func (t badTerm) ValueInterval([][]interval.Interval) interval.Interval {
	return interval.Point(t.value)
}

// faultTerm panics on every evaluation.
type faultTerm struct{}

func (faultTerm) NumVariables() int         { return 1 }
func (faultTerm) VariableDimension(int) int { return 1 }

func (faultTerm) Value([][]float64) float64 { panic("fault") }

func (faultTerm) ValueGradient([][]float64, [][]float64) float64 { panic("fault") }

func (faultTerm) ValueGradientHessian([][]float64, [][]float64, [][]*mat.Dense) float64 {
	panic("fault")
}

func (faultTerm) ValueInterval([][]interval.Interval) interval.Interval { panic("fault") }

func rosenbrockProblem() (*objective.Function, []float64, []float64) {
	f := objective.NewFunction()
	x := []float64{-1.2}
	y := []float64{1}
	if err := f.AddTerm(rosenTerm{}, x, y); err != nil {
		panic(err)
	}
	return f, x, y
}

func separableProblem(k int) (*objective.Function, [][]float64) {
	f := objective.NewFunction()
	vars := make([][]float64, k)
	for i := range vars {
		vars[i] = []float64{float64(i) - 2, float64(i) + 1}
		target := []float64{float64(2 * i), -float64(i)}
		if err := f.AddTerm(&sqTerm{a: target}, vars[i]); err != nil {
			panic(err)
		}
	}
	return f, vars
}
