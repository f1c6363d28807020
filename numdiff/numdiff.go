// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff estimates gradients of scalar functions by finite
// differences. It exists to cross-check analytically supplied derivatives.
package numdiff

import "math"

var (
	sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
	cubeEps = math.Pow(math.Nextafter(1, 2)-1, 1.0/3)
)

// Method selects the finite difference scheme.
type Method int

const (
	// Forward uses the first order accuracy forward difference.
	Forward Method = iota
	// Central uses the second order accuracy central difference.
	Central
)

// stepSize picks h = eps·sign(x)·max(1, |x|), with eps matched to the
// truncation error of the scheme.
func stepSize(x float64, method Method) float64 {
	eps := sqrtEps
	if method == Central {
		eps = cubeEps
	}
	h := eps * math.Max(1, math.Abs(x))
	if math.Signbit(x) {
		return -h
	}
	return h
}

// Gradient estimates ∇f at x and writes it into grad. The point x is
// restored after every probe; grad must have the same length as x.
func Gradient(f func(x []float64) float64, x []float64, method Method, grad []float64) {
	if len(grad) != len(x) {
		panic("numdiff: gradient dimension mismatch")
	}
	f0 := 0.0
	if method == Forward {
		f0 = f(x)
	}
	for i, xi := range x {
		h := stepSize(xi, method)
		switch method {
		case Forward:
			x[i] = xi + h
			grad[i] = (f(x) - f0) / h
		case Central:
			x[i] = xi + h
			fp := f(x)
			x[i] = xi - h
			fm := f(x)
			grad[i] = (fp - fm) / (2 * h)
		default:
			panic("numdiff: unknown method")
		}
		x[i] = xi
	}
}
