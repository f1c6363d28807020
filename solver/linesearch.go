// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/sumopt/objective"
)

// Below this step length the search gives up and reports an unsuccessful
// iteration; the stopping rules decide what happens on the next pass.
const alphaUnderflow = 1e-30

// performLineSearch backtracks from x along p until the Armijo condition
//
//	f(x + αp) ≤ f(x) + c·α·gᵀp
//
// holds, shrinking α by ρ each attempt. It returns the accepted α, or
// zero when p is not a descent direction or α underflowed without an
// acceptable point. A NaN value at a trial point fails the condition and
// keeps backtracking.
func performLineSearch(cfg *Solver, f *objective.Function, x []float64,
	fval float64, g, p, scratch []float64, startAlpha float64) (float64, error) {

	gtp := floats.Dot(g, p)
	if gtp >= 0 {
		// Not a descent direction. Tiny steps along it would round
		// x + αp back to x and pass the test vacuously.
		return 0, nil
	}

	alpha := startAlpha
	for {
		for i := range scratch {
			scratch[i] = x[i] + alpha*p[i]
		}
		trial, err := f.ValueAt(scratch)
		if err != nil {
			return 0, err
		}
		if trial <= fval+cfg.LineSearchC*alpha*gtp {
			return alpha, nil
		}
		alpha *= cfg.LineSearchRho
		if alpha < alphaUnderflow {
			return 0, nil
		}
	}
}
