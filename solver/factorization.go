// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/sumopt/objective"
)

var errFactorization = errors.New("solver: matrix factorization failed")

// Growth floor for the diagonal modification (Nocedal & Wright, Alg. 3.3).
const diagModBeta = 1e-3

// bkpDense solves (H+E)p = −g where E is the minimal spectral modification
// clamping every eigenvalue of H up to a small positive floor. The
// resulting p satisfies gᵀp < 0 whenever g ≠ 0, regardless of the inertia
// of H.
func bkpDense(h *mat.SymDense, g, p []float64, r *Results) error {
	n := len(g)

	start := time.Now()
	var es mat.EigenSym
	if !es.Factorize(h, true) {
		r.MatrixFactorizationTime += time.Since(start)
		return errFactorization
	}
	values := es.Values(nil)
	var q mat.Dense
	es.VectorsTo(&q)
	r.MatrixFactorizationTime += time.Since(start)

	start = time.Now()
	scale := 1.0
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v))
	}
	floor := 1e-12 * scale

	// p = −Q Λ̂⁻¹ Qᵀ g
	var y mat.VecDense
	y.MulVec(q.T(), mat.NewVecDense(n, g))
	raw := y.RawVector().Data
	for i, v := range values {
		raw[i] /= -math.Max(v, floor)
	}
	mat.NewVecDense(n, p).MulVec(&q, &y)
	r.LinearSolverTime += time.Since(start)
	return nil
}

// iterativeDense solves (H+τI)p = −g, growing τ from the most negative
// diagonal entry and doubling it until the Cholesky factorization
// succeeds.
func iterativeDense(h *mat.SymDense, g, p []float64, r *Results) error {
	n := len(g)

	minDiag := math.Inf(1)
	for i := 0; i < n; i++ {
		minDiag = math.Min(minDiag, h.At(i, i))
	}
	tau := 0.0
	if minDiag <= 0 {
		tau = -minDiag + diagModBeta
	}

	work := mat.NewSymDense(n, nil)
	neg := make([]float64, n)
	for i, v := range g {
		neg[i] = -v
	}

	var chol mat.Cholesky
	for attempt := 0; attempt < 64; attempt++ {
		start := time.Now()
		work.CopySym(h)
		for i := 0; i < n; i++ {
			work.SetSym(i, i, h.At(i, i)+tau)
		}
		ok := chol.Factorize(work)
		r.MatrixFactorizationTime += time.Since(start)

		if ok {
			start = time.Now()
			err := chol.SolveVecTo(mat.NewVecDense(n, p), mat.NewVecDense(n, neg))
			r.LinearSolverTime += time.Since(start)
			if err != nil {
				return errFactorization
			}
			return nil
		}
		tau = math.Max(2*tau, diagModBeta)
	}
	return errFactorization
}

// iterativeSparse solves (H+τI)p = −g for a sparse Hessian by conjugate
// gradient, restarting with a doubled τ whenever negative curvature shows
// the shifted system is not positive definite.
func iterativeSparse(h *objective.Sparse, g, p []float64, r *Results) error {
	n := len(g)

	start := time.Now()
	diag := make([]float64, n)
	h.Diagonal(diag)
	minDiag := math.Inf(1)
	for _, v := range diag {
		minDiag = math.Min(minDiag, v)
	}
	tau := 0.0
	if minDiag <= 0 {
		tau = -minDiag + diagModBeta
	}
	r.MatrixFactorizationTime += time.Since(start)

	for attempt := 0; attempt < 64; attempt++ {
		start = time.Now()
		ok := conjugateGradient(h, tau, g, p)
		r.LinearSolverTime += time.Since(start)
		if ok {
			return nil
		}
		tau = math.Max(2*tau, diagModBeta)
	}
	return errFactorization
}

// conjugateGradient solves (A+τI)p = −g from p = 0. It reports false as
// soon as a search direction exposes nonpositive curvature.
func conjugateGradient(a *objective.Sparse, tau float64, g, p []float64) bool {
	n := len(g)
	clear(p)

	res := make([]float64, n) // residual b − (A+τI)p, starts at b = −g
	for i, v := range g {
		res[i] = -v
	}
	rr := floats.Dot(res, res)
	if rr == 0 {
		return true
	}
	tol := 1e-10 * math.Sqrt(rr)

	dir := make([]float64, n)
	copy(dir, res)
	adir := make([]float64, n)

	for iter := 0; iter < 10*n+10; iter++ {
		a.MulVec(adir, dir)
		if tau != 0 {
			floats.AddScaled(adir, tau, dir)
		}
		curv := floats.Dot(dir, adir)
		if curv <= 0 {
			return false
		}
		alpha := rr / curv
		floats.AddScaled(p, alpha, dir)
		floats.AddScaled(res, -alpha, adir)
		rrNext := floats.Dot(res, res)
		if math.Sqrt(rrNext) <= tol {
			return true
		}
		beta := rrNext / rr
		rr = rrNext
		for i, v := range res {
			dir[i] = v + beta*dir[i]
		}
	}
	return true
}
