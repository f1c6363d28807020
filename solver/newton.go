// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/sumopt/objective"
)

// Problems past this many scalars get a sparse Hessian under SparsityAuto.
const autoSparseThreshold = 1000

// SolveNewton minimizes f with Newton's method: evaluate, factorize a
// safeguarded Newton system, backtrack along the resulting direction,
// step, and check the stopping rules, until one of them fires. The
// minimizer is written back to the variables' user storage.
func (s *Solver) SolveNewton(f *objective.Function) *Results {
	cfg := *s
	r := &Results{ExitCondition: NotRun}
	total := time.Now()
	defer func() { r.TotalTime = time.Since(total) }()

	n := f.NumScalars()
	if n == 0 {
		return cfg.constantSolve(f, r)
	}

	start := time.Now()
	sparse := cfg.Sparsity == SparsitySparse ||
		(cfg.Sparsity == SparsityAuto && n > autoSparseThreshold)
	iterative := cfg.Factorization == FactorizationIterative
	if sparse && !iterative {
		cfg.logf(r, "BKP factorization is not available for sparse Hessians, using iterative diagonal modification")
	}

	x := make([]float64, n)
	f.CopyUserToGlobal(x)
	g := make([]float64, n)
	p := make([]float64, n)
	scratch := make([]float64, n)

	var hDense *mat.SymDense
	var hSparse *objective.Sparse
	if !sparse {
		hDense = mat.NewSymDense(n, nil)
	}
	r.StartupTime += time.Since(start)

	var fval float64
	evaluate := func() error {
		t := time.Now()
		var err error
		if sparse {
			fval, hSparse, err = f.GradientSparseHessian(x, g)
		} else {
			fval, err = f.GradientHessian(x, g, hDense)
		}
		r.FunctionEvaluationTime += time.Since(t)
		return err
	}

	fail := func(err error) *Results {
		r.ExitCondition = InternalError
		cfg.logf(r, "solve aborted: %v", err)
		return r
	}

	if err := evaluate(); err != nil {
		return fail(err)
	}

	gnorm0 := maxNorm(g)
	gnorm := gnorm0
	fprev := fval
	xnorm := maxNorm(x)
	dxnorm := math.Inf(1)
	stepAccepted := false

	cfg.logf(r, "itr       f         ‖Δf‖      ‖g‖       ‖Δx‖     α")

	for iteration := 0; ; iteration++ {
		t := time.Now()
		done := checkExit(&cfg, r, fval, fprev, gnorm, gnorm0, xnorm, dxnorm, stepAccepted)
		r.StoppingCriteriaTime += time.Since(t)
		if done {
			break
		}
		if iteration >= cfg.MaximumIterations {
			r.ExitCondition = NoConvergence
			break
		}
		if cfg.Callback != nil {
			info := &CallbackInfo{
				ObjectiveValue: fval,
				X:              x,
				G:              g,
				HessianDense:   hDense,
				HessianSparse:  hSparse,
			}
			if !cfg.Callback(info) {
				r.ExitCondition = UserAbort
				break
			}
		}

		var err error
		switch {
		case sparse:
			err = iterativeSparse(hSparse, g, p, r)
		case iterative:
			err = iterativeDense(hDense, g, p, r)
		default:
			err = bkpDense(hDense, g, p, r)
		}
		if err != nil {
			return fail(err)
		}

		t = time.Now()
		alpha, lsErr := performLineSearch(&cfg, f, x, fval, g, p, scratch, 1.0)
		r.BacktrackingTime += time.Since(t)
		if lsErr != nil {
			return fail(lsErr)
		}

		if alpha > 0 {
			floats.AddScaled(x, alpha, p)
			stepAccepted = true
		}
		dxnorm = alpha * maxNorm(p)
		xnorm = maxNorm(x)
		fprev = fval

		if err := evaluate(); err != nil {
			return fail(err)
		}
		gnorm = maxNorm(g)

		cfg.logf(r, "%3d %+.3e %.3e %.3e %.3e %.3e",
			iteration, fval, math.Abs(fval-fprev), gnorm, dxnorm, alpha)
	}

	start = time.Now()
	f.CopyGlobalToUser(x)
	r.StartupTime += time.Since(start)

	cfg.logf(r, "%v, f = %.9e", r.ExitCondition, fval)
	return r
}
