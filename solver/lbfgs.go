// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/sumopt/objective"
)

// correction is one (Δx, Δg) pair of the bounded L-BFGS history.
type correction struct {
	s, y []float64
	rho  float64 // 1 / yᵀs
}

// SolveLBFGS minimizes f with limited-memory BFGS: directions come from
// the standard two-loop recursion over a bounded history of correction
// pairs, sharing the line search and stopping rules with the Newton
// solver. The history is discarded and the iteration restarted from
// steepest descent whenever the relative function improvement falls below
// the restart tolerance or the recursion fails to produce descent.
func (s *Solver) SolveLBFGS(f *objective.Function) *Results {
	cfg := *s
	r := &Results{ExitCondition: NotRun}
	total := time.Now()
	defer func() { r.TotalTime = time.Since(total) }()

	n := f.NumScalars()
	if n == 0 {
		return cfg.constantSolve(f, r)
	}

	start := time.Now()
	x := make([]float64, n)
	f.CopyUserToGlobal(x)
	g := make([]float64, n)
	gPrev := make([]float64, n)
	p := make([]float64, n)
	scratch := make([]float64, n)

	m := cfg.LBFGSHistorySize
	history := make([]correction, 0, m)
	alphaBuf := make([]float64, m)
	r.StartupTime += time.Since(start)

	var fval float64
	evaluate := func() error {
		t := time.Now()
		var err error
		fval, err = f.Gradient(x, g)
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
			info := &CallbackInfo{ObjectiveValue: fval, X: x, G: g}
			if !cfg.Callback(info) {
				r.ExitCondition = UserAbort
				break
			}
		}

		t = time.Now()
		twoLoop(history, g, p, alphaBuf)
		if floats.Dot(g, p) >= 0 {
			// Not a descent direction; drop the history and fall back
			// to steepest descent.
			history = history[:0]
			for i, v := range g {
				p[i] = -v
			}
		}
		r.LBFGSUpdateTime += time.Since(t)

		startAlpha := 1.0
		if len(history) == 0 && gnorm > 1 {
			startAlpha = 1 / gnorm
		}

		t = time.Now()
		alpha, lsErr := performLineSearch(&cfg, f, x, fval, g, p, scratch, startAlpha)
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
		copy(gPrev, g)

		if err := evaluate(); err != nil {
			return fail(err)
		}
		gnorm = maxNorm(g)

		t = time.Now()
		if alpha > 0 {
			sv := make([]float64, n)
			yv := make([]float64, n)
			for i := range sv {
				sv[i] = alpha * p[i]
				yv[i] = g[i] - gPrev[i]
			}
			if sy := floats.Dot(sv, yv); sy > 0 {
				if len(history) == m {
					copy(history, history[1:])
					history = history[:m-1]
				}
				history = append(history, correction{s: sv, y: yv, rho: 1 / sy})
			}
		}
		relative := math.Abs(fval-fprev) / (math.Abs(fval) + cfg.FunctionImprovementTolerance)
		if relative < cfg.LBFGSRestartTolerance && len(history) > 0 {
			history = history[:0]
		}
		r.LBFGSUpdateTime += time.Since(t)

		cfg.logf(r, "%3d %+.3e %.3e %.3e %.3e %.3e",
			iteration, fval, math.Abs(fval-fprev), gnorm, dxnorm, alpha)
	}

	start = time.Now()
	f.CopyGlobalToUser(x)
	r.StartupTime += time.Since(start)

	cfg.logf(r, "%v, f = %.9e", r.ExitCondition, fval)
	return r
}

// twoLoop writes −Hₖ∇f into p using the two-loop recursion over the
// correction history, scaling the initial matrix by sᵀy/yᵀy of the most
// recent pair.
func twoLoop(history []correction, g, p, alphaBuf []float64) {
	copy(p, g)
	for i := len(history) - 1; i >= 0; i-- {
		c := &history[i]
		alphaBuf[i] = c.rho * floats.Dot(c.s, p)
		floats.AddScaled(p, -alphaBuf[i], c.y)
	}
	if len(history) > 0 {
		c := &history[len(history)-1]
		floats.Scale(floats.Dot(c.s, c.y)/floats.Dot(c.y, c.y), p)
	}
	for i := 0; i < len(history); i++ {
		c := &history[i]
		beta := c.rho * floats.Dot(c.y, p)
		floats.AddScaled(p, alphaBuf[i]-beta, c.s)
	}
	floats.Scale(-1, p)
}
