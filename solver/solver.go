// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package solver minimizes objective functions with Newton-type methods:
// a Newton solver with safeguarded factorization of possibly indefinite
// Hessians, and a limited-memory BFGS solver sharing the same line search
// and stopping machinery.
package solver

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/sumopt/objective"
)

// ExitCondition classifies how a solve terminated.
type ExitCondition int

const (
	// GradientTolerance means ‖g‖/‖g0‖ dropped below the gradient tolerance.
	GradientTolerance ExitCondition = iota
	// FunctionTolerance means the relative function improvement dropped
	// below the function improvement tolerance.
	FunctionTolerance
	// ArgumentTolerance means the relative step length dropped below the
	// argument improvement tolerance.
	ArgumentTolerance
	// NoConvergence means the iteration limit was reached.
	NoConvergence
	// FunctionNaN means the function value became NaN.
	FunctionNaN
	// FunctionInfinity means the function value became infinite.
	FunctionInfinity
	// UserAbort means the callback requested a stop.
	UserAbort
	// InternalError means an unexpected fault aborted the solve.
	InternalError
	// NotRun is the state before any solve.
	NotRun
)

// Success reports whether the condition is one of the three
// tolerance-based convergence outcomes.
func (e ExitCondition) Success() bool {
	return e == GradientTolerance || e == FunctionTolerance || e == ArgumentTolerance
}

func (e ExitCondition) String() string {
	switch e {
	case GradientTolerance:
		return "GradientTolerance"
	case FunctionTolerance:
		return "FunctionTolerance"
	case ArgumentTolerance:
		return "ArgumentTolerance"
	case NoConvergence:
		return "NoConvergence"
	case FunctionNaN:
		return "FunctionNaN"
	case FunctionInfinity:
		return "FunctionInfinity"
	case UserAbort:
		return "UserAbort"
	case InternalError:
		return "InternalError"
	case NotRun:
		return "NotRun"
	}
	return "Unknown"
}

// Results holds the outcome of one solve call: the exit condition and
// per-phase wall-clock timings. A fresh Results is created per call.
type Results struct {
	ExitCondition ExitCondition

	StartupTime             time.Duration
	FunctionEvaluationTime  time.Duration
	StoppingCriteriaTime    time.Duration
	MatrixFactorizationTime time.Duration
	LBFGSUpdateTime         time.Duration
	LinearSolverTime        time.Duration
	BacktrackingTime        time.Duration
	LogTime                 time.Duration
	TotalTime               time.Duration
}

func (r *Results) String() string {
	return fmt.Sprintf(
		"Exit condition            : %v\n"+
			"Startup time              : %v\n"+
			"Function evaluation time  : %v\n"+
			"Stopping criteria time    : %v\n"+
			"Matrix factorization time : %v\n"+
			"L-BFGS update time        : %v\n"+
			"Linear solver time        : %v\n"+
			"Backtracking time         : %v\n"+
			"Log time                  : %v\n"+
			"Total time                : %v",
		r.ExitCondition, r.StartupTime, r.FunctionEvaluationTime,
		r.StoppingCriteriaTime, r.MatrixFactorizationTime, r.LBFGSUpdateTime,
		r.LinearSolverTime, r.BacktrackingTime, r.LogTime, r.TotalTime)
}

// CallbackInfo is handed to the user callback once per outer iteration.
// The slices and matrices are views of solver state and must be treated
// as read-only; Hessian fields may be nil depending on mode.
type CallbackInfo struct {
	ObjectiveValue float64
	X, G           []float64
	HessianDense   *mat.SymDense
	HessianSparse  *objective.Sparse
}

// Method selects the minimization algorithm.
type Method int

const (
	// Newton requires first and second order derivatives and generally
	// converges in few iterations.
	Newton Method = iota
	// LBFGS requires only first order derivatives and uses little memory.
	LBFGS
	// NelderMead requires no derivatives. Not provided by this package.
	NelderMead
	// PatternSearch requires no derivatives. Not provided by this package.
	PatternSearch
	// Global performs interval-arithmetic global optimization.
	// Not provided by this package.
	Global
)

func (m Method) String() string {
	switch m {
	case Newton:
		return "Newton"
	case LBFGS:
		return "LBFGS"
	case NelderMead:
		return "NelderMead"
	case PatternSearch:
		return "PatternSearch"
	case Global:
		return "Global"
	}
	return "Unknown"
}

// Sparsity controls how the Newton solver stores the Hessian.
type Sparsity int

const (
	// SparsityAuto picks dense or sparse from the problem size.
	SparsityAuto Sparsity = iota
	// SparsityDense always uses a dense Hessian.
	SparsityDense
	// SparsitySparse always uses a sparse Hessian.
	SparsitySparse
)

// Factorization selects how an indefinite Hessian is made solvable.
type Factorization int

const (
	// FactorizationBKP modifies the spectrum of the dense Hessian,
	// clamping eigenvalues up to a positive floor (Nocedal & Wright p.55).
	FactorizationBKP Factorization = iota
	// FactorizationIterative repeatedly adds growing multiples of the
	// identity until a positive definite factorization succeeds. The only
	// choice for sparse systems.
	FactorizationIterative
)

// Solver is a value object holding settings for a solve call. The same
// Solver may be reused: every call works on a private copy, so there is
// no cross-call shared mutable state.
type Solver struct {
	Method        Method
	Sparsity      Sparsity
	Factorization Factorization

	// MaximumIterations is the only hard bound on a solve.
	MaximumIterations int

	// GradientTolerance stops the solve when ‖g‖/‖g0‖ < tol in max-norm.
	GradientTolerance float64
	// FunctionImprovementTolerance stops when |Δf|/(|f|+tol) < tol,
	// once at least one step has been accepted.
	FunctionImprovementTolerance float64
	// ArgumentImprovementTolerance stops when ‖Δx‖/(‖x‖+tol) < tol.
	ArgumentImprovementTolerance float64

	// LBFGSHistorySize is the number of correction pairs kept.
	LBFGSHistorySize int
	// LBFGSRestartTolerance discards the history when the relative
	// function improvement drops below it.
	LBFGSRestartTolerance float64

	// The line search accepts α when f(x+αp) ≤ f(x) + c·α·gᵀp,
	// shrinking α by ρ otherwise.
	LineSearchC   float64
	LineSearchRho float64

	// Log receives progress messages. Nil disables logging.
	Log func(message string)
	// Callback is checked once per outer iteration; returning false
	// aborts the solve with UserAbort.
	Callback func(info *CallbackInfo) bool
}

// New returns a Solver with default settings.
func New() *Solver {
	return &Solver{
		Method:                       Newton,
		Sparsity:                     SparsityAuto,
		Factorization:                FactorizationBKP,
		MaximumIterations:            100,
		GradientTolerance:            1e-12,
		FunctionImprovementTolerance: 1e-12,
		ArgumentImprovementTolerance: 1e-12,
		LBFGSHistorySize:             10,
		LBFGSRestartTolerance:        1e-6,
		LineSearchC:                  1e-4,
		LineSearchRho:                0.5,
	}
}

// Solve minimizes f with the configured method, leaving the minimizer in
// the user storage of the function's variables. Numeric trouble is
// reported through Results.ExitCondition, never as an error; the error
// return is reserved for methods this package does not provide.
func (s *Solver) Solve(f *objective.Function) (*Results, error) {
	switch s.Method {
	case Newton:
		return s.SolveNewton(f), nil
	case LBFGS:
		return s.SolveLBFGS(f), nil
	default:
		return nil, fmt.Errorf("solver: method %v is not provided by this package", s.Method)
	}
}

func (s *Solver) logf(r *Results, format string, args ...any) {
	if s.Log == nil {
		return
	}
	start := time.Now()
	s.Log(fmt.Sprintf(format, args...))
	r.LogTime += time.Since(start)
}

// maxNorm returns ‖v‖∞.
func maxNorm(v []float64) float64 {
	norm := 0.0
	for _, x := range v {
		norm = math.Max(norm, math.Abs(x))
	}
	return norm
}

// checkExit applies the stopping rules in order, first match wins, and
// records the matched condition. The function improvement test only fires
// once at least one step has been accepted.
func checkExit(cfg *Solver, r *Results, fval, fprev, gnorm, gnorm0, xnorm, dxnorm float64, stepAccepted bool) bool {
	switch {
	case math.IsNaN(fval):
		r.ExitCondition = FunctionNaN
	case math.IsInf(fval, 0):
		r.ExitCondition = FunctionInfinity
	case gnorm0 == 0 || gnorm/gnorm0 < cfg.GradientTolerance:
		r.ExitCondition = GradientTolerance
	case stepAccepted &&
		math.Abs(fval-fprev)/(math.Abs(fval)+cfg.FunctionImprovementTolerance) < cfg.FunctionImprovementTolerance:
		r.ExitCondition = FunctionTolerance
	case dxnorm/(xnorm+cfg.ArgumentImprovementTolerance) < cfg.ArgumentImprovementTolerance:
		r.ExitCondition = ArgumentTolerance
	default:
		return false
	}
	return true
}

// constantSolve handles the degenerate function with no free scalars:
// evaluate once and report convergence.
func (s *Solver) constantSolve(f *objective.Function, r *Results) *Results {
	if v, err := f.Value(); err != nil {
		r.ExitCondition = InternalError
		s.logf(r, "solve aborted: %v", err)
	} else {
		r.ExitCondition = FunctionTolerance
		s.logf(r, "function has no free variables, f = %.6e", v)
	}
	return r
}
