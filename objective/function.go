// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package objective assembles a scalar objective from independently
// evaluable terms over user-owned variables and evaluates its value,
// gradient and Hessian in parallel.
package objective

import (
	"fmt"
	"runtime"
	"time"

	"gonum.org/v1/gonum/mat"
)

// addedVariable tracks one registered block of user-owned scalars.
type addedVariable struct {
	userData        []float64 // backing store owned by the caller
	userDimension   int       // dimension the Term sees
	solverDimension int       // dimension the solver sees
	globalIndex     int       // offset into the flat solver state vector
	isConstant      bool
	change          ChangeOfVariables
	tempSpace       []float64 // per-evaluation scratch, userDimension long
}

// addedTerm binds one Term to its argument variables. The Term may be
// shared; the binding belongs exclusively to its Function.
type addedTerm struct {
	term      Term
	variables []int         // indices into Function.variables
	args      [][]float64   // aliases of each variable's tempSpace
	hessian   [][]*mat.Dense // cached per-pair blocks, nil unless enabled
}

// Function is the sum of a constant and all added terms, evaluated over
// the registered variables. The zero value is not usable; use NewFunction.
//
// Registries are read-only during evaluation: callers must not mutate a
// Function concurrently with an in-flight evaluation.
type Function struct {
	constant float64

	variables []addedVariable
	index     map[*float64]int

	numScalars   int // sum of solver dimensions over non-constant variables
	numConstants int // sum of solver dimensions over constant variables

	terms []addedTerm

	workers        int
	hessianEnabled bool

	// Lazily allocated evaluation storage, invalidated by every
	// structural mutation.
	storageAllocated bool
	workerGradient   [][]float64   // per worker, numScalars+numConstants
	workerScratch    [][][]float64 // per worker, maxArity slices of maxDim

	// Number of triplets emitted by the last sparse Hessian assembly,
	// used to pre-size the next one.
	hessianElements int

	evalsValue    int
	evalsGradient int

	allocTime time.Duration
	evalTime  time.Duration
	writeTime time.Duration
	copyTime  time.Duration
}

// NewFunction returns an empty function with Hessian support enabled and
// one evaluation worker per hardware thread.
func NewFunction() *Function {
	f := &Function{}
	f.Clear()
	return f
}

// Clear resets the function to the empty function.
func (f *Function) Clear() {
	f.constant = 0
	f.variables = f.variables[:0]
	f.index = make(map[*float64]int)
	f.numScalars = 0
	f.numConstants = 0
	f.terms = f.terms[:0]
	f.workers = runtime.NumCPU()
	f.hessianEnabled = true
	f.invalidateStorage()
	f.hessianElements = 0
}

func (f *Function) invalidateStorage() {
	f.storageAllocated = false
}

// NumVariables returns the number of registered variables.
func (f *Function) NumVariables() int { return len(f.variables) }

// NumScalars returns the dimension of the solver-visible state vector:
// the sum of solver dimensions over all non-constant variables.
func (f *Function) NumScalars() int { return f.numScalars }

// NumConstants returns the total dimension of all constant variables.
func (f *Function) NumConstants() int { return f.numConstants }

// NumTerms returns the number of added terms.
func (f *Function) NumTerms() int { return len(f.terms) }

// SetWorkers sets the number of goroutines used for parallel evaluation.
func (f *Function) SetWorkers(n int) {
	if n <= 0 {
		panic("objective: worker count must be positive")
	}
	f.workers = n
	f.invalidateStorage()
}

// Workers returns the evaluation worker count.
func (f *Function) Workers() int { return f.workers }

// HessianEnabled reports whether Hessian storage is allocated and filled
// during evaluation.
func (f *Function) HessianEnabled() bool { return f.hessianEnabled }

// DisableHessian turns off second-derivative storage. Evaluations
// requesting a Hessian will fail afterwards.
func (f *Function) DisableHessian() {
	f.hessianEnabled = false
	f.invalidateStorage()
}

// AddConstant adds c to the function value.
func (f *Function) AddConstant(c float64) { f.constant += c }

// Constant returns the constant part of the function.
func (f *Function) Constant() float64 { return f.constant }

// storageKey is the stable identity of caller-owned storage: the address
// of its first scalar. Two slices alias the same variable exactly when
// they share a backing array start.
func storageKey(x []float64) *float64 { return &x[0] }

// AddVariable registers x as a variable of dimension len(x). Adding the
// same storage again is a no-op; re-adding with a different dimension
// fails. The function never takes ownership of x.
func (f *Function) AddVariable(x []float64) error {
	return f.addVariable(x, nil)
}

// AddVariableWithChange registers x together with a change of variables.
// The solver-visible dimension becomes c.TDimension(). Re-registering with
// a change of variables whose declared dimensions conflict fails.
func (f *Function) AddVariableWithChange(x []float64, c ChangeOfVariables) error {
	if c == nil {
		return f.addVariable(x, nil)
	}
	return f.addVariable(x, c)
}

func (f *Function) addVariable(x []float64, change ChangeOfVariables) error {
	if len(x) == 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrDimensionMismatch)
	}
	dimension := len(x)

	if i, ok := f.index[storageKey(x)]; ok {
		v := &f.variables[i]
		if v.userDimension != dimension {
			return fmt.Errorf("%w: variable registered with dimension %d, re-added with %d",
				ErrDimensionMismatch, v.userDimension, dimension)
		}
		if change != nil {
			if v.userDimension != change.XDimension() {
				return fmt.Errorf("%w: x dimension can not change", ErrChangeOfVariables)
			}
			if v.solverDimension != change.TDimension() {
				return fmt.Errorf("%w: t dimension can not change", ErrChangeOfVariables)
			}
			v.change = change
			f.invalidateStorage()
		}
		return nil
	}

	v := addedVariable{
		userData:      x,
		userDimension: dimension,
		change:        change,
	}
	if change != nil {
		if change.XDimension() != dimension {
			return fmt.Errorf("%w: x dimension %d does not match variable dimension %d",
				ErrChangeOfVariables, change.XDimension(), dimension)
		}
		v.solverDimension = change.TDimension()
	} else {
		v.solverDimension = dimension
	}

	v.tempSpace = make([]float64, v.userDimension)
	v.globalIndex = f.numScalars
	f.numScalars += v.solverDimension

	// The constant block starts at numScalars; growing the non-constant
	// block pushes it up.
	if f.numConstants > 0 {
		for j := range f.variables {
			if f.variables[j].isConstant {
				f.variables[j].globalIndex += v.solverDimension
			}
		}
	}

	f.index[storageKey(x)] = len(f.variables)
	f.variables = append(f.variables, v)
	f.invalidateStorage()
	return nil
}

// SetConstant flags the variable backed by x as constant or variable and
// recomputes every global index: non-constant variables first in
// registration order, then constant ones. The relayout is O(#variables).
func (f *Function) SetConstant(x []float64, constant bool) error {
	i, ok := f.index[storageKey(x)]
	if !ok {
		return ErrVariableNotFound
	}
	f.variables[i].isConstant = constant

	f.numScalars = 0
	for j := range f.variables {
		if v := &f.variables[j]; !v.isConstant {
			v.globalIndex = f.numScalars
			f.numScalars += v.solverDimension
		}
	}
	f.numConstants = 0
	for j := range f.variables {
		if v := &f.variables[j]; v.isConstant {
			v.globalIndex = f.numScalars + f.numConstants
			f.numConstants += v.solverDimension
		}
	}

	f.invalidateStorage()
	return nil
}

// IsConstant reports whether the variable backed by x is flagged constant.
func (f *Function) IsConstant(x []float64) (bool, error) {
	i, ok := f.index[storageKey(x)]
	if !ok {
		return false, ErrVariableNotFound
	}
	return f.variables[i].isConstant, nil
}

// GlobalIndex returns the offset of the variable's first scalar within the
// flat solver state vector.
func (f *Function) GlobalIndex(x []float64) (int, error) {
	i, ok := f.index[storageKey(x)]
	if !ok {
		return 0, ErrVariableNotFound
	}
	return f.variables[i].globalIndex, nil
}

// AddTerm binds term to the given argument variables. Unregistered
// arguments are registered automatically with the dimension the term
// declares for their slot. On any failure the binding is rolled back.
func (f *Function) AddTerm(term Term, args ...[]float64) error {
	if term.NumVariables() != len(args) {
		return fmt.Errorf("%w: term wants %d variables, got %d",
			ErrArityMismatch, term.NumVariables(), len(args))
	}

	f.invalidateStorage()

	bound := addedTerm{
		term:      term,
		variables: make([]int, 0, len(args)),
	}

	for slot, arg := range args {
		want := term.VariableDimension(slot)
		i, ok := f.index[storageKey(arg)]
		if !ok {
			if len(arg) != want {
				return fmt.Errorf("%w: argument %d has dimension %d, term wants %d",
					ErrDimensionMismatch, slot, len(arg), want)
			}
			if err := f.AddVariable(arg); err != nil {
				return err
			}
			i = f.index[storageKey(arg)]
		} else if f.variables[i].userDimension != want {
			return fmt.Errorf("%w: argument %d registered with dimension %d, term wants %d",
				ErrDimensionMismatch, slot, f.variables[i].userDimension, want)
		}
		bound.variables = append(bound.variables, i)
	}

	f.terms = append(f.terms, bound)
	return nil
}

// allocateLocalStorage sizes per-worker scratch from a one-time shape
// computation (maximum term arity, maximum variable dimension) and hands
// every term binding aliases of its argument scratch buffers.
func (f *Function) allocateLocalStorage() {
	start := time.Now()

	maxArity, maxDimension := 1, 1
	for i := range f.variables {
		maxDimension = max(maxDimension, f.variables[i].userDimension)
	}
	for i := range f.terms {
		maxArity = max(maxArity, len(f.terms[i].variables))
	}

	f.workerGradient = make([][]float64, f.workers)
	f.workerScratch = make([][][]float64, f.workers)
	for w := 0; w < f.workers; w++ {
		f.workerGradient[w] = make([]float64, f.numScalars+f.numConstants)
		f.workerScratch[w] = make([][]float64, maxArity)
		for slot := range f.workerScratch[w] {
			f.workerScratch[w][slot] = make([]float64, maxDimension)
		}
	}

	for i := range f.terms {
		t := &f.terms[i]
		t.args = t.args[:0]
		for _, vi := range t.variables {
			t.args = append(t.args, f.variables[vi].tempSpace)
		}
		if f.hessianEnabled {
			arity := t.term.NumVariables()
			t.hessian = make([][]*mat.Dense, arity)
			for a := 0; a < arity; a++ {
				t.hessian[a] = make([]*mat.Dense, arity)
				for b := 0; b < arity; b++ {
					t.hessian[a][b] = mat.NewDense(
						t.term.VariableDimension(a),
						t.term.VariableDimension(b), nil)
				}
			}
		} else {
			t.hessian = nil
		}
	}

	f.storageAllocated = true
	f.allocTime += time.Since(start)
}

// NumEvaluations returns how many value-only and gradient evaluations
// have been performed.
func (f *Function) NumEvaluations() (value, gradient int) {
	return f.evalsValue, f.evalsGradient
}

// PrintTiming dumps accumulated evaluation phase timings through log.
func (f *Function) PrintTiming(log func(string)) {
	if log == nil {
		return
	}
	log("----------------------------------------------------")
	log(fmt.Sprintf("Evaluations without gradient : %d", f.evalsValue))
	log(fmt.Sprintf("Evaluations with gradient    : %d", f.evalsGradient))
	log(fmt.Sprintf("Storage allocation time      : %v", f.allocTime))
	log(fmt.Sprintf("Term evaluation time         : %v", f.evalTime))
	log(fmt.Sprintf("Gradient/Hessian write time  : %v", f.writeTime))
	log(fmt.Sprintf("Data copy time               : %v", f.copyTime))
	log("----------------------------------------------------")
}
