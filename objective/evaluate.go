// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/sumopt/interval"
)

// copyGlobalToLocal scatters the global point x into each variable's local
// scratch. Non-constant variables come from x, through the inverse
// reparametrization when present; constant variables always come from
// their own user storage, never from x.
func (f *Function) copyGlobalToLocal(x []float64) {
	start := time.Now()
	for i := range f.variables {
		v := &f.variables[i]
		switch {
		case v.isConstant:
			copy(v.tempSpace, v.userData)
		case v.change == nil:
			copy(v.tempSpace, x[v.globalIndex:v.globalIndex+v.userDimension])
		default:
			v.change.TToX(v.tempSpace, x[v.globalIndex:v.globalIndex+v.solverDimension])
		}
	}
	f.copyTime += time.Since(start)
}

// copyUserToLocal copies every variable, constant or not, from user
// storage into its local scratch.
func (f *Function) copyUserToLocal() {
	start := time.Now()
	for i := range f.variables {
		v := &f.variables[i]
		copy(v.tempSpace, v.userData)
	}
	f.copyTime += time.Since(start)
}

// CopyUserToGlobal gathers the current user storage of all non-constant
// variables into the global vector x, which must have length NumScalars.
func (f *Function) CopyUserToGlobal(x []float64) {
	if len(x) != f.numScalars {
		panic("objective: global vector dimension mismatch")
	}
	start := time.Now()
	for i := range f.variables {
		v := &f.variables[i]
		if v.isConstant {
			continue
		}
		if v.change == nil {
			copy(x[v.globalIndex:v.globalIndex+v.userDimension], v.userData)
		} else {
			v.change.XToT(x[v.globalIndex:v.globalIndex+v.solverDimension], v.userData)
		}
	}
	f.copyTime += time.Since(start)
}

// CopyGlobalToUser scatters the global vector x back into the user storage
// of all non-constant variables.
func (f *Function) CopyGlobalToUser(x []float64) {
	if len(x) != f.numScalars {
		panic("objective: global vector dimension mismatch")
	}
	start := time.Now()
	for i := range f.variables {
		v := &f.variables[i]
		if v.isConstant {
			continue
		}
		if v.change == nil {
			copy(v.userData, x[v.globalIndex:v.globalIndex+v.userDimension])
		} else {
			v.change.TToX(v.userData, x[v.globalIndex:v.globalIndex+v.solverDimension])
		}
	}
	f.copyTime += time.Since(start)
}

// Value evaluates the function at the point currently held in user storage.
func (f *Function) Value() (float64, error) {
	if !f.storageAllocated {
		f.allocateLocalStorage()
	}
	f.copyUserToLocal()
	return f.valueFromLocal()
}

// ValueAt evaluates the function at the global point x.
func (f *Function) ValueAt(x []float64) (float64, error) {
	if !f.storageAllocated {
		f.allocateLocalStorage()
	}
	f.copyGlobalToLocal(x)
	return f.valueFromLocal()
}

// valueFromLocal sums all terms at the point in local scratch, splitting
// the terms across the worker pool. A panic raised by any term on any
// worker is captured, and the first one in worker order is returned after
// the join barrier.
func (f *Function) valueFromLocal() (float64, error) {
	f.evalsValue++
	start := time.Now()

	workers := f.workers
	partial := make([]float64, workers)
	faults := make([]error, workers)

	var grp errgroup.Group
	for w := 0; w < workers; w++ {
		lo := w * len(f.terms) / workers
		hi := (w + 1) * len(f.terms) / workers
		partialSum, fault := &partial[w], &faults[w]
		grp.Go(func() error {
			defer capture(fault)
			sum := 0.0
			for i := lo; i < hi; i++ {
				t := &f.terms[i]
				sum += t.term.Value(t.args)
			}
			*partialSum = sum
			return nil
		})
	}
	_ = grp.Wait()

	f.evalTime += time.Since(start)

	value := f.constant
	for w := 0; w < workers; w++ {
		if faults[w] != nil {
			return 0, faults[w]
		}
		value += partial[w]
	}
	return value, nil
}

// capture converts a term panic into an error held by its worker.
func capture(fault *error) {
	if r := recover(); r != nil {
		if err, ok := r.(error); ok {
			*fault = fmt.Errorf("objective: term evaluation failed: %w", err)
		} else {
			*fault = fmt.Errorf("objective: term evaluation failed: %v", r)
		}
	}
}

// Gradient evaluates the function at the global point x and writes its
// gradient into g, which must have length NumScalars.
func (f *Function) Gradient(x, g []float64) (float64, error) {
	return f.gradientFromGlobal(x, g, false)
}

// GradientHessian evaluates value, gradient and dense Hessian at x.
// The Hessian h is resized to NumScalars×NumScalars if empty.
// Reparametrized variables are not supported in Hessian mode.
func (f *Function) GradientHessian(x, g []float64, h *mat.SymDense) (float64, error) {
	value, err := f.gradientFromGlobal(x, g, true)
	if err != nil {
		return 0, err
	}
	f.assembleDense(h)
	return value, nil
}

// GradientSparseHessian evaluates value, gradient and sparse Hessian at x.
// The Hessian is assembled from per-term triplets summed per entry; the
// emitted triplet count is tracked to pre-size future assemblies.
func (f *Function) GradientSparseHessian(x, g []float64) (float64, *Sparse, error) {
	value, err := f.gradientFromGlobal(x, g, true)
	if err != nil {
		return 0, nil, err
	}
	return value, f.assembleSparse(), nil
}

// gradientFromGlobal runs the parallel value+gradient(+Hessian block)
// accumulation. Each worker owns a private gradient buffer of length
// NumScalars+NumConstants and scatters per-variable gradients at global
// offsets, through the gradient-transport map for reparametrized
// variables. Buffers are reduced elementwise in worker order, so results
// are reproducible for a fixed worker count.
func (f *Function) gradientFromGlobal(x, g []float64, withHessian bool) (float64, error) {
	if withHessian {
		if !f.hessianEnabled {
			return 0, ErrHessianDisabled
		}
		for i := range f.variables {
			if v := &f.variables[i]; v.change != nil && !v.isConstant {
				return 0, ErrChangeOfVariablesHessian
			}
		}
	}
	if len(g) != f.numScalars {
		panic("objective: gradient dimension mismatch")
	}

	f.evalsGradient++
	if !f.storageAllocated {
		f.allocateLocalStorage()
	}
	f.copyGlobalToLocal(x)

	start := time.Now()

	workers := f.workers
	partial := make([]float64, workers)
	faults := make([]error, workers)

	var grp errgroup.Group
	for w := 0; w < workers; w++ {
		lo := w * len(f.terms) / workers
		hi := (w + 1) * len(f.terms) / workers
		scratch := f.workerScratch[w]
		buf := f.workerGradient[w]
		partialSum, fault := &partial[w], &faults[w]
		grp.Go(func() error {
			defer capture(fault)
			clear(buf)
			grads := make([][]float64, len(scratch))
			sum := 0.0
			for i := lo; i < hi; i++ {
				t := &f.terms[i]
				for slot, vi := range t.variables {
					grads[slot] = scratch[slot][:f.variables[vi].userDimension]
				}
				if withHessian {
					sum += t.term.ValueGradientHessian(t.args, grads[:len(t.variables)], t.hessian)
				} else {
					sum += t.term.ValueGradient(t.args, grads[:len(t.variables)])
				}
				for slot, vi := range t.variables {
					v := &f.variables[vi]
					if v.isConstant {
						continue
					}
					off := v.globalIndex
					if v.change == nil {
						dst := buf[off : off+v.userDimension]
						for k, gk := range grads[slot] {
							dst[k] += gk
						}
					} else {
						v.change.UpdateGradient(
							buf[off:off+v.solverDimension],
							x[off:off+v.solverDimension],
							grads[slot])
					}
				}
			}
			*partialSum = sum
			return nil
		})
	}
	_ = grp.Wait()

	f.evalTime += time.Since(start)
	start = time.Now()

	value := f.constant
	for w := 0; w < workers; w++ {
		if faults[w] != nil {
			return 0, faults[w]
		}
		value += partial[w]
	}

	clear(g)
	for w := 0; w < workers; w++ {
		for k, v := range f.workerGradient[w][:f.numScalars] {
			g[k] += v
		}
	}

	f.writeTime += time.Since(start)
	return value, nil
}

// assembleDense adds every cached per-pair block into the dense Hessian at
// the pair's global offsets. Only non-constant pairs contribute. The upper
// triangle is written once; cross blocks are transposes by the Term
// contract.
func (f *Function) assembleDense(h *mat.SymDense) {
	start := time.Now()

	n := f.numScalars
	if h.IsEmpty() {
		h.ReuseAsSym(n)
	} else if h.SymmetricDim() != n {
		panic("objective: hessian dimension mismatch")
	}
	h.Zero()

	for ti := range f.terms {
		t := &f.terms[ti]
		for a, via := range t.variables {
			va := &f.variables[via]
			if va.isConstant {
				continue
			}
			for b, vib := range t.variables {
				vb := &f.variables[vib]
				if vb.isConstant {
					continue
				}
				block := t.hessian[a][b]
				for i := 0; i < va.userDimension; i++ {
					gi := va.globalIndex + i
					for j := 0; j < vb.userDimension; j++ {
						gj := vb.globalIndex + j
						if gi <= gj {
							h.SetSym(gi, gj, h.At(gi, gj)+block.At(i, j))
						}
					}
				}
			}
		}
	}

	f.writeTime += time.Since(start)
}

// assembleSparse walks the same pairwise structure, emitting (row, col,
// value) triplets for both triangles and summing duplicates at assembly.
func (f *Function) assembleSparse() *Sparse {
	start := time.Now()

	triplets := make([]Triplet, 0, f.hessianElements)
	for ti := range f.terms {
		t := &f.terms[ti]
		for a, via := range t.variables {
			va := &f.variables[via]
			if va.isConstant {
				continue
			}
			for b, vib := range t.variables {
				vb := &f.variables[vib]
				if vb.isConstant {
					continue
				}
				block := t.hessian[a][b]
				for i := 0; i < va.userDimension; i++ {
					for j := 0; j < vb.userDimension; j++ {
						triplets = append(triplets, Triplet{
							Row:   va.globalIndex + i,
							Col:   vb.globalIndex + j,
							Value: block.At(i, j),
						})
					}
				}
			}
		}
	}
	f.hessianElements = len(triplets)

	s := NewSparse(f.numScalars, triplets)
	f.writeTime += time.Since(start)
	return s
}

// IntervalValue propagates interval bounds through every term at the box
// over the solver-visible scalars, which must have length NumScalars.
// Constant variables enter as point intervals taken from user storage.
// Reparametrized variables are not supported here.
func (f *Function) IntervalValue(box []interval.Interval) (interval.Interval, error) {
	if len(box) != f.numScalars {
		panic("objective: interval box dimension mismatch")
	}
	for i := range f.variables {
		if f.variables[i].change != nil {
			return interval.Interval{}, ErrChangeOfVariablesInterval
		}
	}

	f.evalsValue++
	start := time.Now()

	value := interval.Point(f.constant)
	args := make([][]interval.Interval, 0, 4)
	for i := range f.terms {
		t := &f.terms[i]
		args = args[:0]
		for _, vi := range t.variables {
			v := &f.variables[vi]
			if v.isConstant {
				pts := make([]interval.Interval, v.userDimension)
				for k, u := range v.userData {
					pts[k] = interval.Point(u)
				}
				args = append(args, pts)
			} else {
				args = append(args, box[v.globalIndex:v.globalIndex+v.userDimension])
			}
		}
		value = value.Add(t.term.ValueInterval(args))
	}

	f.evalTime += time.Since(start)
	return value, nil
}
