// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import (
	"bufio"
	"fmt"
	"io"
	"reflect"
	"sort"
)

const (
	streamMagic   = "sumopt::function"
	streamVersion = 1
)

// typeFingerprint identifies the runtime representation a stream was
// written with. Streams carrying a different fingerprint fail fast on
// read instead of being silently misparsed.
func typeFingerprint() string {
	return reflect.TypeOf([]map[float64]int(nil)).String()
}

// Write persists the function to a textual stream: magic header, format
// version, type fingerprint, counts, the flattened variable dimensions in
// global order, the full current point, then per term its registered type
// name, bound variable offsets and self-serialized payload.
//
// Functions holding reparametrized or constant variables can not be
// written. Every term must implement StreamTerm.
func (f *Function) Write(w io.Writer) error {
	for i := range f.variables {
		if f.variables[i].change != nil {
			return fmt.Errorf("objective: can not write function with change of variables")
		}
		if f.variables[i].isConstant {
			return fmt.Errorf("objective: can not write function with constant variables")
		}
	}

	if _, err := fmt.Fprintf(w, "%s\n%d\n%s\n", streamMagic, streamVersion, typeFingerprint()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%d %d %d %.17g\n",
		len(f.terms), len(f.variables), f.numScalars, f.constant); err != nil {
		return err
	}

	order := make([]int, len(f.variables))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return f.variables[order[i]].globalIndex < f.variables[order[j]].globalIndex
	})
	for _, i := range order {
		if _, err := fmt.Fprintf(w, "%d ", f.variables[i].userDimension); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	x := make([]float64, f.numScalars)
	f.CopyUserToGlobal(x)
	for _, v := range x {
		if _, err := fmt.Fprintf(w, "%.17g ", v); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	for i := range f.terms {
		t := &f.terms[i]
		st, ok := t.term.(StreamTerm)
		if !ok {
			return fmt.Errorf("objective: term %s does not support streams", TermTypeName(t.term))
		}
		if _, err := fmt.Fprintf(w, "%s\n%d\n", TermTypeName(t.term), len(t.variables)); err != nil {
			return err
		}
		for _, vi := range t.variables {
			if _, err := fmt.Fprintf(w, "%d ", f.variables[vi].globalIndex); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		if err := st.WriteTerm(w); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// ReadFunction reconstructs a function from a stream written by Write.
// It allocates the user space backing all variables and returns it along
// with the function; terms are created through the factory by their
// registered type names.
func ReadFunction(r io.Reader, factory *TermFactory) (*Function, []float64, error) {
	br := bufio.NewReader(r)

	scan := func(what string, args ...any) error {
		if _, err := fmt.Fscan(br, args...); err != nil {
			return fmt.Errorf("%w: reading %s: %v", ErrBadStream, what, err)
		}
		return nil
	}

	var magic string
	if err := scan("magic", &magic); err != nil {
		return nil, nil, err
	}
	if magic != streamMagic {
		return nil, nil, fmt.Errorf("%w: not a function stream", ErrBadStream)
	}
	var version int
	if err := scan("version", &version); err != nil {
		return nil, nil, err
	}
	if version != streamVersion {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", ErrBadStream, version)
	}
	var fingerprint string
	if err := scan("fingerprint", &fingerprint); err != nil {
		return nil, nil, err
	}
	if fingerprint != typeFingerprint() {
		return nil, nil, fmt.Errorf("%w: type fingerprint mismatch, stream written on an incompatible platform", ErrBadStream)
	}

	var numTerms, numVariables, numScalars int
	var constant float64
	if err := scan("counts", &numTerms, &numVariables, &numScalars, &constant); err != nil {
		return nil, nil, err
	}
	if numTerms < 0 || numVariables < 0 || numScalars < 0 {
		return nil, nil, fmt.Errorf("%w: negative counts", ErrBadStream)
	}

	f := NewFunction()
	f.AddConstant(constant)
	userSpace := make([]float64, numScalars)

	cur := 0
	for i := 0; i < numVariables; i++ {
		var dim int
		if err := scan("variable dimension", &dim); err != nil {
			return nil, nil, err
		}
		if dim <= 0 || cur+dim > numScalars {
			return nil, nil, fmt.Errorf("%w: not enough scalars for variables", ErrBadStream)
		}
		if err := f.AddVariable(userSpace[cur : cur+dim]); err != nil {
			return nil, nil, err
		}
		cur += dim
	}
	if cur != numScalars {
		return nil, nil, fmt.Errorf("%w: variable dimensions do not sum to scalar count", ErrBadStream)
	}

	for i := 0; i < numScalars; i++ {
		if err := scan("point", &userSpace[i]); err != nil {
			return nil, nil, err
		}
	}

	for i := 0; i < numTerms; i++ {
		var name string
		if err := scan("term name", &name); err != nil {
			return nil, nil, err
		}
		var arity int
		if err := scan("term arity", &arity); err != nil {
			return nil, nil, err
		}
		offsets := make([]int, arity)
		for k := range offsets {
			if err := scan("term variable offset", &offsets[k]); err != nil {
				return nil, nil, err
			}
		}
		term, err := factory.Create(name, br)
		if err != nil {
			return nil, nil, err
		}
		if term.NumVariables() != arity {
			return nil, nil, fmt.Errorf("%w: term %s arity mismatch", ErrBadStream, name)
		}
		args := make([][]float64, arity)
		for k := range args {
			dim := term.VariableDimension(k)
			if offsets[k] < 0 || offsets[k]+dim > numScalars {
				return nil, nil, fmt.Errorf("%w: term variable offset out of range", ErrBadStream)
			}
			args[k] = userSpace[offsets[k] : offsets[k]+dim]
		}
		if err := f.AddTerm(term, args...); err != nil {
			return nil, nil, err
		}
	}

	return f, userSpace, nil
}
