// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import "sort"

// Triplet is one (row, col, value) contribution to a sparse matrix.
// Duplicate coordinates are summed at assembly.
type Triplet struct {
	Row, Col int
	Value    float64
}

// Sparse is a square sparse matrix in compressed row storage. The
// evaluation engine emits both triangles, so the stored structure is
// symmetric.
type Sparse struct {
	n      int
	rowPtr []int
	cols   []int
	vals   []float64
}

// NewSparse assembles an n×n sparse matrix from triplets, summing
// duplicates. The triplet slice is reordered in place.
func NewSparse(n int, triplets []Triplet) *Sparse {
	sort.Slice(triplets, func(i, j int) bool {
		a, b := triplets[i], triplets[j]
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})

	s := &Sparse{
		n:      n,
		rowPtr: make([]int, n+1),
		cols:   make([]int, 0, len(triplets)),
		vals:   make([]float64, 0, len(triplets)),
	}

	counts := make([]int, n)
	for i := 0; i < len(triplets); {
		t := triplets[i]
		sum := 0.0
		for ; i < len(triplets) && triplets[i].Row == t.Row && triplets[i].Col == t.Col; i++ {
			sum += triplets[i].Value
		}
		s.cols = append(s.cols, t.Col)
		s.vals = append(s.vals, sum)
		counts[t.Row]++
	}
	for r := 0; r < n; r++ {
		s.rowPtr[r+1] = s.rowPtr[r] + counts[r]
	}
	return s
}

// Dim returns the matrix dimension.
func (s *Sparse) Dim() int { return s.n }

// NNZ returns the number of stored entries.
func (s *Sparse) NNZ() int { return len(s.vals) }

// At returns the entry at (i, j), zero when not stored.
func (s *Sparse) At(i, j int) float64 {
	lo, hi := s.rowPtr[i], s.rowPtr[i+1]
	k := lo + sort.SearchInts(s.cols[lo:hi], j)
	if k < hi && s.cols[k] == j {
		return s.vals[k]
	}
	return 0
}

// MulVec writes s·x into dst. dst and x must have length Dim and must not
// alias.
func (s *Sparse) MulVec(dst, x []float64) {
	if len(dst) != s.n || len(x) != s.n {
		panic("objective: sparse matvec dimension mismatch")
	}
	for r := 0; r < s.n; r++ {
		sum := 0.0
		for k := s.rowPtr[r]; k < s.rowPtr[r+1]; k++ {
			sum += s.vals[k] * x[s.cols[k]]
		}
		dst[r] = sum
	}
}

// Diagonal writes the matrix diagonal into dst, which must have length Dim.
func (s *Sparse) Diagonal(dst []float64) {
	if len(dst) != s.n {
		panic("objective: sparse diagonal dimension mismatch")
	}
	for r := 0; r < s.n; r++ {
		dst[r] = s.At(r, r)
	}
}
