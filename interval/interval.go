// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package interval provides a closed interval value type with outward
// arithmetic for bounding function values over boxes of inputs.
package interval

import "math"

// Interval is the closed interval [Lo, Hi].
// The zero value is the degenerate interval [0, 0].
type Interval struct {
	Lo, Hi float64
}

// Point returns the degenerate interval [v, v].
func Point(v float64) Interval {
	return Interval{v, v}
}

// New returns the interval [lo, hi], swapping the endpoints if needed.
func New(lo, hi float64) Interval {
	if hi < lo {
		lo, hi = hi, lo
	}
	return Interval{lo, hi}
}

// Length returns Hi - Lo.
func (a Interval) Length() float64 { return a.Hi - a.Lo }

// Mid returns the midpoint of the interval.
func (a Interval) Mid() float64 { return (a.Lo + a.Hi) / 2 }

// Contains reports whether v lies in [Lo, Hi].
func (a Interval) Contains(v float64) bool { return a.Lo <= v && v <= a.Hi }

func (a Interval) Add(b Interval) Interval {
	return Interval{a.Lo + b.Lo, a.Hi + b.Hi}
}

func (a Interval) Sub(b Interval) Interval {
	return Interval{a.Lo - b.Hi, a.Hi - b.Lo}
}

func (a Interval) Neg() Interval {
	return Interval{-a.Hi, -a.Lo}
}

func (a Interval) Mul(b Interval) Interval {
	x1, x2 := a.Lo*b.Lo, a.Lo*b.Hi
	x3, x4 := a.Hi*b.Lo, a.Hi*b.Hi
	return Interval{
		math.Min(math.Min(x1, x2), math.Min(x3, x4)),
		math.Max(math.Max(x1, x2), math.Max(x3, x4)),
	}
}

// Div returns a/b. If b contains zero the result is the whole real line.
func (a Interval) Div(b Interval) Interval {
	if b.Contains(0) {
		return Interval{math.Inf(-1), math.Inf(1)}
	}
	return a.Mul(Interval{1 / b.Hi, 1 / b.Lo})
}

// Square returns a·a, which is tighter than Mul(a, a)
// since both factors share the same sign.
func (a Interval) Square() Interval {
	x, y := a.Lo*a.Lo, a.Hi*a.Hi
	lo, hi := math.Min(x, y), math.Max(x, y)
	if a.Contains(0) {
		lo = 0
	}
	return Interval{lo, hi}
}

func (a Interval) AddScalar(v float64) Interval {
	return Interval{a.Lo + v, a.Hi + v}
}

func (a Interval) MulScalar(v float64) Interval {
	if v < 0 {
		return Interval{v * a.Hi, v * a.Lo}
	}
	return Interval{v * a.Lo, v * a.Hi}
}
