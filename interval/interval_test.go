// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package interval

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArithmetic(t *testing.T) {
	a := New(-1, 2)
	b := New(3, 5)

	assert.Equal(t, Interval{2, 7}, a.Add(b))
	assert.Equal(t, Interval{-6, -1}, a.Sub(b))
	assert.Equal(t, Interval{-2, 1}, a.Neg())
	assert.Equal(t, Interval{-5, 10}, a.Mul(b))
	assert.Equal(t, Interval{0, 4}, a.Square())
	assert.Equal(t, Interval{9, 25}, b.Square())
	assert.Equal(t, Interval{0, 3}, a.AddScalar(1))
	assert.Equal(t, Interval{-4, 2}, a.MulScalar(-2))
}

func TestDivContainingZero(t *testing.T) {
	q := New(1, 2).Div(New(-1, 1))
	assert.True(t, q.Contains(1e300))
	assert.True(t, q.Contains(-1e300))
}

func TestContainmentProperty(t *testing.T) {
	// Point evaluations of an expression must stay inside the interval
	// propagation of the same expression.
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		a := New(rng.Float64()*4-2, rng.Float64()*4-2)
		b := New(rng.Float64()*4-2, rng.Float64()*4-2)

		x := a.Lo + rng.Float64()*a.Length()
		y := b.Lo + rng.Float64()*b.Length()

		expr := a.Square().Mul(b).Add(a.Sub(b)).MulScalar(0.5)
		point := 0.5 * (x*x*y + (x - y))
		assert.True(t, expr.Contains(point), "expr=%v point=%v", expr, point)
	}
}

func TestMidLength(t *testing.T) {
	a := New(2, 6)
	assert.Equal(t, 4.0, a.Mid())
	assert.Equal(t, 4.0, a.Length())
	assert.Equal(t, Interval{3, 3}, Point(3))
	assert.Equal(t, Interval{1, 2}, New(2, 1))
}
