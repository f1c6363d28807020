// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objective

import "errors"

// Structural errors are raised synchronously at mutation time and leave the
// registry unchanged. Capability errors are raised at evaluation time and
// write no partial output.
var (
	// ErrDimensionMismatch reports a variable re-added with a different
	// dimension, or a term bound to a variable whose registered dimension
	// does not match the term's declaration.
	ErrDimensionMismatch = errors.New("objective: variable dimension mismatch")
	// ErrVariableNotFound reports an operation on unregistered storage.
	ErrVariableNotFound = errors.New("objective: variable not found")
	// ErrArityMismatch reports a term bound to the wrong number of variables.
	ErrArityMismatch = errors.New("objective: term bound to wrong number of variables")
	// ErrChangeOfVariables reports a change of variables whose declared
	// dimensions conflict with the registered variable.
	ErrChangeOfVariables = errors.New("objective: change of variables dimensions conflict")

	// ErrHessianDisabled reports a Hessian evaluation on a Function with
	// Hessian support disabled.
	ErrHessianDisabled = errors.New("objective: hessian computation is not enabled")
	// ErrChangeOfVariablesHessian reports a Hessian evaluation involving a
	// reparametrized variable, which is not supported.
	ErrChangeOfVariablesHessian = errors.New("objective: change of variables not supported with hessian")
	// ErrChangeOfVariablesInterval reports an interval evaluation involving
	// a reparametrized variable, which is not supported.
	ErrChangeOfVariablesInterval = errors.New("objective: change of variables not supported with intervals")

	// ErrUnknownTerm reports a stream term type with no registered factory
	// constructor.
	ErrUnknownTerm = errors.New("objective: unknown term type")
	// ErrBadStream reports a malformed or incompatible function stream.
	ErrBadStream = errors.New("objective: bad function stream")
)
