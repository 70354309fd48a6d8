/*
 * errors.go, part of godft.
 *
 * Copyright 2024 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package qm

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds of QM errors. They are wrapped by Error and ConvergenceError, so
// use errors.Is to check for them.
var (
	ErrNotConverged      = errors.New("SCF not converged")
	ErrUnsupportedMethod = errors.New("method not supported by this program")
	ErrMissingCharges    = errors.New("missing molecule or coordinates")
	ErrCantInput         = errors.New("can't write input")
	ErrNotRunning        = errors.New("program failed to run")
	ErrNoEnergy          = errors.New("no energy in output")
	ErrNoGeometry        = errors.New("no geometry in output")
	ErrNoGradient        = errors.New("no gradient in output")
	ErrNoWavefunction    = errors.New("no wavefunction available")
	ErrProbableProblem   = errors.New("probable problem in calculation")
)

// Program names.
const (
	Orca   = "ORCA"
	Native = "native"
)

// Error is the general error for QM calculations.
type Error struct {
	Kind     error  //one of the Err* values
	Program  string //the QM program
	FileName string //the input or output file with problems, if any
	Message  string //additional information
	Deco     []string
}

func (err *Error) Error() string {
	msg := fmt.Sprintf("qm: %s: %s", err.Program, err.Kind.Error())
	if err.FileName != "" {
		msg += " (" + err.FileName + ")"
	}
	if err.Message != "" {
		msg += ": " + err.Message
	}
	if len(err.Deco) > 0 {
		msg += " [" + strings.Join(err.Deco, " ") + "]"
	}
	return msg
}

// Unwrap returns the kind of the error.
func (err *Error) Unwrap() error { return err.Kind }

// Decorate adds the name of a caller to the error, and returns the
// names added so far.
func (err *Error) Decorate(deco string) []string {
	if deco != "" {
		err.Deco = append(err.Deco, deco)
	}
	return err.Deco
}

func newError(kind error, program, file, msg string, deco ...string) *Error {
	return &Error{Kind: kind, Program: program, FileName: file, Message: msg, Deco: deco}
}

// decorate adds caller to err if it is an *Error, and wraps it otherwise.
func decorate(err error, caller string) error {
	var e *Error
	if errors.As(err, &e) {
		e.Decorate(caller)
		return err
	}
	return fmt.Errorf("%s: %w", caller, err)
}

// ConvergenceError is returned when the SCF of a calculation doesn't
// converge. It wraps ErrNotConverged.
type ConvergenceError struct {
	Program    string
	Iterations int //the maximum number of iterations that was allowed, 0 if unknown
	Energy     float64
	Cause      error //the error from the program, if any
}

func (err *ConvergenceError) Error() string {
	msg := fmt.Sprintf("qm: %s: SCF not converged", err.Program)
	if err.Iterations > 0 {
		msg += fmt.Sprintf(" in %d iterations", err.Iterations)
	}
	if err.Cause != nil {
		msg += ": " + err.Cause.Error()
	}
	return msg
}

// Unwrap allows errors.Is(err, ErrNotConverged).
func (err *ConvergenceError) Unwrap() []error {
	if err.Cause != nil {
		return []error{ErrNotConverged, err.Cause}
	}
	return []error{ErrNotConverged}
}
