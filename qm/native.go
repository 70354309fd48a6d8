/*
 * native.go, part of godft.
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
	"io"
	"log"
	"path/filepath"
	"strings"

	chem "github.com/rmera/godft"
	"github.com/rmera/godft/molden"
	"github.com/rmera/godft/opt"
	"github.com/rmera/godft/scf"
	v3 "github.com/rmera/godft/v3"
)

// NativeHandle runs closed-shell Hartree-Fock calculations in-process, with
// the scf package. Only the "hf" (or "rhf") method is supported. The
// wavefunction is written to <name>.molden, and optimized geometries to <name>.xyz.
// Run always waits for the calculation to finish.
type NativeHandle struct {
	inputname string
	workdir   string
	log       io.Writer
	atoms     chem.AtomMultiCharger
	coords    *v3.Matrix
	Q         Calc
	res       *scf.Result
	grad      []float64
	optres    *opt.Result
}

// NewNativeHandle returns a NativeHandle with the default settings.
func NewNativeHandle() *NativeHandle {
	return &NativeHandle{inputname: "godft"}
}

func (N *NativeHandle) SetName(name string) {
	N.inputname = name
}

func (N *NativeHandle) SetWorkDir(dir string) {
	N.workdir = dir
}

func (N *NativeHandle) SetLog(w io.Writer) {
	N.log = w
}

// SetCommand does nothing, as no external program is used.
func (N *NativeHandle) SetCommand(name string) {}

// Program returns the name of the QM engine.
func (N *NativeHandle) Program() string { return Native }

func (N *NativeHandle) path(ext string) string {
	return filepath.Join(N.workdir, N.inputname+ext)
}

func (N *NativeHandle) logger() *log.Logger {
	if N.log == nil {
		return nil
	}
	return log.New(N.log, "", 0)
}

// scfAtoms returns the atoms with the coordinates in coords (A), converted to bohr.
func (N *NativeHandle) scfAtoms(coords *v3.Matrix) []scf.Atom {
	ret := make([]scf.Atom, N.atoms.Len())
	for i := range ret {
		at := N.atoms.Atom(i)
		p := coords.Vec(i)
		ret[i] = scf.Atom{Symbol: at.Symbol, Z: at.Z, Pos: [3]float64{p[0] * chem.A2Bohr, p[1] * chem.A2Bohr, p[2] * chem.A2Bohr}}
	}
	return ret
}

// BuildInput checks and stores the data for the calculation. No input
// file is written.
func (N *NativeHandle) BuildInput(coords *v3.Matrix, atoms chem.AtomMultiCharger, Q *Calc) error {
	errid := "qm/NativeHandle.BuildInput"
	if atoms == nil || coords == nil {
		return newError(ErrMissingCharges, Native, "", "", errid)
	}
	if coords.NVecs() != atoms.Len() {
		return newError(ErrMissingCharges, Native, "", fmt.Sprintf("%d coordinates for %d atoms", coords.NVecs(), atoms.Len()), errid)
	}
	if m := strings.ToLower(Q.Method); m != "hf" && m != "rhf" {
		return newError(ErrUnsupportedMethod, Native, "", fmt.Sprintf("method %q, only hf is available", Q.Method), errid)
	}
	if atoms.Multi() != 1 {
		return newError(ErrUnsupportedMethod, Native, "", "only closed-shell calculations are supported", errid)
	}
	N.atoms = atoms
	N.coords = coords.Clone()
	if _, err := scf.Basis(Q.Basis, N.scfAtoms(N.coords)); err != nil {
		return fmt.Errorf("%s: %w", errid, err)
	}
	N.Q = *Q
	N.res, N.grad, N.optres = nil, nil, nil
	return nil
}

// energy is an opt.EnergyFunc for the native engine. The SCF iterations are not logged.
func (N *NativeHandle) energy(coords *v3.Matrix) (float64, error) {
	r, err := scf.RHF(N.scfAtoms(coords), N.Q.Basis, N.atoms.Charge(), &scf.Options{MaxIter: N.Q.MaxIter})
	if err != nil {
		return 0, err
	}
	return r.Energy, nil
}

// EnergyGradient returns the RHF energy (Hartree) and the finite-difference
// gradient (Hartree/bohr) at coords (A). It implements opt.Gradienter.
func (N *NativeHandle) EnergyGradient(coords *v3.Matrix) (float64, []float64, error) {
	e, err := N.energy(coords)
	if err != nil {
		return 0, nil, err
	}
	g, err := opt.CentralGradient(N.energy, coords, opt.DefaultFDStep, false)
	if err != nil {
		return 0, nil, err
	}
	return e, g, nil
}

// Run runs the calculation set with BuildInput. wait is ignored, as
// the calculation always runs in the calling goroutine.
func (N *NativeHandle) Run(wait bool) error {
	errid := "qm/NativeHandle.Run"
	if N.coords == nil {
		return newError(ErrNotRunning, Native, "", "no calculation set", errid)
	}
	L := N.logger()
	coords := N.coords
	if N.Q.Optimize {
		o := opt.DefaultOptions()
		if N.Q.OptSteps > 0 {
			o.MaxSteps = N.Q.OptSteps
		}
		o.Log = L
		res, err := opt.Optimize(N, N.atoms, coords, o)
		if err != nil {
			return N.scfError(err, errid)
		}
		N.optres = res
		coords = res.Coords
		if err := chem.XYZFileWrite(N.path(".xyz"), coords, N.atoms, fmt.Sprintf("E= %.10f", res.Energy)); err != nil {
			return newError(ErrNoGeometry, Native, N.path(".xyz"), err.Error(), errid)
		}
	}
	res, err := scf.RHF(N.scfAtoms(coords), N.Q.Basis, N.atoms.Charge(), &scf.Options{MaxIter: N.Q.MaxIter, Log: L})
	if err != nil {
		if res != nil {
			return &ConvergenceError{Program: Native, Iterations: res.Iterations, Energy: res.Energy, Cause: err}
		}
		return N.scfError(err, errid)
	}
	N.res = res
	if N.Q.Gradient {
		N.grad, err = opt.CentralGradient(N.energy, coords, opt.DefaultFDStep, false)
		if err != nil {
			return N.scfError(err, errid)
		}
	}
	W, err := res.Wavefunction()
	if err != nil {
		return newError(ErrNoWavefunction, Native, "", err.Error(), errid)
	}
	if err := W.WriteFile(N.path(".molden"), N.inputname); err != nil {
		return newError(ErrNoWavefunction, Native, N.path(".molden"), err.Error(), errid)
	}
	return nil
}

// scfError turns an error from the SCF into a ConvergenceError if needed.
func (N *NativeHandle) scfError(err error, errid string) error {
	if errors.Is(err, scf.ErrNotConverged) {
		return &ConvergenceError{Program: Native, Iterations: N.Q.MaxIter, Cause: err}
	}
	return fmt.Errorf("%s: %w", errid, err)
}

// Energy returns the energy of the last calculation, in Hartree.
func (N *NativeHandle) Energy() (float64, error) {
	if N.res == nil {
		return 0, newError(ErrNoEnergy, Native, "", "no calculation has been run", "qm/NativeHandle.Energy")
	}
	return N.res.Energy, nil
}

// SCFIterations returns the number of iterations of the last SCF.
func (N *NativeHandle) SCFIterations() int {
	if N.res == nil {
		return 0
	}
	return N.res.Iterations
}

// OptimizedGeometry returns the last geometry of the optimization, and
// an error wrapping ErrProbableProblem if it didn't converge.
func (N *NativeHandle) OptimizedGeometry(atoms chem.Atomer) (*v3.Matrix, error) {
	errid := "qm/NativeHandle.OptimizedGeometry"
	if N.optres == nil {
		return nil, newError(ErrNoGeometry, Native, "", "no optimization has been run", errid)
	}
	if atoms != nil && atoms.Len() != N.optres.Coords.NVecs() {
		return nil, newError(ErrNoGeometry, Native, "", fmt.Sprintf("%d atoms, %d expected", atoms.Len(), N.optres.Coords.NVecs()), errid)
	}
	if !N.optres.Converged {
		return N.optres.Coords.Clone(), newError(ErrProbableProblem, Native, "", fmt.Sprintf("optimization not converged after %d steps", N.optres.Steps), errid)
	}
	return N.optres.Coords.Clone(), nil
}

// OptResult returns the result of the last optimization, or nil.
func (N *NativeHandle) OptResult() *opt.Result {
	return N.optres
}

// Gradient returns the gradient of the last calculation, in Hartree/bohr.
func (N *NativeHandle) Gradient() ([]float64, error) {
	if N.grad == nil {
		return nil, newError(ErrNoGradient, Native, "", "no gradient calculation has been run", "qm/NativeHandle.Gradient")
	}
	return append([]float64(nil), N.grad...), nil
}

// Wavefunction reads the wavefunction of the last calculation from its Molden file.
func (N *NativeHandle) Wavefunction() (*molden.Wavefunction, error) {
	errid := "qm/NativeHandle.Wavefunction"
	if N.res == nil {
		return nil, newError(ErrNoWavefunction, Native, "", "no calculation has been run", errid)
	}
	W, err := molden.ReadFile(N.path(".molden"))
	if err != nil {
		return nil, newError(ErrNoWavefunction, Native, N.path(".molden"), err.Error(), errid)
	}
	return W, nil
}
