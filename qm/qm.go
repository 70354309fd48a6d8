/*
 * qm.go, part of godft.
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
/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

package qm

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	chem "github.com/rmera/godft"
	"github.com/rmera/godft/molden"
	v3 "github.com/rmera/godft/v3"
)

// Handle allows to set QM calculations using different programs.
type Handle interface {

	//Sets the name for the job, used for input
	//and output files. The extentions will depend on the program.
	SetName(name string)

	//SetWorkDir sets the directory where the input and output files
	//are written and the program is run.
	SetWorkDir(dir string)

	//SetLog sets the writer where the program diagnostics are copied.
	SetLog(w io.Writer)

	//SetCommand sets the command to run the program.
	SetCommand(name string)

	//BuildInput builds an input for the QM program based int the data in
	//atoms, coords and C. returns only error.
	BuildInput(coords *v3.Matrix, atoms chem.AtomMultiCharger, Q *Calc) error

	//Run runs the QM program for a calculation previously set.
	//it waits or not for the result depending of the value of
	//wait. If the SCF doesn't converge, it returns a *ConvergenceError.
	Run(wait bool) (err error)

	//Energy gets the last energy for a calculation, in Hartree.
	Energy() (float64, error)

	//OptimizedGeometry reads the optimized geometry from a calculation
	//output. Returns the geometry AND an error if the optimization didn't
	//converge.
	OptimizedGeometry(atoms chem.Atomer) (*v3.Matrix, error)

	//Gradient returns the gradient of the last calculation, in Hartree/bohr, for
	//calculations with Calc.Gradient set.
	Gradient() ([]float64, error)

	//Wavefunction returns the orbitals and basis set of the last calculation.
	Wavefunction() (*molden.Wavefunction, error)
}

// Calc contains the settings of a calculation, independently of the program.
type Calc struct {
	Method    string //a DFT functional, or "hf"
	Basis     string
	MaxIter   int //maximum SCF iterations, the program's default if 0
	Verbosity int //0-9
	Optimize  bool
	OptSteps  int //maximum optimization steps, the program's default if 0
	Gradient  bool
	Memory    int //Max memory to be used in MB (the effect depends on the QM program)
}

// State is the result of a converged calculation on a molecule.
type State struct {
	Molecule     *chem.Molecule
	Energy       float64 //Hartree
	Wavefunction *molden.Wavefunction
	Converged    bool
	Iterations   int //SCF iterations, 0 if unknown
	Method       string
	Program      string
}

// Occupied returns the number of doubly occupied orbitals.
func (S *State) Occupied() int {
	return S.Molecule.Occupied()
}

type programNamer interface {
	Program() string
}

type iterationCounter interface {
	SCFIterations() int
}

func programName(h Handle) string {
	if p, ok := h.(programNamer); ok {
		return p.Program()
	}
	return fmt.Sprintf("%T", h)
}

// Evaluate runs a single-point calculation on mol with h, with the given
// method (DFT functional or "hf") and maximum number of SCF iterations, and returns the
// resulting State. SCF convergence failures are returned as *ConvergenceError,
// without retrying.
func Evaluate(h Handle, mol *chem.Molecule, method string, maxIter int) (*State, error) {
	Q := &Calc{
		Method:    method,
		Basis:     mol.Basis(),
		MaxIter:   maxIter,
		Verbosity: mol.Verbosity(),
	}
	return run(h, mol, Q, "qm/Evaluate")
}

func run(h Handle, mol *chem.Molecule, Q *Calc, errid string) (*State, error) {
	if err := h.BuildInput(mol.Coords(), mol, Q); err != nil {
		return nil, decorate(err, errid)
	}
	if err := h.Run(true); err != nil {
		return nil, decorate(err, errid)
	}
	e, err := h.Energy()
	if err != nil {
		return nil, decorate(err, errid)
	}
	wfn, err := h.Wavefunction()
	if err != nil {
		return nil, decorate(err, errid)
	}
	S := &State{
		Molecule:     mol,
		Energy:       e,
		Wavefunction: wfn,
		Converged:    true,
		Method:       Q.Method,
		Program:      programName(h),
	}
	if c, ok := h.(iterationCounter); ok {
		S.Iterations = c.SCFIterations()
	}
	return S, nil
}

// EngineOptimize optimizes the geometry of mol using the optimizer of the QM program behind
// h, and returns the optimized molecule and its State. If the optimization doesn't
// converge, the last geometry is returned together with an error.
func EngineOptimize(h Handle, mol *chem.Molecule, method string, maxIter, maxSteps int) (*chem.Molecule, *State, error) {
	errid := "qm/EngineOptimize"
	Q := &Calc{
		Method:    method,
		Basis:     mol.Basis(),
		MaxIter:   maxIter,
		Verbosity: mol.Verbosity(),
		Optimize:  true,
		OptSteps:  maxSteps,
	}
	S, err := run(h, mol, Q, errid)
	if err != nil {
		return nil, nil, err
	}
	coords, err := h.OptimizedGeometry(mol)
	if coords == nil {
		return nil, nil, decorate(err, errid)
	}
	newmol := mol.WithCoords(coords)
	S.Molecule = newmol
	if err != nil {
		return newmol, S, decorate(err, errid)
	}
	return newmol, S, nil
}

// Gradienter computes energies and gradients with a QM program. It
// implements opt.Gradienter.
type Gradienter struct {
	H       Handle
	Atoms   chem.AtomMultiCharger
	Calc    Calc
	WorkDir string
	Name    string
	calls   int
}

// EnergyGradient runs a gradient calculation at coords (A) and returns the energy (Hartree)
// and gradient (Hartree/bohr). Each call writes its files with a different name.
func (G *Gradienter) EnergyGradient(coords *v3.Matrix) (float64, []float64, error) {
	errid := "qm/Gradienter.EnergyGradient"
	G.calls++
	Q := G.Calc
	Q.Gradient = true
	Q.Optimize = false
	name := G.Name
	if name == "" {
		name = "gradient"
	}
	G.H.SetName(fmt.Sprintf("%s_%03d", name, G.calls))
	if G.WorkDir != "" {
		G.H.SetWorkDir(filepath.Clean(G.WorkDir))
	}
	if err := G.H.BuildInput(coords, G.Atoms, &Q); err != nil {
		return 0, nil, decorate(err, errid)
	}
	if err := G.H.Run(true); err != nil {
		return 0, nil, decorate(err, errid)
	}
	e, err := G.H.Energy()
	if err != nil {
		return 0, nil, decorate(err, errid)
	}
	g, err := G.H.Gradient()
	if err != nil {
		return 0, nil, decorate(err, errid)
	}
	if len(g) != 3*coords.NVecs() {
		return 0, nil, newError(ErrNoGradient, programName(G.H), "", fmt.Sprintf("%d gradient components for %d atoms", len(g), coords.NVecs()), errid)
	}
	return e, g, nil
}

// IsNotConverged returns true if err comes from an SCF that didn't converge.
func IsNotConverged(err error) bool {
	return errors.Is(err, ErrNotConverged)
}
