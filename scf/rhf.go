/*
 * rhf.go, part of godft.
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

// Package scf is a small closed-shell Hartree-Fock engine. It only knows
// s-type basis sets for H and He, which is enough to get real
// wavefunctions, energies and geometries for tests and demos without
// an external QM program.
package scf

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/rmera/godft/molden"
	"gonum.org/v1/gonum/mat"
)

// ErrNotConverged is returned when the SCF doesn't converge in the
// allowed number of iterations. The Result is returned anyway.
var ErrNotConverged = errors.New("scf: SCF not converged")

// Convergence thresholds.
const (
	EnergyTol  = 1e-8 //Hartree
	DensityTol = 1e-6 //RMS change in the density matrix
	diisSize   = 8
)

// Atom is a nucleus. Pos is in bohr.
type Atom struct {
	Symbol string
	Z      int
	Pos    [3]float64
}

// Options for an RHF calculation.
type Options struct {
	MaxIter int         //50 if not positive
	Log     *log.Logger //if not nil, the SCF iterations are printed here
}

// Result of an RHF calculation. Coefs is NBasis x NBasis, with the
// MOs as columns, ordered by energy.
type Result struct {
	Energy     float64 //Hartree
	MOEnergies []float64
	Coefs      *mat.Dense
	Occupied   int
	Iterations int
	Converged  bool
	Atoms      []Atom
	Shells     []molden.Shell
}

// RHF runs a restricted Hartree-Fock calculation on the given atoms, with
// the basis set basis and total charge charge. If the SCF doesn't converge,
// both the last Result and an error wrapping ErrNotConverged are returned.
func RHF(atoms []Atom, basis string, charge int, o *Options) (*Result, error) {
	errid := "scf/RHF"
	if o == nil {
		o = &Options{}
	}
	maxiter := o.MaxIter
	if maxiter <= 0 {
		maxiter = 50
	}
	electrons := -charge
	for _, a := range atoms {
		electrons += a.Z
	}
	if electrons <= 0 || electrons%2 != 0 {
		return nil, fmt.Errorf("%s: %d electrons, only closed shells with at least 2 electrons are supported", errid, electrons)
	}
	shells, err := Basis(basis, atoms)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errid, err)
	}
	bf := contract(atoms, shells)
	n := len(bf)
	nocc := electrons / 2
	if nocc > n {
		return nil, fmt.Errorf("%s: %d occupied orbitals but only %d basis functions", errid, nocc, n)
	}
	S, T, V := oneElectron(bf, atoms)
	H := mat.NewSymDense(n, nil)
	H.AddSym(T, V)
	vee := twoElectron(bf)
	vnn := nuclearRepulsion(atoms)
	X, err := orthogonalizer(S)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errid, err)
	}
	//core Hamiltonian guess
	_, C, err := diagonalize(H, X)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errid, err)
	}
	D := density(C, nocc)
	d := &diis{}
	var eold, e float64
	res := &Result{Occupied: nocc, Atoms: atoms, Shells: shells}
	var eps []float64
	for it := 1; it <= maxiter; it++ {
		F := fock(H, D, vee)
		e = energy(H, F, D) + vnn
		d.push(F, diisError(F, D, S, X))
		eps, C, err = diagonalize(d.extrapolate(), X)
		if err != nil {
			return nil, fmt.Errorf("%s: iteration %d: %w", errid, it, err)
		}
		Dn := density(C, nocc)
		drms := rmsDiff(Dn, D)
		de := e - eold
		if o.Log != nil {
			o.Log.Printf("SCF iteration %3d  E= %18.10f  dE= %10.3e  dRMS= %10.3e", it, e, de, drms)
		}
		D = Dn
		eold = e
		res.Iterations = it
		if it > 1 && math.Abs(de) < EnergyTol && drms < DensityTol {
			res.Converged = true
			break
		}
	}
	res.Energy = energy(H, fock(H, D, vee), D) + vnn
	res.MOEnergies = eps
	res.Coefs = C
	if !res.Converged {
		return res, fmt.Errorf("%s: %d iterations: %w", errid, maxiter, ErrNotConverged)
	}
	if o.Log != nil {
		o.Log.Printf("SCF converged in %d iterations. E= %.10f", res.Iterations, res.Energy)
	}
	return res, nil
}

// orthogonalizer returns S^-1/2.
func orthogonalizer(S *mat.SymDense) (*mat.Dense, error) {
	n := S.SymmetricDim()
	var es mat.EigenSym
	if ok := es.Factorize(S, true); !ok {
		return nil, fmt.Errorf("overlap matrix eigendecomposition failed")
	}
	vals := es.Values(nil)
	var U mat.Dense
	es.VectorsTo(&U)
	for _, v := range vals {
		if v < 1e-10 {
			return nil, fmt.Errorf("linear dependencies in the basis set (overlap eigenvalue %g)", v)
		}
	}
	L := mat.NewDiagDense(n, nil)
	for i, v := range vals {
		L.SetDiag(i, 1/math.Sqrt(v))
	}
	X := mat.NewDense(n, n, nil)
	X.Product(&U, L, U.T())
	return X, nil
}

// diagonalize solves FC=SCe, with X=S^-1/2. It returns the energies
// in increasing order and the coefficients.
func diagonalize(F mat.Symmetric, X *mat.Dense) ([]float64, *mat.Dense, error) {
	n := F.SymmetricDim()
	Fp := mat.NewDense(n, n, nil)
	Fp.Product(X.T(), F, X)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(Fp.At(i, j)+Fp.At(j, i)))
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, nil, fmt.Errorf("Fock matrix eigendecomposition failed")
	}
	var Cp mat.Dense
	es.VectorsTo(&Cp)
	C := mat.NewDense(n, n, nil)
	C.Mul(X, &Cp)
	return es.Values(nil), C, nil
}

// density returns D_ij = sum_occ C_io C_jo. The total density is 2D.
func density(C *mat.Dense, nocc int) *mat.SymDense {
	n, _ := C.Dims()
	Cocc := C.Slice(0, n, 0, nocc)
	D := mat.NewSymDense(n, nil)
	D.SymOuterK(1, Cocc)
	return D
}

func fock(H, D *mat.SymDense, vee *eris) *mat.SymDense {
	n := H.SymmetricDim()
	F := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			g := 0.0
			for k := 0; k < n; k++ {
				for l := 0; l < n; l++ {
					g += D.At(k, l) * (2*vee.at(i, j, k, l) - vee.at(i, k, j, l))
				}
			}
			F.SetSym(i, j, H.At(i, j)+g)
		}
	}
	return F
}

// energy returns the electronic energy sum_ij D_ij (H_ij + F_ij).
func energy(H, F, D *mat.SymDense) float64 {
	n := H.SymmetricDim()
	var e float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			e += D.At(i, j) * (H.At(i, j) + F.At(i, j))
		}
	}
	return e
}

func rmsDiff(A, B *mat.SymDense) float64 {
	n := A.SymmetricDim()
	var s float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := A.At(i, j) - B.At(i, j)
			s += d * d
		}
	}
	return math.Sqrt(s / float64(n*n))
}

// diisError is X(FDS-SDF)X, which vanishes at convergence.
func diisError(F, D, S *mat.SymDense, X *mat.Dense) *mat.Dense {
	n := F.SymmetricDim()
	a := mat.NewDense(n, n, nil)
	b := mat.NewDense(n, n, nil)
	a.Product(F, D, S)
	b.Product(S, D, F)
	a.Sub(a, b)
	e := mat.NewDense(n, n, nil)
	e.Product(X, a, X)
	return e
}

// diis keeps the last few Fock matrices and errors for Pulay's
// extrapolation.
type diis struct {
	focks  []*mat.SymDense
	errors []*mat.Dense
}

func (d *diis) push(F *mat.SymDense, e *mat.Dense) {
	d.focks = append(d.focks, F)
	d.errors = append(d.errors, e)
	if len(d.focks) > diisSize {
		d.focks = d.focks[1:]
		d.errors = d.errors[1:]
	}
}

// extrapolate returns the DIIS Fock matrix, or the last one
// if there is not enough history or the DIIS equations are singular.
func (d *diis) extrapolate() *mat.SymDense {
	m := len(d.focks)
	last := d.focks[m-1]
	if m < 2 {
		return last
	}
	B := mat.NewDense(m+1, m+1, nil)
	for i := 0; i < m; i++ {
		for j := 0; j <= i; j++ {
			var p mat.Dense
			p.MulElem(d.errors[i], d.errors[j])
			v := mat.Sum(&p)
			B.Set(i, j, v)
			B.Set(j, i, v)
		}
		B.Set(i, m, -1)
		B.Set(m, i, -1)
	}
	rhs := mat.NewVecDense(m+1, nil)
	rhs.SetVec(m, -1)
	var c mat.VecDense
	if err := c.SolveVec(B, rhs); err != nil {
		return last
	}
	n := last.SymmetricDim()
	F := mat.NewSymDense(n, nil)
	for k := 0; k < m; k++ {
		w := c.AtVec(k)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				F.SetSym(i, j, F.At(i, j)+w*d.focks[k].At(i, j))
			}
		}
	}
	return F
}

// Wavefunction returns the basis set and orbitals of R as a Molden wavefunction.
func (R *Result) Wavefunction() (*molden.Wavefunction, error) {
	atoms := make([]molden.Atom, len(R.Atoms))
	for i, v := range R.Atoms {
		atoms[i] = molden.Atom{Symbol: v.Symbol, Z: v.Z, Pos: v.Pos}
	}
	occ := make([]float64, len(R.MOEnergies))
	for i := 0; i < R.Occupied; i++ {
		occ[i] = 2
	}
	return molden.New(atoms, R.Shells, false, false, R.MOEnergies, occ, R.Coefs)
}
