/*
 * molden.go, part of godft.
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

// Package molden reads and writes wavefunctions (basis set and molecular orbitals)
// in the Molden format, which most QM programs can produce.
// All coordinates are kept in bohr.
package molden

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrFormat is wrapped by all the errors due to ill-formed Molden files.
var ErrFormat = errors.New("molden: ill-formed file")

// Shell letters, indexed by angular momentum.
var shellLetters = []string{"s", "p", "d", "f", "g"}

// Atom is a nucleus in the wavefunction. Pos is in bohr.
type Atom struct {
	Symbol string
	Z      int
	Pos    [3]float64
}

// Primitive is one Gaussian in a contraction. Coeff is the contraction
// coefficient for a normalized primitive, as in basis set files.
type Primitive struct {
	Exp   float64
	Coeff float64
}

// Shell is a contracted shell of angular momentum L centered on Atoms[Atom] (0-based).
type Shell struct {
	Atom  int
	L     int
	Prims []Primitive
}

// Letter returns the spectroscopic letter for the shell.
func (s *Shell) Letter() string {
	if s.L < len(shellLetters) {
		return shellLetters[s.L]
	}
	return "?"
}

// doubleFact returns n!! for n>=-1.
func doubleFact(n int) float64 {
	r := 1.0
	for ; n > 1; n -= 2 {
		r *= float64(n)
	}
	return r
}

// primNorm is the normalization constant of a primitive x^l exp(-a r^2).
func primNorm(a float64, l int) float64 {
	return math.Pow(2*a/math.Pi, 0.75) * math.Pow(4*a, float64(l)/2) / math.Sqrt(doubleFact(2*l-1))
}

// Contraction returns the coefficients of the primitives of the shell, including
// the normalization of each primitive and of the contraction, so that the x^L
// component of the shell is a normalized function, whatever the normalization
// of the coefficients given in the file.
func (s *Shell) Contraction() []float64 {
	n := s.Norm()
	c := make([]float64, len(s.Prims))
	for k, p := range s.Prims {
		c[k] = p.Coeff * primNorm(p.Exp, s.L) * n
	}
	return c
}

// RadialContracted returns the value of the radial part of the shell at squared
// distance r2 (bohr^2), with the coefficients c obtained from Contraction.
func (s *Shell) RadialContracted(c []float64, r2 float64) float64 {
	var v float64
	for k, p := range s.Prims {
		v += c[k] * math.Exp(-p.Exp*r2)
	}
	return v
}

// Radial returns the value of the normalized contracted radial part of the shell
// at squared distance r2 (bohr^2). To evaluate a shell at many points, get the
// coefficients once with Contraction and use RadialContracted.
func (s *Shell) Radial(r2 float64) float64 {
	return s.RadialContracted(s.Contraction(), r2)
}

// Norm returns the factor that normalizes the contraction, given
// normalized primitives.
func (s *Shell) Norm() float64 {
	var ov float64
	l := float64(s.L)
	for _, p := range s.Prims {
		for _, q := range s.Prims {
			a := p.Exp + q.Exp
			ov += p.Coeff * q.Coeff * primNorm(p.Exp, s.L) * primNorm(q.Exp, s.L) *
				doubleFact(2*s.L-1) / math.Pow(2*a, l) * math.Pow(math.Pi/a, 1.5)
		}
	}
	if ov <= 0 {
		return 0
	}
	return 1 / math.Sqrt(ov)
}

// Size returns the number of basis functions in the shell, for spherical
// (pure) or Cartesian functions.
func (s *Shell) Size(pure bool) int {
	if pure {
		return 2*s.L + 1
	}
	return (s.L + 1) * (s.L + 2) / 2
}

// Wavefunction contains the basis set and the molecular orbitals of a calculation.
// The MOs are ordered by increasing energy.
type Wavefunction struct {
	Atoms  []Atom
	Shells []Shell
	//PureD and PureF are true when the d and f shells, respectively,
	//use spherical functions
	PureD       bool
	PureF       bool
	Energies    []float64 //Hartree
	Occupations []float64
	Symmetries  []string
	coefs       *mat.Dense //NAO x NMO
}

// New returns a Wavefunction with the given data. coefs must have one row per
// basis function and one column per MO, and it is copied. energies and occupations
// must have one element per MO. The MOs are reordered by increasing energy
// if needed.
func New(atoms []Atom, shells []Shell, pureD, pureF bool, energies, occupations []float64, coefs mat.Matrix) (*Wavefunction, error) {
	errid := "molden/New"
	W := &Wavefunction{
		Atoms:  atoms,
		Shells: shells,
		PureD:  pureD,
		PureF:  pureF,
	}
	for i, v := range shells {
		if v.Atom < 0 || v.Atom >= len(atoms) {
			return nil, fmt.Errorf("%s: shell %d is on atom %d, but there are %d atoms", errid, i, v.Atom+1, len(atoms))
		}
	}
	r, c := coefs.Dims()
	if r != W.NAO() {
		return nil, fmt.Errorf("%s: %d coefficients per MO for %d basis functions", errid, r, W.NAO())
	}
	if len(energies) != c || len(occupations) != c {
		return nil, fmt.Errorf("%s: %d MOs, but %d energies and %d occupations", errid, c, len(energies), len(occupations))
	}
	W.Energies = append([]float64(nil), energies...)
	W.Occupations = append([]float64(nil), occupations...)
	W.Symmetries = make([]string, c)
	for i := range W.Symmetries {
		W.Symmetries[i] = "A"
	}
	W.coefs = mat.DenseCopyOf(coefs)
	W.sortByEnergy()
	return W, nil
}

// sortByEnergy puts the MOs in increasing energy order, keeping the
// order of degenerate orbitals. It is an insertion sort, but the MOs
// from QM programs are almost always sorted already.
func (W *Wavefunction) sortByEnergy() {
	n := len(W.Energies)
	for i := 1; i < n; i++ {
		for j := i; j > 0 && W.Energies[j] < W.Energies[j-1]; j-- {
			W.swapMOs(j, j-1)
		}
	}
}

func (W *Wavefunction) swapMOs(i, j int) {
	W.Energies[i], W.Energies[j] = W.Energies[j], W.Energies[i]
	W.Occupations[i], W.Occupations[j] = W.Occupations[j], W.Occupations[i]
	W.Symmetries[i], W.Symmetries[j] = W.Symmetries[j], W.Symmetries[i]
	ci := mat.Col(nil, i, W.coefs)
	cj := mat.Col(nil, j, W.coefs)
	W.coefs.SetCol(i, cj)
	W.coefs.SetCol(j, ci)
}

// Pure returns true if shells with angular momentum l use spherical functions.
func (W *Wavefunction) Pure(l int) bool {
	switch l {
	case 2:
		return W.PureD
	case 3:
		return W.PureF
	}
	return false
}

// NAO returns the number of basis functions.
func (W *Wavefunction) NAO() int {
	n := 0
	for i := range W.Shells {
		n += W.Shells[i].Size(W.Pure(W.Shells[i].L))
	}
	return n
}

// NMO returns the number of molecular orbitals.
func (W *Wavefunction) NMO() int {
	if W.coefs == nil {
		return 0
	}
	_, c := W.coefs.Dims()
	return c
}

// Coefficients returns a copy of the NAO x NMO coefficient matrix.
func (W *Wavefunction) Coefficients() *mat.Dense {
	return mat.DenseCopyOf(W.coefs)
}

// MO returns a copy of the coefficients of the ith (0-based) MO.
func (W *Wavefunction) MO(i int) []float64 {
	return mat.Col(nil, i, W.coefs)
}

// HOMO returns the 0-based index of the highest occupied MO,
// or -1 if no orbital is occupied.
func (W *Wavefunction) HOMO() int {
	for i := len(W.Occupations) - 1; i >= 0; i-- {
		if W.Occupations[i] > 0.5 {
			return i
		}
	}
	return -1
}

// ShellOffsets returns, for each shell, the index of its first basis function.
func (W *Wavefunction) ShellOffsets() []int {
	ret := make([]int, len(W.Shells))
	n := 0
	for i := range W.Shells {
		ret[i] = n
		n += W.Shells[i].Size(W.Pure(W.Shells[i].L))
	}
	return ret
}

// FixOrca corrects the sign convention ORCA uses for the spherical f(+3) and
// f(-3) functions in its Molden files, which differs from everybody else's.
// It does nothing if the f shells are Cartesian.
func (W *Wavefunction) FixOrca() {
	if !W.PureF {
		return
	}
	offsets := W.ShellOffsets()
	_, nmo := W.coefs.Dims()
	for i, s := range W.Shells {
		if s.L != 3 {
			continue
		}
		//Molden order: F0, F+1, F-1, F+2, F-2, F+3, F-3
		for _, k := range []int{offsets[i] + 5, offsets[i] + 6} {
			for j := 0; j < nmo; j++ {
				W.coefs.Set(k, j, -W.coefs.At(k, j))
			}
		}
	}
}
