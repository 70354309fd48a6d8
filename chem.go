/*
 * chem.go, part of godft.
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

package chem

import (
	"fmt"

	v3 "github.com/rmera/godft/v3"
)

// AtomRecord is one line of a coordinate block: an element symbol
// and a position in Angstrom.
type AtomRecord struct {
	Symbol string
	Pos    [3]float64
}

// Atom contains the information about an atom except for the coordinates,
// which are kept in a v3.Matrix.
type Atom struct {
	Symbol string
	Z      int
	Mass   float64
	Index  int //position of the atom in its molecule, 0-based
}

// Molecule is an immutable molecular specification: atoms, coordinates and the
// few parameters a QM engine needs. Build it with Build, and get
// a modified copy with WithCoords.
type Molecule struct {
	atoms     []*Atom
	coords    *v3.Matrix
	basis     string
	charge    int
	verbosity int
	logpath   string
}

// Build returns a Molecule with the given atoms and parameters. It returns an error if
// there are no atoms, a symbol is not a known element, the basis is empty, or the
// number of electrons is not positive and even (only closed shells are supported).
// verbosity is clamped to the 0-9 range. Build doesn't touch the log file,
// it only records its path.
func Build(atoms []AtomRecord, basis string, charge, verbosity int, logpath string) (*Molecule, error) {
	errid := "chem/Build"
	if len(atoms) == 0 {
		return nil, fmt.Errorf("%s: no atoms given", errid)
	}
	if basis == "" {
		return nil, fmt.Errorf("%s: no basis set given", errid)
	}
	M := &Molecule{
		atoms:     make([]*Atom, 0, len(atoms)),
		coords:    v3.Zeros(len(atoms)),
		basis:     basis,
		charge:    charge,
		verbosity: clamp(verbosity, 0, 9),
		logpath:   logpath,
	}
	for i, v := range atoms {
		z := AtomicNumber(v.Symbol)
		if z == 0 {
			return nil, fmt.Errorf("%s: unknown element %q for atom %d", errid, v.Symbol, i+1)
		}
		M.atoms = append(M.atoms, &Atom{Symbol: Symbol(z), Z: z, Mass: Mass(v.Symbol), Index: i})
		M.coords.SetVec(i, v.Pos)
	}
	e := M.Electrons()
	if e <= 0 {
		return nil, fmt.Errorf("%s: charge %d leaves %d electrons", errid, charge, e)
	}
	if e%2 != 0 {
		return nil, fmt.Errorf("%s: %d electrons, only closed-shell molecules are supported", errid, e)
	}
	return M, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WithCoords returns a new Molecule identical to M but with a copy
// of coords as its geometry. It panics if the number of vectors doesn't
// match the number of atoms.
func (M *Molecule) WithCoords(coords *v3.Matrix) *Molecule {
	if coords.NVecs() != len(M.atoms) {
		panic(v3.ErrShape)
	}
	N := *M
	N.coords = coords.Clone()
	return &N
}

// Atom returns the ith atom. The atom must not be modified.
func (M *Molecule) Atom(i int) *Atom {
	return M.atoms[i]
}

// Len returns the number of atoms.
func (M *Molecule) Len() int {
	return len(M.atoms)
}

// Coords returns a copy of the coordinates (A).
func (M *Molecule) Coords() *v3.Matrix {
	return M.coords.Clone()
}

// Records returns the atoms and coordinates as AtomRecords.
func (M *Molecule) Records() []AtomRecord {
	ret := make([]AtomRecord, len(M.atoms))
	for i, v := range M.atoms {
		ret[i] = AtomRecord{Symbol: v.Symbol, Pos: M.coords.Vec(i)}
	}
	return ret
}

// Basis returns the basis set name.
func (M *Molecule) Basis() string { return M.basis }

// Charge returns the total charge.
func (M *Molecule) Charge() int { return M.charge }

// Multi returns the multiplicity. Molecules are always closed-shell.
func (M *Molecule) Multi() int { return 1 }

// Verbosity returns the verbosity level for the engine diagnostics, 0-9.
func (M *Molecule) Verbosity() int { return M.verbosity }

// LogPath returns the path for the diagnostic log.
func (M *Molecule) LogPath() string { return M.logpath }

// Electrons returns the total number of electrons.
func (M *Molecule) Electrons() int {
	e := -M.charge
	for _, v := range M.atoms {
		e += v.Z
	}
	return e
}

// Occupied returns the number of doubly occupied orbitals.
func (M *Molecule) Occupied() int {
	return M.Electrons() / 2
}
