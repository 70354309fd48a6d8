/*
 * bonds.go, part of godft.
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

package chem

import (
	"fmt"
	"sort"

	v3 "github.com/rmera/godft/v3"
)

// BondFactor is the default tolerance for bond detection: two atoms are bonded
// if their distance is below BondFactor times the sum of their covalent radii.
const BondFactor = 1.2

// Atoms closer than this (A) are not considered bonded, but clashing.
const tooclose = 0.4

// Bond is a bond between atoms with indexes At1 and At2 (At1<At2).
type Bond struct {
	At1  int
	At2  int
	Dist float64
}

// Bonds assigns bonds to a set of atoms based on a simple distance
// criterion: d < factor*(r1+r2), where r1 and r2 are covalent radii. If factor
// is not positive, BondFactor is used. Atoms that end up with more bonds than
// chemically reasonable (only checked for a few elements, mainly H) lose
// their longest bonds. The bonds are returned sorted by atom indexes.
func Bonds(coord *v3.Matrix, mol Atomer, factor float64) ([]Bond, error) {
	// might get slow for
	//large systems. It's really not thought
	//for proteins or macromolecules.
	if factor <= 0 {
		factor = BondFactor
	}
	tot := mol.Len()
	if coord.NVecs() != tot {
		return nil, fmt.Errorf("chem/Bonds: %d coordinates for %d atoms", coord.NVecs(), tot)
	}
	radii := make([]float64, tot)
	for i := range radii {
		radii[i] = CovalentRadius(mol.Atom(i).Symbol)
		if radii[i] == 0 {
			return nil, fmt.Errorf("chem/Bonds: couldn't find the covalent radius for %s %d", mol.Atom(i).Symbol, i)
		}
	}
	perAtom := make([][]Bond, tot)
	for i := 0; i < tot; i++ {
		for j := i + 1; j < tot; j++ {
			d := coord.Distance(i, j)
			if d < factor*(radii[i]+radii[j]) && d > tooclose {
				b := Bond{At1: i, At2: j, Dist: d}
				perAtom[i] = append(perAtom[i], b)
				perAtom[j] = append(perAtom[j], b)
			}
		}
	}
	//Now we check that no atom has too many bonds.
	removed := make(map[[2]int]bool)
	for i := 0; i < tot; i++ {
		max, ok := symbolMaxBonds[mol.Atom(i).Symbol]
		if !ok {
			continue
		}
		current := make([]Bond, 0, len(perAtom[i]))
		for _, b := range perAtom[i] {
			if !removed[[2]int{b.At1, b.At2}] {
				current = append(current, b)
			}
		}
		sort.Slice(current, func(k, l int) bool { return current[k].Dist < current[l].Dist })
		for _, b := range current[min(max, len(current)):] {
			removed[[2]int{b.At1, b.At2}] = true //we remove the longest bonds
		}
	}
	ret := make([]Bond, 0, tot)
	for i := 0; i < tot; i++ {
		for _, b := range perAtom[i] {
			if b.At1 == i && !removed[[2]int{b.At1, b.At2}] {
				ret = append(ret, b)
			}
		}
	}
	return ret, nil
}
