/*
 * atomicdata.go, part of godft.
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
	"strings"

	"golang.org/x/exp/slices"
)

// Element symbols, indexed by atomic number. Index 0 is a dummy.
var symbols = []string{"X",
	"H", "He",
	"Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar",
	"K", "Ca", "Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn",
	"Ga", "Ge", "As", "Se", "Br", "Kr",
	"Rb", "Sr", "Y", "Zr", "Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd",
	"In", "Sn", "Sb", "Te", "I", "Xe",
}

// Standard atomic masses, indexed by atomic number.
var masses = []float64{0,
	1.008, 4.0026,
	6.94, 9.0122, 10.81, 12.011, 14.007, 15.999, 18.998, 20.180,
	22.990, 24.305, 26.982, 28.085, 30.974, 32.06, 35.45, 39.948,
	39.098, 40.078, 44.956, 47.867, 50.942, 51.996, 54.938, 55.845, 58.933, 58.693, 63.546, 65.38,
	69.723, 72.630, 74.922, 78.971, 79.904, 83.798,
	85.468, 87.62, 88.906, 91.224, 92.906, 95.95, 97.0, 101.07, 102.91, 106.42, 107.87, 112.41,
	114.82, 118.71, 121.76, 127.60, 126.90, 131.29,
}

// Covalent radii in Angstrom, indexed by atomic number.
// Values from Cordero et al., 2008 (DOI:10.1039/B801115J). For C the sp3 radius,
// for Mn, Fe and Co the low-spin ones.
var covalentRadii = []float64{0,
	0.31, 0.28,
	1.28, 0.96, 0.84, 0.76, 0.71, 0.66, 0.57, 0.58,
	1.66, 1.41, 1.21, 1.11, 1.07, 1.05, 1.02, 1.06,
	2.03, 1.76, 1.70, 1.60, 1.53, 1.39, 1.39, 1.32, 1.26, 1.24, 1.32, 1.22,
	1.22, 1.20, 1.19, 1.20, 1.20, 1.16,
	2.20, 1.95, 1.90, 1.75, 1.64, 1.54, 1.47, 1.46, 1.42, 1.39, 1.45, 1.44,
	1.42, 1.39, 1.39, 1.38, 1.39, 1.40,
}

// A map for checking that atoms don't
// have too many bonds. Elements not in the map are not checked.
var symbolMaxBonds = map[string]int{
	"H":  1, //this is the only one truly important.
	"C":  4,
	"O":  2,
	"F":  1,
	"Cl": 1,
	"Br": 1,
	"I":  1,
}

// normalizeSymbol turns things like "CL" or "cl" into "Cl".
func normalizeSymbol(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// AtomicNumber returns the atomic number for the element symbol s,
// or 0 if the symbol is not known.
func AtomicNumber(s string) int {
	z := slices.Index(symbols, normalizeSymbol(s))
	if z < 0 {
		return 0
	}
	return z
}

// Symbol returns the element symbol for the atomic number z, or an empty
// string if z is out of range.
func Symbol(z int) string {
	if z <= 0 || z >= len(symbols) {
		return ""
	}
	return symbols[z]
}

// Mass returns the standard atomic mass for the element symbol s,
// or 0 if unknown.
func Mass(s string) float64 {
	return masses[AtomicNumber(s)]
}

// CovalentRadius returns the covalent radius (A) for the element symbol s,
// or 0 if unknown.
func CovalentRadius(s string) float64 {
	return covalentRadii[AtomicNumber(s)]
}
