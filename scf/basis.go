/*
 * basis.go, part of godft.
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

package scf

import (
	"fmt"
	"math"
	"strings"

	"github.com/rmera/godft/molden"
)

// ErrUnknownBasis is returned when a basis set or an element
// is not available in the built-in library.
type ErrUnknownBasis struct {
	Basis  string
	Symbol string
}

func (e ErrUnknownBasis) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("scf: basis set %q not available", e.Basis)
	}
	return fmt.Sprintf("scf: basis set %q not available for %s", e.Basis, e.Symbol)
}

// Built-in basis sets. Only s shells, so only the first period
// is covered. The contraction coefficients are for normalized primitives.
var basisLibrary = map[string]map[string][][]molden.Primitive{
	"sto-3g": {
		"H": {
			{{Exp: 3.42525091, Coeff: 0.15432897}, {Exp: 0.62391373, Coeff: 0.53532814}, {Exp: 0.16885540, Coeff: 0.44463454}},
		},
		"He": {
			{{Exp: 6.36242139, Coeff: 0.15432897}, {Exp: 1.15892300, Coeff: 0.53532814}, {Exp: 0.31364979, Coeff: 0.44463454}},
		},
	},
	"6-31g": {
		"H": {
			{{Exp: 18.7311370, Coeff: 0.03349460}, {Exp: 2.8253937, Coeff: 0.23472695}, {Exp: 0.6401217, Coeff: 0.81375733}},
			{{Exp: 0.1612778, Coeff: 1.0}},
		},
		"He": {
			{{Exp: 38.4216340, Coeff: 0.0237660}, {Exp: 5.7780300, Coeff: 0.1546790}, {Exp: 1.2417740, Coeff: 0.4696300}},
			{{Exp: 0.2979640, Coeff: 1.0}},
		},
	},
}

// Basis returns the basis functions for the given atoms, in the order of
// the atoms. Basis set names are case-insensitive.
func Basis(name string, atoms []Atom) ([]molden.Shell, error) {
	lib, ok := basisLibrary[strings.ToLower(name)]
	if !ok {
		return nil, ErrUnknownBasis{Basis: name}
	}
	ret := make([]molden.Shell, 0, 2*len(atoms))
	for i, a := range atoms {
		contractions, ok := lib[a.Symbol]
		if !ok {
			return nil, ErrUnknownBasis{Basis: name, Symbol: a.Symbol}
		}
		for _, c := range contractions {
			ret = append(ret, molden.Shell{Atom: i, L: 0, Prims: append([]molden.Primitive(nil), c...)})
		}
	}
	return ret, nil
}

// Basis functions with the normalization folded into the coefficients,
// which is what the integral routines want.
type contracted struct {
	center [3]float64
	exps   []float64
	coefs  []float64
}

func contract(atoms []Atom, shells []molden.Shell) []contracted {
	ret := make([]contracted, len(shells))
	for i, s := range shells {
		c := contracted{center: atoms[s.Atom].Pos}
		norm := s.Norm()
		for _, p := range s.Prims {
			c.exps = append(c.exps, p.Exp)
			c.coefs = append(c.coefs, p.Coeff*math.Pow(2*p.Exp/math.Pi, 0.75)*norm)
		}
		ret[i] = c
	}
	return ret
}
