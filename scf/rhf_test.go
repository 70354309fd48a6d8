/*
 * rhf_test.go, part of godft.
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
	"errors"
	"log"
	"math"
	"strings"
	"testing"
)

func h2(r float64) []Atom {
	return []Atom{{Symbol: "H", Z: 1}, {Symbol: "H", Z: 1, Pos: [3]float64{0, 0, r}}}
}

// Reference values from Szabo and Ostlund, Modern Quantum Chemistry.
func TestRHF(Te *testing.T) {
	tests := []struct {
		name   string
		atoms  []Atom
		basis  string
		charge int
		energy float64
	}{
		{"H2 STO-3G", h2(1.4), "sto-3g", 0, -1.1167},
		{"He STO-3G", []Atom{{Symbol: "He", Z: 2}}, "sto-3g", 0, -2.8078},
	}
	for _, t := range tests {
		Te.Run(t.name, func(Te *testing.T) {
			r, err := RHF(t.atoms, t.basis, t.charge, nil)
			if err != nil {
				Te.Fatal(err)
			}
			if !r.Converged {
				Te.Error("not converged")
			}
			if math.Abs(r.Energy-t.energy) > 1e-3 {
				Te.Errorf("energy %.6f, want %.4f", r.Energy, t.energy)
			}
		})
	}
}

func TestH2Orbitals(Te *testing.T) {
	var b strings.Builder
	r, err := RHF(h2(1.4), "sto-3g", 0, &Options{Log: log.New(&b, "", 0)})
	if err != nil {
		Te.Fatal(err)
	}
	if math.Abs(r.MOEnergies[0]+0.578) > 1e-3 || math.Abs(r.MOEnergies[1]-0.670) > 1e-3 {
		Te.Errorf("orbital energies %v, want -0.578, 0.670", r.MOEnergies)
	}
	//sigma_g: both coefficients with the same sign and magnitude
	c0, c1 := r.Coefs.At(0, 0), r.Coefs.At(1, 0)
	if math.Abs(c0-c1) > 1e-6 {
		Te.Errorf("bonding orbital coefficients %v %v", c0, c1)
	}
	if !strings.Contains(b.String(), "SCF converged") {
		Te.Errorf("nothing logged: %q", b.String())
	}
	W, err := r.Wavefunction()
	if err != nil {
		Te.Fatal(err)
	}
	if W.NAO() != 2 || W.NMO() != 2 || W.HOMO() != 0 {
		Te.Errorf("wrong wavefunction: %d AOs, %d MOs, HOMO %d", W.NAO(), W.NMO(), W.HOMO())
	}
}

func TestLargerBasis(Te *testing.T) {
	small, err := RHF(h2(1.4), "sto-3g", 0, nil)
	if err != nil {
		Te.Fatal(err)
	}
	large, err := RHF(h2(1.4), "6-31G", 0, nil)
	if err != nil {
		Te.Fatal(err)
	}
	if large.Energy >= small.Energy {
		Te.Errorf("6-31G energy %v not below STO-3G energy %v", large.Energy, small.Energy)
	}
	if len(large.MOEnergies) != 4 {
		Te.Errorf("%d MOs for 6-31G H2, want 4", len(large.MOEnergies))
	}
}

func TestRHFErrors(Te *testing.T) {
	if _, err := RHF([]Atom{{Symbol: "H", Z: 1}}, "sto-3g", 0, nil); err == nil {
		Te.Error("no error for an open shell")
	}
	var ub ErrUnknownBasis
	if _, err := RHF(h2(1.4), "def2-svp", 0, nil); !errors.As(err, &ub) {
		Te.Errorf("expected ErrUnknownBasis, got %v", err)
	}
	if _, err := RHF([]Atom{{Symbol: "Li", Z: 3}, {Symbol: "H", Z: 1, Pos: [3]float64{0, 0, 3}}}, "sto-3g", 0, nil); !errors.As(err, &ub) {
		Te.Errorf("expected ErrUnknownBasis for Li, got %v", err)
	}
	r, err := RHF(h2(1.4), "sto-3g", 0, &Options{MaxIter: 1})
	if !errors.Is(err, ErrNotConverged) {
		Te.Errorf("expected ErrNotConverged, got %v", err)
	}
	if r == nil {
		Te.Error("no result returned with ErrNotConverged")
	}
}
