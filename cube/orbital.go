/*
 * orbital.go, part of godft.
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

package cube

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/rmera/godft/molden"
	"gonum.org/v1/gonum/floats"
)

// Contributions from shells whose most diffuse primitive has decayed below this
// at a point are not computed.
const cutoff = 1e-12

// Cartesian exponents in Molden order.
var cartesianOrder = [][][3]int{
	{{0, 0, 0}},
	{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	{{2, 0, 0}, {0, 2, 0}, {0, 0, 2}, {1, 1, 0}, {1, 0, 1}, {0, 1, 1}},
	{{3, 0, 0}, {0, 3, 0}, {0, 0, 3}, {1, 2, 0}, {2, 1, 0}, {2, 0, 1}, {1, 0, 2}, {0, 1, 2}, {0, 2, 1}, {1, 1, 1}},
}

var (
	sqrt3   = math.Sqrt(3)
	sqrt15  = math.Sqrt(15)
	sqrt3o8 = math.Sqrt(3.0 / 8.0)
	sqrt5o8 = math.Sqrt(5.0 / 8.0)
)

func doubleFact(n int) float64 {
	r := 1.0
	for ; n > 1; n -= 2 {
		r *= float64(n)
	}
	return r
}

// cartNorms[l][i] is the factor that normalizes the ith Cartesian
// function of a shell whose x^l component is normalized.
var cartNorms = func() [][]float64 {
	ret := make([][]float64, len(cartesianOrder))
	for l, comps := range cartesianOrder {
		for _, c := range comps {
			ret[l] = append(ret[l], math.Sqrt(doubleFact(2*l-1)/(doubleFact(2*c[0]-1)*doubleFact(2*c[1]-1)*doubleFact(2*c[2]-1))))
		}
	}
	return ret
}()

// angular puts in dst the angular parts of the functions of a shell with
// angular momentum l, in Molden order, and returns the filled slice.
func angular(dst []float64, l int, pure bool, x, y, z float64) []float64 {
	dst = dst[:0]
	if pure && l == 2 {
		x2, y2, z2 := x*x, y*y, z*z
		return append(dst,
			(2*z2-x2-y2)/2,
			sqrt3*x*z,
			sqrt3*y*z,
			sqrt3/2*(x2-y2),
			sqrt3*x*y)
	}
	if pure && l == 3 {
		x2, y2, z2 := x*x, y*y, z*z
		return append(dst,
			z*(2*z2-3*x2-3*y2)/2,
			sqrt3o8*x*(4*z2-x2-y2),
			sqrt3o8*y*(4*z2-x2-y2),
			sqrt15/2*z*(x2-y2),
			sqrt15*x*y*z,
			sqrt5o8*x*(x2-3*y2),
			sqrt5o8*y*(3*x2-y2))
	}
	for i, c := range cartesianOrder[l] {
		dst = append(dst, cartNorms[l][i]*ipow(x, c[0])*ipow(y, c[1])*ipow(z, c[2]))
	}
	return dst
}

func ipow(x float64, n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= x
	}
	return r
}

// Orbital evaluates the MO with 0-based index mo of W on a box grid
// built with spec around the atoms of W. The evaluation is split among
// goroutines, each taking a set of planes of constant x.
func Orbital(W *molden.Wavefunction, mo int, spec BoxSpec) (*Grid, error) {
	if mo < 0 || mo >= W.NMO() {
		return nil, fmt.Errorf("cube/Orbital: MO %d requested, the wavefunction has %d", mo, W.NMO())
	}
	for _, s := range W.Shells {
		if s.L > 3 {
			return nil, fmt.Errorf("cube/Orbital: shells with L=%d are not supported", s.L)
		}
	}
	G := NewBoxGrid(W.Atoms, spec)
	G.Comments[0] = "godft molecular orbital"
	G.Comments[1] = fmt.Sprintf("MO %d  E= %.6f  occupation %.4f", mo+1, W.Energies[mo], W.Occupations[mo])
	coefs := W.MO(mo)
	offsets := W.ShellOffsets()
	//the minimum exponent of each shell, for the cutoff
	minexp := make([]float64, len(W.Shells))
	for i, s := range W.Shells {
		e := make([]float64, len(s.Prims))
		for k, p := range s.Prims {
			e[k] = p.Exp
		}
		minexp[i] = floats.Min(e)
	}
	contr := make([][]float64, len(W.Shells))
	for i := range W.Shells {
		contr[i] = W.Shells[i].Contraction()
	}
	workers := runtime.GOMAXPROCS(-1)
	if workers > G.N[0] {
		workers = G.N[0]
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ang := make([]float64, 0, 10)
			for i := w; i < G.N[0]; i += workers {
				for j := 0; j < G.N[1]; j++ {
					for k := 0; k < G.N[2]; k++ {
						p := G.Point(i, j, k)
						var v float64
						for si := range W.Shells {
							s := &W.Shells[si]
							c := W.Atoms[s.Atom].Pos
							x, y, z := p[0]-c[0], p[1]-c[1], p[2]-c[2]
							r2 := x*x + y*y + z*z
							if math.Exp(-minexp[si]*r2) < cutoff {
								continue
							}
							rad := s.RadialContracted(contr[si], r2)
							ang = angular(ang, s.L, W.Pure(s.L), x, y, z)
							v += rad * floats.Dot(ang, coefs[offsets[si]:offsets[si]+len(ang)])
						}
						G.Values[G.Index(i, j, k)] = v
					}
				}
			}
		}(w)
	}
	wg.Wait()
	return G, nil
}
