/*
 * integrals.go, part of godft.
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
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
)

// boys is the Boys function of order n.
func boys(x float64, n int) float64 {
	nf := float64(n)
	if x < 1e-12 {
		return 1.0 / (2.0*nf + 1)
	}
	return mathext.GammaIncReg(nf+0.5, x) * math.Gamma(nf+0.5) / (2.0 * math.Pow(x, nf+0.5))
}

func dist2(a, b [3]float64) float64 {
	var s float64
	for k := range a {
		d := a[k] - b[k]
		s += d * d
	}
	return s
}

// gaussianCenter is the center of the product of two Gaussians with exponents a and b.
func gaussianCenter(a float64, A [3]float64, b float64, B [3]float64) [3]float64 {
	var P [3]float64
	for k := range P {
		P[k] = (a*A[k] + b*B[k]) / (a + b)
	}
	return P
}

// oneElectron returns the overlap, kinetic and nuclear attraction matrices.
func oneElectron(bf []contracted, atoms []Atom) (S, T, V *mat.SymDense) {
	n := len(bf)
	S = mat.NewSymDense(n, nil)
	T = mat.NewSymDense(n, nil)
	V = mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var s, t, v float64
			A, B := bf[i].center, bf[j].center
			AB2 := dist2(A, B)
			for k, a := range bf[i].exps {
				for l, b := range bf[j].exps {
					p := a + b
					mu := a * b / p
					cc := bf[i].coefs[k] * bf[j].coefs[l]
					ov := cc * math.Pow(math.Pi/p, 1.5) * math.Exp(-mu*AB2)
					s += ov
					t += ov * mu * (3 - 2*mu*AB2)
					P := gaussianCenter(a, A, b, B)
					for _, at := range atoms {
						v -= float64(at.Z) * cc * (2 * math.Pi / p) * math.Exp(-mu*AB2) * boys(p*dist2(P, at.Pos), 0)
					}
				}
			}
			S.SetSym(i, j, s)
			T.SetSym(i, j, t)
			V.SetSym(i, j, v)
		}
	}
	return S, T, V
}

// eris holds the two-electron repulsion integrals (ij|kl) in chemist's
// notation, for all indexes.
type eris struct {
	n    int
	vals []float64
}

func (e *eris) at(i, j, k, l int) float64 {
	n := e.n
	return e.vals[((i*n+j)*n+k)*n+l]
}

func (e *eris) set(i, j, k, l int, v float64) {
	n := e.n
	for _, idx := range [][4]int{{i, j, k, l}, {j, i, k, l}, {i, j, l, k}, {j, i, l, k},
		{k, l, i, j}, {l, k, i, j}, {k, l, j, i}, {l, k, j, i}} {
		e.vals[((idx[0]*n+idx[1])*n+idx[2])*n+idx[3]] = v
	}
}

// twoElectron computes the electron repulsion integrals, using their 8-fold symmetry.
func twoElectron(bf []contracted) *eris {
	n := len(bf)
	e := &eris{n: n, vals: make([]float64, n*n*n*n)}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			ij := i*(i+1)/2 + j
			for k := 0; k < n; k++ {
				for l := 0; l <= k; l++ {
					kl := k*(k+1)/2 + l
					if kl > ij {
						continue
					}
					e.set(i, j, k, l, eri(bf[i], bf[j], bf[k], bf[l]))
				}
			}
		}
	}
	return e
}

func eri(a, b, c, d contracted) float64 {
	var v float64
	AB2 := dist2(a.center, b.center)
	CD2 := dist2(c.center, d.center)
	for i, ea := range a.exps {
		for j, eb := range b.exps {
			p := ea + eb
			P := gaussianCenter(ea, a.center, eb, b.center)
			kab := math.Exp(-ea * eb / p * AB2)
			for k, ec := range c.exps {
				for l, ed := range d.exps {
					q := ec + ed
					Q := gaussianCenter(ec, c.center, ed, d.center)
					kcd := math.Exp(-ec * ed / q * CD2)
					cc := a.coefs[i] * b.coefs[j] * c.coefs[k] * d.coefs[l]
					v += cc * 2 * math.Pow(math.Pi, 2.5) / (p * q * math.Sqrt(p+q)) * kab * kcd * boys(p*q/(p+q)*dist2(P, Q), 0)
				}
			}
		}
	}
	return v
}

// nuclearRepulsion returns the nucleus-nucleus repulsion energy.
func nuclearRepulsion(atoms []Atom) float64 {
	var e float64
	for i := range atoms {
		for j := i + 1; j < len(atoms); j++ {
			e += float64(atoms[i].Z*atoms[j].Z) / math.Sqrt(dist2(atoms[i].Pos, atoms[j].Pos))
		}
	}
	return e
}
