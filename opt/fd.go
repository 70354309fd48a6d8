/*
 * fd.go, part of godft.
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

package opt

import (
	"fmt"
	"math"
	"sync"

	chem "github.com/rmera/godft"
	v3 "github.com/rmera/godft/v3"
	"gonum.org/v1/gonum/stat/combin"
)

// EnergyFunc returns the energy (Hartree) for the coordinates (A).
type EnergyFunc func(coords *v3.Matrix) (float64, error)

// DefaultFDStep is the default displacement for finite differences, in bohr.
const DefaultFDStep = 1e-3

// centralCoefficients returns the coefficients and displacements (in units of
// the step h) of the central difference formula for the nth derivative:
// f^(n)(x) ~ sum_i coef_i f(x + disp_i*h) / h^n.
func centralCoefficients(n int) (coefs, disps []float64) {
	for i := 0; i <= n; i++ {
		c := float64(combin.Binomial(n, i))
		if i%2 != 0 {
			c = -c
		}
		//the formula uses points spaced 2h apart, hence the 2^n.
		coefs = append(coefs, c/math.Pow(2, float64(n)))
		disps = append(disps, float64(n)-2*float64(i))
	}
	return coefs, disps
}

// CentralDerivative returns the nth derivative of f at x, by central
// differences with step h.
func CentralDerivative(f func(float64) (float64, error), x, h float64, n int) (float64, error) {
	coefs, disps := centralCoefficients(n)
	var d float64
	for i, c := range coefs {
		if c == 0 {
			continue
		}
		v, err := f(x + disps[i]*h)
		if err != nil {
			return 0, err
		}
		d += c * v
	}
	return d / math.Pow(h, float64(n)), nil
}

// CentralGradient returns the gradient (Hartree/bohr, flattened) of f at
// coords (A), by central differences with step h bohr (DefaultFDStep if h
// is not positive). If concurrent is true, the displaced energies are
// computed in parallel, so f must be safe to call concurrently.
func CentralGradient(f EnergyFunc, coords *v3.Matrix, h float64, concurrent bool) ([]float64, error) {
	if h <= 0 {
		h = DefaultFDStep
	}
	n := coords.NVecs() * 3
	grad := make([]float64, n)
	errs := make([]error, n)
	comp := func(k int) {
		i, c := k/3, k%3
		x0 := coords.At(i, c)
		displaced := func(x float64) (float64, error) {
			tmp := coords.Clone()
			tmp.Set(i, c, x*chem.Bohr2A)
			return f(tmp)
		}
		grad[k], errs[k] = CentralDerivative(displaced, x0*chem.A2Bohr, h, 1)
	}
	if concurrent {
		var wg sync.WaitGroup
		for k := 0; k < n; k++ {
			wg.Add(1)
			go func(k int) {
				defer wg.Done()
				comp(k)
			}(k)
		}
		wg.Wait()
	} else {
		for k := 0; k < n; k++ {
			comp(k)
		}
	}
	for k, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("opt/CentralGradient: coordinate %d: %w", k, err)
		}
	}
	return grad, nil
}
