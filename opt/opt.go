/*
 * opt.go, part of godft.
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

// Package opt implements a trust-region quasi-Newton geometry optimizer in
// Cartesian coordinates. The initial Hessian is a simple model built from the
// bonds in the molecule, and it is improved with BFGS updates.
package opt

import (
	"fmt"
	"log"
	"math"

	chem "github.com/rmera/godft"
	v3 "github.com/rmera/godft/v3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Gradienter is anything that can give the energy (Hartree) and the
// gradient (Hartree/bohr, flattened as x1,y1,z1,x2...) for a set of
// coordinates in A.
type Gradienter interface {
	EnergyGradient(coords *v3.Matrix) (float64, []float64, error)
}

// Options for the optimizer. Lengths are in bohr, energies in Hartree.
type Options struct {
	MaxSteps    int
	TrustRadius float64 //initial trust radius
	MaxTrust    float64
	MinTrust    float64
	EnergyTol   float64
	RMSGrad     float64
	MaxGrad     float64
	RMSDisp     float64
	MaxDisp     float64
	BondFactor  float64     //see chem.Bonds
	Log         *log.Logger //if not nil, each step is reported here
}

// DefaultOptions returns the default options.
func DefaultOptions() *Options {
	return &Options{
		MaxSteps:    50,
		TrustRadius: 0.3,
		MaxTrust:    1.0,
		MinTrust:    1e-3,
		EnergyTol:   1e-6,
		RMSGrad:     3e-4,
		MaxGrad:     4.5e-4,
		RMSDisp:     1.2e-3,
		MaxDisp:     1.8e-3,
		BondFactor:  chem.BondFactor,
	}
}

// Result of an optimization. Coords are in A.
type Result struct {
	Coords     *v3.Matrix
	Energy     float64
	Gradient   []float64
	Steps      int //accepted steps
	Converged  bool
	Trajectory []*v3.Matrix //the starting geometry and every accepted one
	Energies   []float64    //energies for the Trajectory geometries
}

// Force constants for the model Hessian, Hartree/bohr^2.
const (
	bondForceConstant = 0.45
	baseForceConstant = 0.05
)

// ModelHessian returns a simple Hessian (Hartree/bohr^2) for the atoms: a
// stiff spring along each bond found by chem.Bonds, and a small constant
// on the diagonal.
func ModelHessian(atoms chem.Atomer, coords *v3.Matrix, bondFactor float64) (*mat.SymDense, error) {
	n := 3 * coords.NVecs()
	H := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		H.SetSym(i, i, baseForceConstant)
	}
	bonds, err := chem.Bonds(coords, atoms, bondFactor)
	if err != nil {
		return nil, fmt.Errorf("opt/ModelHessian: %w", err)
	}
	for _, b := range bonds {
		a1, a2 := coords.Vec(b.At1), coords.Vec(b.At2)
		var u [3]float64
		for k := range u {
			u[k] = (a2[k] - a1[k]) / b.Dist
		}
		for k := 0; k < 3; k++ {
			for l := 0; l < 3; l++ {
				v := bondForceConstant * u[k] * u[l]
				i1, j1 := 3*b.At1+k, 3*b.At1+l
				i2, j2 := 3*b.At2+k, 3*b.At2+l
				if i1 <= j1 {
					H.SetSym(i1, j1, H.At(i1, j1)+v)
					H.SetSym(i2, j2, H.At(i2, j2)+v)
				}
				H.SetSym(i1, j2, H.At(i1, j2)-v)
			}
		}
	}
	return H, nil
}

// rms returns the root mean square of v.
func rms(v []float64) float64 {
	sq := make([]float64, len(v))
	floats.MulTo(sq, v, v)
	return math.Sqrt(stat.Mean(sq, nil))
}

func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

func (o *Options) gradientConverged(g []float64) bool {
	return rms(g) < o.RMSGrad && maxAbs(g) < o.MaxGrad
}

func (o *Options) logf(format string, a ...interface{}) {
	if o.Log != nil {
		o.Log.Printf(format, a...)
	}
}

func toMatrix(x []float64) *v3.Matrix {
	c := make([]float64, len(x))
	floats.ScaleTo(c, chem.Bohr2A, x)
	m, err := v3.NewMatrix(c)
	if err != nil {
		panic(err) //can't happen, x always comes from a v3.Matrix
	}
	return m
}

// Optimize minimizes the energy given by g, starting from the coordinates start (A),
// for the given atoms. If o is nil, DefaultOptions are used. Non-convergence
// is reported in the Result, not as an error. If the starting geometry already meets
// the gradient criteria, no steps are taken.
func Optimize(g Gradienter, atoms chem.Atomer, start *v3.Matrix, o *Options) (*Result, error) {
	errid := "opt/Optimize"
	if o == nil {
		o = DefaultOptions()
	}
	if start.NVecs() != atoms.Len() {
		return nil, fmt.Errorf("%s: %d coordinates for %d atoms", errid, start.NVecs(), atoms.Len())
	}
	H, err := ModelHessian(atoms, start, o.BondFactor)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errid, err)
	}
	x := start.Flat()
	floats.Scale(chem.A2Bohr, x)
	e, grad, err := g.EnergyGradient(start)
	if err != nil {
		return nil, fmt.Errorf("%s: initial point: %w", errid, err)
	}
	if len(grad) != len(x) {
		return nil, fmt.Errorf("%s: gradient with %d elements for %d coordinates", errid, len(grad), len(x))
	}
	res := &Result{
		Trajectory: []*v3.Matrix{start.Clone()},
		Energies:   []float64{e},
	}
	o.logf("Optimization start. E= %.10f  RMS grad= %.3e  max grad= %.3e", e, rms(grad), maxAbs(grad))
	if o.gradientConverged(grad) {
		res.Coords, res.Energy, res.Gradient, res.Converged = start.Clone(), e, grad, true
		o.logf("Starting geometry is already a stationary point")
		return res, nil
	}
	trust := o.TrustRadius
	for it := 1; it <= o.MaxSteps; it++ {
		s, err := trustRegionStep(H, grad, trust)
		if err != nil {
			return nil, fmt.Errorf("%s: step %d: %w", errid, it, err)
		}
		xn := make([]float64, len(x))
		floats.AddTo(xn, x, s)
		cn := toMatrix(xn)
		en, gn, err := g.EnergyGradient(cn)
		if err != nil {
			return nil, fmt.Errorf("%s: step %d: %w", errid, it, err)
		}
		de := en - e
		pred := predicted(H, grad, s)
		ratio := de / pred
		slen := floats.Norm(s, 2)
		switch {
		case ratio < 0.25:
			trust = math.Max(trust/4, o.MinTrust)
		case ratio > 0.75 && slen > 0.9*trust:
			trust = math.Min(2*trust, o.MaxTrust)
		}
		if ratio < 0 && de > 0 {
			o.logf("Step %3d rejected. E= %.10f  dE= %.3e  ratio= %.3f  new trust= %.4f", it, en, de, ratio, trust)
			continue
		}
		bfgs(H, s, gn, grad)
		x, e, grad = xn, en, gn
		res.Steps++
		res.Trajectory = append(res.Trajectory, cn)
		res.Energies = append(res.Energies, e)
		o.logf("Step %3d  E= %.10f  dE= %.3e  RMS grad= %.3e  max grad= %.3e  RMS disp= %.3e  trust= %.4f",
			it, e, de, rms(grad), maxAbs(grad), rms(s), trust)
		if math.Abs(de) < o.EnergyTol && o.gradientConverged(grad) && rms(s) < o.RMSDisp && maxAbs(s) < o.MaxDisp {
			res.Converged = true
			break
		}
	}
	res.Coords, res.Energy, res.Gradient = toMatrix(x), e, grad
	if res.Converged {
		o.logf("Optimization converged in %d steps. E= %.10f", res.Steps, e)
	} else {
		o.logf("Optimization did not converge in %d iterations", o.MaxSteps)
	}
	return res, nil
}

// predicted is the energy change for the step s in the quadratic model.
func predicted(H *mat.SymDense, g, s []float64) float64 {
	sv := mat.NewVecDense(len(s), s)
	var hs mat.VecDense
	hs.MulVec(H, sv)
	return floats.Dot(g, s) + 0.5*mat.Dot(sv, &hs)
}

// bfgs updates H in place with the step s and the gradients gn (new) and g (old).
// The update is skipped if it would not keep H positive definite.
func bfgs(H *mat.SymDense, s, gn, g []float64) {
	n := len(s)
	y := make([]float64, n)
	floats.SubTo(y, gn, g)
	ys := floats.Dot(y, s)
	sv := mat.NewVecDense(n, s)
	var hs mat.VecDense
	hs.MulVec(H, sv)
	shs := mat.Dot(sv, &hs)
	if ys <= 1e-10 || shs <= 1e-10 {
		return
	}
	yv := mat.NewVecDense(n, y)
	H.SymRankOne(H, 1/ys, yv)
	H.SymRankOne(H, -1/shs, &hs)
}

// trustRegionStep returns the step that minimizes the quadratic model
// within a sphere of radius trust, shifting the Hessian eigenvalues when
// the Newton step is too long or H is not positive definite.
func trustRegionStep(H *mat.SymDense, g []float64, trust float64) ([]float64, error) {
	n := len(g)
	var es mat.EigenSym
	if ok := es.Factorize(H, true); !ok {
		return nil, fmt.Errorf("Hessian eigendecomposition failed")
	}
	vals := es.Values(nil)
	var V mat.Dense
	es.VectorsTo(&V)
	gt := mat.NewVecDense(n, nil)
	gt.MulVec(V.T(), mat.NewVecDense(n, g))
	steplen := func(shift float64) float64 {
		var s float64
		for i, h := range vals {
			d := gt.AtVec(i) / (h + shift)
			s += d * d
		}
		return math.Sqrt(s)
	}
	shift := 0.0
	if vals[0] <= 1e-8 || steplen(0) > trust {
		//bisection for the shift that gives a step of length trust
		lo := math.Max(0, -vals[0]) + 1e-8
		hi := lo + 1
		for steplen(hi) > trust {
			hi *= 2
		}
		for i := 0; i < 100; i++ {
			mid := 0.5 * (lo + hi)
			if steplen(mid) > trust {
				lo = mid
			} else {
				hi = mid
			}
		}
		shift = hi
	}
	st := mat.NewVecDense(n, nil)
	for i, h := range vals {
		st.SetVec(i, -gt.AtVec(i)/(h+shift))
	}
	s := mat.NewVecDense(n, nil)
	s.MulVec(&V, st)
	return s.RawVector().Data, nil
}
