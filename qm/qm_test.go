/*
 * qm_test.go, part of godft.
 *
 *
 * Copyright 2012 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
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
 *
 */
/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

package qm

import (
	"errors"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	chem "github.com/rmera/godft"
	"github.com/rmera/godft/opt"
)

const waterBlock = `O 0.000000 0.000000 0.117300
H 0.000000 0.757200 -0.469200
H 0.000000 -0.757200 -0.469200`

func water(Te *testing.T, basis string) *chem.Molecule {
	recs, err := chem.ParseXYZBlock(waterBlock)
	if err != nil {
		Te.Fatal(err)
	}
	mol, err := chem.Build(recs, basis, 0, 0, "")
	if err != nil {
		Te.Fatal(err)
	}
	return mol
}

func hydrogen(Te *testing.T, dist float64) *chem.Molecule {
	recs := []chem.AtomRecord{{Symbol: "H"}, {Symbol: "H", Pos: [3]float64{0, 0, dist}}}
	mol, err := chem.Build(recs, "sto-3g", 0, 0, "")
	if err != nil {
		Te.Fatal(err)
	}
	return mol
}

// fixture copies the file testdata/src to dir/dst.
func fixture(Te *testing.T, src, dir, dst string) {
	data, err := os.ReadFile(filepath.Join("testdata", src))
	if err != nil {
		Te.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, dst), data, 0o644); err != nil {
		Te.Fatal(err)
	}
}

func TestOrcaInput(Te *testing.T) {
	dir := Te.TempDir()
	mol := water(Te, "def2-SVP")
	cases := []struct {
		name  string
		calc  Calc
		wants []string
		nots  []string
	}{
		{"sp", Calc{Method: "B3LYP", Basis: "def2-SVP", MaxIter: 125},
			[]string{"! RKS B3LYP def2-SVP TightSCF\n", "MaxIter 125", "PrintLevel Mini", "* xyz 0 1\n"},
			[]string{"Opt", "EnGrad", "%geom"}},
		{"hf", Calc{Method: "hf", Basis: "def2-SVP", Verbosity: 9},
			[]string{"! RHF HF def2-SVP TightSCF\n", "PrintLevel Maxi"},
			[]string{"%scf"}},
		{"opt", Calc{Method: "PBE0", Basis: "def2-SVP", Optimize: true, OptSteps: 30, Memory: 1000, Verbosity: 4},
			[]string{"TightSCF Opt\n", "%geom\n   MaxIter 30", "%MaxCore 1000", "PrintLevel Normal"},
			[]string{"EnGrad"}},
		{"grad", Calc{Method: "PBE0", Basis: "def2-SVP", Gradient: true},
			[]string{"TightSCF EnGrad\n"},
			nil},
	}
	for _, c := range cases {
		O := NewOrcaHandle()
		O.SetWorkDir(dir)
		O.SetName(c.name)
		O.SetnCPU(4)
		if err := O.BuildInput(mol.Coords(), mol, &c.calc); err != nil {
			Te.Fatalf("%s: %v", c.name, err)
		}
		data, err := os.ReadFile(filepath.Join(dir, c.name+".inp"))
		if err != nil {
			Te.Fatal(err)
		}
		inp := string(data)
		for _, w := range c.wants {
			if !strings.Contains(inp, w) {
				Te.Errorf("%s: input lacks %q:\n%s", c.name, w, inp)
			}
		}
		for _, w := range c.nots {
			if strings.Contains(inp, w) {
				Te.Errorf("%s: input shouldn't contain %q:\n%s", c.name, w, inp)
			}
		}
		if !strings.Contains(inp, "%pal nprocs 4") {
			Te.Errorf("%s: no %%pal block", c.name)
		}
		if n := strings.Count(inp, "\nH "); n != 2 {
			Te.Errorf("%s: %d hydrogens in input", c.name, n)
		}
	}
	O := NewOrcaHandle()
	O.SetWorkDir(dir)
	if err := O.BuildInput(nil, mol, &Calc{}); !errors.Is(err, ErrMissingCharges) {
		Te.Errorf("nil coordinates gave %v", err)
	}
}

func TestOrcaOutput(Te *testing.T) {
	dir := Te.TempDir()
	fixture(Te, "water.out", dir, "water.out")
	fixture(Te, "water.engrad", dir, "water.engrad")
	O := NewOrcaHandle()
	O.SetWorkDir(dir)
	O.SetName("water")
	e, err := O.Energy()
	if err != nil {
		Te.Fatal(err)
	}
	if math.Abs(e+76.320951437865) > 1e-12 {
		Te.Errorf("energy %v", e)
	}
	if it := O.SCFIterations(); it != 11 {
		Te.Errorf("%d SCF iterations, want 11", it)
	}
	g, err := O.Gradient()
	if err != nil {
		Te.Fatal(err)
	}
	if len(g) != 9 || math.Abs(g[2]+0.011023718265) > 1e-12 || math.Abs(g[8]-0.005511859133) > 1e-12 {
		Te.Errorf("gradient %v", g)
	}
	var sum float64
	for i := 2; i < 9; i += 3 {
		sum += g[i]
	}
	if math.Abs(sum) > 1e-9 {
		Te.Errorf("gradient z components add to %v", sum)
	}
	//no optimization in this output
	if _, err := O.OptimizedGeometry(nil); !errors.Is(err, ErrNoGeometry) {
		Te.Errorf("expected ErrNoGeometry, got %v", err)
	}
}

func TestOrcaNotConverged(Te *testing.T) {
	dir := Te.TempDir()
	fixture(Te, "water_noconv.out", dir, "water_noconv.out")
	O := NewOrcaHandle()
	O.SetWorkDir(dir)
	O.SetName("water_noconv")
	_, err := O.Energy()
	var cerr *ConvergenceError
	if !errors.As(err, &cerr) {
		Te.Fatalf("expected a *ConvergenceError, got %v", err)
	}
	if cerr.Program != Orca || !errors.Is(err, ErrNotConverged) || !IsNotConverged(err) {
		Te.Errorf("bad convergence error: %v", err)
	}
}

func TestOrcaOptimizedGeometry(Te *testing.T) {
	dir := Te.TempDir()
	fixture(Te, "water_opt.out", dir, "water_opt.out")
	fixture(Te, "water_opt.xyz", dir, "water_opt.xyz")
	mol := water(Te, "def2-SVP")
	O := NewOrcaHandle()
	O.SetWorkDir(dir)
	O.SetName("water_opt")
	coords, err := O.OptimizedGeometry(mol)
	if err != nil {
		Te.Fatal(err)
	}
	if math.Abs(coords.At(1, 1)-0.76239052148389) > 1e-9 {
		Te.Errorf("bad geometry:\n%v", coords)
	}
	cycles, conv := O.OptCycles()
	if cycles != 3 || !conv {
		Te.Errorf("%d cycles, converged: %v", cycles, conv)
	}
	if it := O.SCFIterations(); it != 5 {
		Te.Errorf("%d SCF iterations in the last cycle, want 5", it)
	}
	e, err := O.Energy()
	if err != nil || math.Abs(e+76.321333187126) > 1e-12 {
		Te.Errorf("last energy %v (%v)", e, err)
	}
}

// TestOrcaWater runs a real ORCA calculation, if ORCA is installed.
func TestOrcaWater(Te *testing.T) {
	O := NewOrcaHandle()
	if _, err := exec.LookPath(O.command); err != nil {
		Te.Skip("ORCA not found")
	}
	if _, err := exec.LookPath(O.converter()); err != nil {
		Te.Skip("orca_2mkl not found")
	}
	O.SetWorkDir(Te.TempDir())
	O.SetName("water")
	mol := water(Te, "def2-svp")
	S, err := Evaluate(O, mol, "b3lyp", 125)
	if err != nil {
		Te.Fatal(err)
	}
	if math.IsNaN(S.Energy) || math.IsInf(S.Energy, 0) || S.Energy >= 0 {
		Te.Errorf("bad energy %v", S.Energy)
	}
	r, c := S.Wavefunction.Coefficients().Dims()
	if r != S.Wavefunction.NAO() || c != S.Wavefunction.NMO() || c < S.Occupied() {
		Te.Errorf("coefficient matrix %dx%d for %d AOs", r, c, S.Wavefunction.NAO())
	}
}

func TestNativeEvaluate(Te *testing.T) {
	N := NewNativeHandle()
	N.SetWorkDir(Te.TempDir())
	N.SetName("h2")
	var b strings.Builder
	N.SetLog(&b)
	mol := hydrogen(Te, 1.4*chem.Bohr2A)
	S, err := Evaluate(N, mol, "hf", 50)
	if err != nil {
		Te.Fatal(err)
	}
	if math.Abs(S.Energy+1.1167) > 1e-3 {
		Te.Errorf("H2 energy %v, want -1.1167", S.Energy)
	}
	if S.Program != Native || S.Method != "hf" || S.Iterations == 0 || !S.Converged {
		Te.Errorf("bad state %+v", S)
	}
	W := S.Wavefunction
	r, c := W.Coefficients().Dims()
	if r != 2 || c != 2 || W.HOMO() != 0 || S.Occupied() != 1 {
		Te.Errorf("coefficient matrix %dx%d, HOMO %d", r, c, W.HOMO())
	}
	if W.Energies[0] >= W.Energies[1] {
		Te.Errorf("MOs not sorted by energy: %v", W.Energies)
	}
	if _, err := os.Stat(filepath.Join(N.workdir, "h2.molden")); err != nil {
		Te.Error(err)
	}
	if !strings.Contains(b.String(), "SCF converged") {
		Te.Errorf("SCF not logged:\n%s", b.String())
	}
}

func TestNativeErrors(Te *testing.T) {
	N := NewNativeHandle()
	N.SetWorkDir(Te.TempDir())
	mol := hydrogen(Te, 0.74)
	_, err := Evaluate(N, mol, "b3lyp", 50)
	if !errors.Is(err, ErrUnsupportedMethod) {
		Te.Errorf("b3lyp gave %v", err)
	}
	var qerr *Error
	if !errors.As(err, &qerr) || len(qerr.Deco) != 2 || qerr.Deco[1] != "qm/Evaluate" {
		Te.Errorf("error not decorated with its callers: %v", err)
	}
	_, err = Evaluate(N, mol, "hf", 1)
	var cerr *ConvergenceError
	if !errors.As(err, &cerr) || !errors.Is(err, ErrNotConverged) {
		Te.Errorf("1 iteration gave %v", err)
	}
	if _, err := N.Gradient(); !errors.Is(err, ErrNoGradient) {
		Te.Errorf("expected ErrNoGradient, got %v", err)
	}
	w := water(Te, "def2-svp")
	if _, err := Evaluate(N, w, "hf", 50); err == nil {
		Te.Error("native engine accepted def2-svp for water")
	}
}

func TestNativeOptimize(Te *testing.T) {
	N := NewNativeHandle()
	dir := Te.TempDir()
	N.SetWorkDir(dir)
	N.SetName("h2_opt")
	mol := hydrogen(Te, 0.80)
	newmol, S, err := EngineOptimize(N, mol, "hf", 50, 50)
	if err != nil {
		Te.Fatal(err)
	}
	c := newmol.Coords()
	if d := c.Distance(0, 1); math.Abs(d-0.712) > 5e-3 {
		Te.Errorf("optimized H-H distance %.4f, want 0.712", d)
	}
	if d := mol.Coords().Distance(0, 1); math.Abs(d-0.80) > 1e-12 {
		Te.Errorf("original molecule modified: %v", d)
	}
	if S.Molecule != newmol || S.Energy > -1.117 {
		Te.Errorf("bad optimized state: E=%v", S.Energy)
	}
	if res := N.OptResult(); res == nil || !res.Converged || res.Steps == 0 {
		Te.Errorf("bad optimization result %+v", res)
	}
	recs, err := chem.XYZFileRead(filepath.Join(dir, "h2_opt.xyz"))
	if err != nil || len(recs) != 2 {
		Te.Errorf("optimized geometry not written: %v", err)
	}
}

func TestGradienter(Te *testing.T) {
	N := NewNativeHandle()
	dir := Te.TempDir()
	mol := hydrogen(Te, 1.4*chem.Bohr2A)
	G := &Gradienter{H: N, Atoms: mol, Calc: Calc{Method: "hf", Basis: "sto-3g"}, WorkDir: dir, Name: "h2"}
	var g opt.Gradienter = G
	e, grad, err := g.EnergyGradient(mol.Coords())
	if err != nil {
		Te.Fatal(err)
	}
	if math.Abs(e+1.1167) > 1e-3 || len(grad) != 6 {
		Te.Fatalf("E=%v gradient %v", e, grad)
	}
	//1.4 bohr is longer than the STO-3G bond
	if grad[5] <= 0 || math.Abs(grad[5]+grad[2]) > 1e-5 {
		Te.Errorf("bad gradient %v", grad)
	}
	if _, err := os.Stat(filepath.Join(dir, "h2_001.molden")); err != nil {
		Te.Error(err)
	}
}
