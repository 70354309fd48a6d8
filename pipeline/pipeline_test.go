/*
 * pipeline_test.go, part of godft.
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

package pipeline

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	chem "github.com/rmera/godft"
	"github.com/rmera/godft/cube"
)

const h2conf = `label: h2
engine: native
structure: |
  H 0.0 0.0 0.0
  H 0.0 0.0 0.80
verbosity: 4
grid:
  points: 20
  margin: 4.0
`

func writeConfig(Te *testing.T, dir, text string) string {
	Te.Helper()
	path := filepath.Join(dir, "godft.yaml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		Te.Fatal(err)
	}
	return path
}

func TestLoadConfig(Te *testing.T) {
	dir := Te.TempDir()
	c, err := LoadConfig(writeConfig(Te, dir, h2conf+"outdir: "+dir+"\n"))
	if err != nil {
		Te.Fatal(err)
	}
	if c.Label != "h2" || c.Engine != EngineNative || c.Functional != "hf" || c.Basis != DefaultNativeBasis {
		Te.Errorf("Wrong values read or set: %+v", c)
	}
	if c.Grid.Points != 20 || c.Grid.Margin != 4.0 {
		Te.Errorf("Grid not read: %+v", c.Grid)
	}
	if c.Optimizer != OptimizerNative || c.MaxSteps != DefaultMaxSteps || c.MaxIterations != DefaultMaxIterations || c.Frontier != DefaultFrontier {
		Te.Errorf("Defaults not set: %+v", c)
	}
	if c.WorkDir != dir || c.Log != filepath.Join(dir, "h2.log") {
		Te.Errorf("Wrong paths: workdir %s log %s", c.WorkDir, c.Log)
	}
	if _, err := LoadConfig(writeConfig(Te, dir, h2conf+"basiss: sto-3g\n")); err == nil {
		Te.Errorf("Unknown field accepted")
	}
	if _, err := LoadConfig(filepath.Join(dir, "nothere.yaml")); err == nil {
		Te.Errorf("Missing file accepted")
	}
}

func TestConfigDefaults(Te *testing.T) {
	c := &Config{Structure: "O 0 0 0\nH 0 0 1\nH 0 1 0"}
	c.SetDefaults()
	if err := c.Check(); err != nil {
		Te.Fatal(err)
	}
	if c.Engine != EngineOrca || c.Functional != DefaultFunctional || c.Basis != DefaultBasis {
		Te.Errorf("Wrong engine defaults: %s %s %s", c.Engine, c.Functional, c.Basis)
	}
	if c.Label != DefaultLabel || c.OutDir != "." || c.Log != DefaultLabel+".log" {
		Te.Errorf("Wrong output defaults: %s %s %s", c.Label, c.OutDir, c.Log)
	}
	b := c.Box()
	if b.Points != cube.DefaultPoints || b.Margin != cube.DefaultMargin {
		Te.Errorf("Wrong box %+v", b)
	}
	if b := (&Config{Grid: GridConfig{Points: 30}}).Box(); b.Points != 30 || b.Margin != cube.DefaultMargin {
		Te.Errorf("Wrong box for an unchecked configuration %+v", b)
	}
	c = &Config{Structure: "H 0 0 0\nH 0 0 0.7", Orbitals: []int{1}}
	c.SetDefaults()
	if c.Frontier != 0 {
		Te.Errorf("Frontier set when orbitals are given: %d", c.Frontier)
	}
}

func TestConfigCheck(Te *testing.T) {
	tests := []struct {
		name string
		mod  func(c *Config)
	}{
		{"label", func(c *Config) { c.Label = "my mol" }},
		{"nostructure", func(c *Config) { c.Structure = "" }},
		{"twostructures", func(c *Config) { c.StructureFile = "h2.xyz" }},
		{"engine", func(c *Config) { c.Engine = "gaussian" }},
		{"optimizer", func(c *Config) { c.Optimizer = "lbfgs" }},
		{"verbosity", func(c *Config) { c.Verbosity = 10 }},
		{"steps", func(c *Config) { c.MaxSteps = -1 }},
		{"grid", func(c *Config) { c.Grid.Points = 1 }},
		{"orbital", func(c *Config) { c.Orbitals = []int{0, 1} }},
		{"frontier", func(c *Config) { c.Frontier = -2 }},
		{"view", func(c *Config) { c.View.Format = "vmd" }},
		{"vieworbital", func(c *Config) { c.View.Orbital = -1 }},
	}
	for _, t := range tests {
		c := &Config{Structure: "H 0 0 0\nH 0 0 0.7", Engine: EngineNative}
		c.SetDefaults()
		t.mod(c)
		if err := c.Check(); err == nil {
			Te.Errorf("%s: bad configuration accepted", t.name)
		}
	}
}

func TestLogger(Te *testing.T) {
	path := filepath.Join(Te.TempDir(), "test.log")
	if err := os.WriteFile(path, []byte("old contents\n"), 0o644); err != nil {
		Te.Fatal(err)
	}
	L, err := NewLogger(path, 3)
	if err != nil {
		Te.Fatal(err)
	}
	L.Info.Print("starting")
	L.Output.Print("result")
	L.Detail(SCFLevel).Write([]byte("scf details\n"))
	L.Detail(OptStepsLevel).Write([]byte("opt details\n"))
	if L.DetailLogger(SCFLevel) != nil || L.DetailLogger(OptStepsLevel) == nil {
		Te.Errorf("Wrong detail loggers for verbosity 3")
	}
	L.Delimiter()
	if err := L.Close(); err != nil {
		Te.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		Te.Fatal(err)
	}
	text := string(b)
	for _, v := range []string{"INFO: ", "starting", "result\n", "opt details", strings.Repeat("-", 70)} {
		if !strings.Contains(text, v) {
			Te.Errorf("%q not in the log:\n%s", v, text)
		}
	}
	for _, v := range []string{"old contents", "scf details"} {
		if strings.Contains(text, v) {
			Te.Errorf("%q should not be in the log:\n%s", v, text)
		}
	}
	L, err = NewLogger("", 9)
	if err != nil {
		Te.Fatal(err)
	}
	L.Info.Print("nowhere")
	if err := L.Close(); err != nil {
		Te.Error(err)
	}
}

func TestFrontierRequests(Te *testing.T) {
	tests := []struct {
		nocc, nmo, window int
		want              []int
	}{
		{21, 100, 3, []int{19, 20, 21, 22, 23, 24}},
		{1, 2, 3, []int{1, 2}},
		{5, 5, 2, []int{4, 5}},
		{5, 10, 1, []int{5, 6}},
		{5, 10, 0, nil},
	}
	for _, t := range tests {
		reqs := FrontierRequests("mol", t.nocc, t.nmo, t.window)
		if len(reqs) != len(t.want) {
			Te.Errorf("nocc %d nmo %d window %d: got %v, want %v", t.nocc, t.nmo, t.window, reqs, t.want)
			continue
		}
		for i, r := range reqs {
			if r.Index != t.want[i] || r.Label != "mol" {
				Te.Errorf("nocc %d nmo %d window %d: got %v, want %v", t.nocc, t.nmo, t.window, reqs, t.want)
				break
			}
		}
	}
	reqs := Requests("mol", []int{3, 1})
	if len(reqs) != 2 || reqs[0].Index != 3 || reqs[1].Index != 1 {
		Te.Errorf("Wrong requests %v", reqs)
	}
}

func newTestPipeline(Te *testing.T, extra string) *Pipeline {
	Te.Helper()
	dir := Te.TempDir()
	c, err := LoadConfig(writeConfig(Te, dir, h2conf+"outdir: "+dir+"\n"+extra))
	if err != nil {
		Te.Fatal(err)
	}
	P, err := New(c)
	if err != nil {
		Te.Fatal(err)
	}
	Te.Cleanup(func() { P.Close() })
	return P
}

func TestExport(Te *testing.T) {
	P := newTestPipeline(Te, "")
	atoms, err := P.Load()
	if err != nil {
		Te.Fatal(err)
	}
	mol, err := P.Build(atoms)
	if err != nil {
		Te.Fatal(err)
	}
	S, err := P.Evaluate(mol, "h2")
	if err != nil {
		Te.Fatal(err)
	}
	for _, i := range []int{0, 3, -1} {
		_, err := P.Exporter.Export(S, "h2", i)
		if !errors.Is(err, ErrOrbitalRange) {
			Te.Errorf("orbital %d: expected ErrOrbitalRange, got %v", i, err)
		}
	}
	path, err := P.Exporter.Export(S, "h2", 1)
	if err != nil {
		Te.Fatal(err)
	}
	if filepath.Base(path) != "h2_mol_1.cub" {
		Te.Errorf("Wrong cube name %s", path)
	}
	//exporting again overwrites the file
	if _, err := P.Exporter.Export(S, "h2", 1); err != nil {
		Te.Fatal(err)
	}
	G, err := cube.ReadFile(path)
	if err != nil {
		Te.Fatal(err)
	}
	if G.N != [3]int{20, 20, 20} || len(G.Atoms) != 2 {
		Te.Errorf("Wrong grid read: %v points, %d atoms", G.N, len(G.Atoms))
	}
	if !strings.HasPrefix(G.Comments[0], "h2 orbital 1") {
		Te.Errorf("Wrong cube comment %q", G.Comments[0])
	}
}

func checkFiles(Te *testing.T, dir string, names ...string) {
	Te.Helper()
	for _, v := range names {
		if _, err := os.Stat(filepath.Join(dir, v)); err != nil {
			Te.Errorf("Expected file %s: %v", v, err)
		}
	}
}

func h2Distance(mol *chem.Molecule) float64 {
	c := mol.Coords()
	var d2 float64
	for j := 0; j < 3; j++ {
		d := c.At(1, j) - c.At(0, j)
		d2 += d * d
	}
	return math.Sqrt(d2)
}

func TestRun(Te *testing.T) {
	P := newTestPipeline(Te, "optimize: true\ntrajectory: true\nplot: true\nview:\n  format: pymol\n")
	sum, err := P.Run()
	if err != nil {
		Te.Fatal(err)
	}
	dir := P.Config.OutDir
	if sum.Opt == nil || !sum.Opt.Converged {
		Te.Fatalf("Optimization not done or not converged: %+v", sum.Opt)
	}
	if d := h2Distance(sum.Molecule); math.Abs(d-0.712) > 5e-3 {
		Te.Errorf("Optimized H-H distance %.4f, expected about 0.712", d)
	}
	if sum.State.Energy > -1.117 {
		Te.Errorf("Energy of the optimized molecule too high: %.6f", sum.State.Energy)
	}
	checkFiles(Te, dir, "h2.log", "h2_opt.xyz", "h2_opt_traj.xyz.zst", "h2_opt.png", "h2_levels.png", "h2_mol_1.cub", "h2_mol_2.cub", "h2_opt.pml")
	if len(sum.Cubes) != 2 || sum.Session != filepath.Join(dir, "h2_opt.pml") {
		Te.Errorf("Wrong summary: cubes %v session %s", sum.Cubes, sum.Session)
	}
	frames, err := chem.XYZTrajFileRead(filepath.Join(dir, "h2_opt_traj.xyz.zst"))
	if err != nil {
		Te.Fatal(err)
	}
	if len(frames) != len(sum.Opt.Trajectory) || len(frames) < 2 {
		Te.Errorf("Wrong trajectory: %d frames, %d in the result", len(frames), len(sum.Opt.Trajectory))
	}
	b, err := os.ReadFile(filepath.Join(dir, "h2.log"))
	if err != nil {
		Te.Fatal(err)
	}
	log := string(b)
	for _, v := range []string{"Total energy (h2)", "Total energy (h2_opt)", "Optimization converged", "Visualization session written"} {
		if !strings.Contains(log, v) {
			Te.Errorf("%q not in the log", v)
		}
	}
}

func TestRunEngineOptimizer(Te *testing.T) {
	P := newTestPipeline(Te, "optimize: true\noptimizer: engine\norbitals: [1]\n")
	sum, err := P.Run()
	if err != nil {
		Te.Fatal(err)
	}
	if sum.Opt == nil || !sum.Opt.Converged {
		Te.Fatalf("Optimization not done or not converged: %+v", sum.Opt)
	}
	if d := h2Distance(sum.Molecule); math.Abs(d-0.712) > 5e-3 {
		Te.Errorf("Optimized H-H distance %.4f, expected about 0.712", d)
	}
	if len(sum.Cubes) != 1 || sum.Session != "" {
		Te.Errorf("Wrong summary: cubes %v session %q", sum.Cubes, sum.Session)
	}
	checkFiles(Te, P.Config.OutDir, "h2_opt.xyz", "h2_mol_1.cub")
}

func TestRunErrors(Te *testing.T) {
	P := newTestPipeline(Te, "orbitals: [3]\n")
	_, err := P.Run()
	if !errors.Is(err, ErrOrbitalRange) {
		Te.Errorf("Expected ErrOrbitalRange, got %v", err)
	}
	dir := Te.TempDir()
	c := &Config{StructureFile: filepath.Join(dir, "missing.xyz"), Engine: EngineNative, OutDir: dir}
	c.SetDefaults()
	if err := c.Check(); err != nil {
		Te.Fatal(err)
	}
	P, err = New(c)
	if err != nil {
		Te.Fatal(err)
	}
	defer P.Close()
	if _, err := P.Run(); err == nil {
		Te.Errorf("Missing structure file accepted")
	}
}

func TestRunNotConverged(Te *testing.T) {
	P := newTestPipeline(Te, "max_iterations: 1\n")
	_, err := P.Run()
	if err == nil {
		Te.Fatal("SCF with one iteration reported as converged")
	}
	P.Close()
	b, err := os.ReadFile(P.Config.Log)
	if err != nil {
		Te.Fatal(err)
	}
	if !strings.Contains(string(b), "didn't converge in 1 iterations") {
		Te.Errorf("no convergence hint in the log:\n%s", b)
	}
}
