/*
 * pipeline.go, part of godft.
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

// Package pipeline chains the stages of a calculation: loading a structure,
// building the molecule, computing its energy and orbitals, optionally
// optimizing the geometry, exporting orbitals as cube files, and writing a
// visualization session. The stages run one after the other, each taking
// the result of the previous one.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	chem "github.com/rmera/godft"
	"github.com/rmera/godft/chemplot"
	"github.com/rmera/godft/cube"
	"github.com/rmera/godft/opt"
	"github.com/rmera/godft/qm"
	v3 "github.com/rmera/godft/v3"
	"github.com/rmera/godft/view"
)

// Pipeline runs the stages of a calculation with the settings in Config.
type Pipeline struct {
	Config   *Config
	Log      *Logger
	Handle   qm.Handle
	Exporter *Exporter
}

// Summary contains the results of a complete run.
type Summary struct {
	Molecule *chem.Molecule //the final molecule, optimized if requested
	State    *qm.State
	Opt      *opt.Result //nil if no optimization was requested
	Cubes    []string
	Session  string //the visualization session, if any
}

// NewHandle returns a QM handle for the engine set in c, writing its
// diagnostics to L.
func NewHandle(c *Config, L *Logger) (qm.Handle, error) {
	var h qm.Handle
	switch c.Engine {
	case EngineOrca:
		h = qm.NewOrcaHandle()
	case EngineNative:
		h = qm.NewNativeHandle()
	default:
		return nil, fmt.Errorf("pipeline/NewHandle: unknown engine %q", c.Engine)
	}
	if c.EngineCommand != "" {
		h.SetCommand(c.EngineCommand)
	}
	h.SetWorkDir(c.WorkDir)
	h.SetName(c.Label)
	h.SetLog(L.Detail(SCFLevel))
	return h, nil
}

// New prepares a Pipeline for c, which must have been checked. It creates the
// output and work directories, and the log file, overwriting it.
func New(c *Config) (*Pipeline, error) {
	errid := "pipeline/New"
	for _, d := range []string{c.OutDir, c.WorkDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("%s: %w", errid, err)
		}
	}
	L, err := NewLogger(c.Log, c.Verbosity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errid, err)
	}
	h, err := NewHandle(c, L)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("%s: %w", errid, err)
	}
	return &Pipeline{
		Config:   c,
		Log:      L,
		Handle:   h,
		Exporter: &Exporter{OutDir: c.OutDir, Box: c.Box(), Log: L},
	}, nil
}

// Close closes the log.
func (P *Pipeline) Close() error {
	return P.Log.Close()
}

func (P *Pipeline) path(suffix string) string {
	return filepath.Join(P.Config.OutDir, P.Config.Label+suffix)
}

// Load reads the atoms from the inline structure or from the structure file.
func (P *Pipeline) Load() ([]chem.AtomRecord, error) {
	if P.Config.Structure != "" {
		return chem.ParseXYZBlock(P.Config.Structure)
	}
	return chem.XYZFileRead(P.Config.StructureFile)
}

// Build builds the molecule for the atoms with the settings in the configuration.
func (P *Pipeline) Build(atoms []chem.AtomRecord) (*chem.Molecule, error) {
	return chem.Build(atoms, P.Config.Basis, P.Config.Charge, P.Config.Verbosity, P.Config.Log)
}

// Evaluate computes the energy and orbitals of mol. The engine's files are named
// after name.
func (P *Pipeline) Evaluate(mol *chem.Molecule, name string) (*qm.State, error) {
	c := P.Config
	P.Handle.SetName(name)
	P.Log.Info.Printf("Energy calculation %s: %s/%s with %s, %d atoms", name, c.Functional, mol.Basis(), c.Engine, mol.Len())
	S, err := qm.Evaluate(P.Handle, mol, c.Functional, c.MaxIterations)
	if err != nil {
		P.Log.Error.Printf("Energy calculation %s failed: %v", name, err)
		if qm.IsNotConverged(err) {
			P.Log.Error.Printf("The SCF didn't converge in %d iterations. Try a larger max_iterations", c.MaxIterations)
		}
		return nil, err
	}
	P.Log.Output.Printf("Total energy (%s): %.10f Eh  SCF iterations: %d  HOMO: %d", name, S.Energy, S.Iterations, S.Occupied())
	return S, nil
}

// optResulter is implemented by handles that keep the result of their last optimization.
type optResulter interface {
	OptResult() *opt.Result
}

type optCycler interface {
	OptCycles() (int, bool)
}

// Optimize optimizes the geometry of the molecule in state, with at most maxSteps steps,
// using the optimizer set in the configuration. It returns the new molecule and the
// optimization result. Not reaching convergence is not an error: the last geometry is
// returned, and the result has Converged set to false. The optimized geometry is written
// to <label>_opt.xyz, and, if requested, the trajectory and a plot of the energies.
func (P *Pipeline) Optimize(state *qm.State, maxSteps int) (*chem.Molecule, *opt.Result, error) {
	errid := "pipeline/Optimize"
	c := P.Config
	mol := state.Molecule
	var res *opt.Result
	var err error
	P.Log.Delimiter()
	P.Log.Info.Printf("Geometry optimization with the %s optimizer, at most %d steps", c.Optimizer, maxSteps)
	switch c.Optimizer {
	case OptimizerEngine:
		res, err = P.engineOptimize(state, maxSteps)
	default:
		G := &qm.Gradienter{
			H:       P.Handle,
			Atoms:   mol,
			Calc:    qm.Calc{Method: c.Functional, Basis: mol.Basis(), MaxIter: c.MaxIterations, Verbosity: mol.Verbosity()},
			WorkDir: c.WorkDir,
			Name:    c.Label + "_grad",
		}
		o := opt.DefaultOptions()
		o.MaxSteps = maxSteps
		o.Log = P.Log.DetailLogger(OptStepsLevel)
		res, err = opt.Optimize(G, mol, mol.Coords(), o)
	}
	if err != nil {
		P.Log.Error.Printf("Optimization failed: %v", err)
		return nil, nil, fmt.Errorf("%s: %w", errid, err)
	}
	newmol := mol.WithCoords(res.Coords)
	if res.Converged {
		P.Log.Output.Printf("Optimization converged in %d steps. E= %.10f Eh", res.Steps, res.Energy)
	} else {
		P.Log.Warning.Printf("Optimization not converged after %d steps, the last geometry will be used", res.Steps)
	}
	comment := fmt.Sprintf("%s optimized E= %.10f converged: %v", c.Label, res.Energy, res.Converged)
	if err := chem.XYZFileWrite(P.path("_opt.xyz"), res.Coords, newmol, comment); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", errid, err)
	}
	if c.Trajectory && len(res.Trajectory) > 0 {
		comments := make([]string, len(res.Trajectory))
		for i := range comments {
			comments[i] = fmt.Sprintf("step %d E= %.10f", i, res.Energies[i])
		}
		if err := chem.XYZTrajFileWrite(P.path("_opt_traj.xyz.zst"), res.Trajectory, newmol, comments); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", errid, err)
		}
	}
	if c.Plot && len(res.Energies) > 0 {
		if err := chemplot.EnergyProfile(res.Energies, c.Label+" optimization", P.path("_opt.png")); err != nil {
			P.Log.Warning.Printf("Energy profile not plotted: %v", err)
		}
	}
	return newmol, res, nil
}

// engineOptimize runs the optimizer of the QM program, and puts the results in an opt.Result.
func (P *Pipeline) engineOptimize(state *qm.State, maxSteps int) (*opt.Result, error) {
	c := P.Config
	mol := state.Molecule
	P.Handle.SetName(c.Label + "_engopt")
	newmol, S, err := qm.EngineOptimize(P.Handle, mol, c.Functional, c.MaxIterations, maxSteps)
	if newmol == nil {
		return nil, err
	}
	if r, ok := P.Handle.(optResulter); ok && r.OptResult() != nil {
		return r.OptResult(), nil
	}
	res := &opt.Result{
		Coords:     newmol.Coords(),
		Energy:     S.Energy,
		Converged:  !errors.Is(err, qm.ErrProbableProblem),
		Trajectory: []*v3.Matrix{mol.Coords(), newmol.Coords()},
		Energies:   []float64{state.Energy, S.Energy},
	}
	if err != nil && res.Converged {
		return nil, err
	}
	if cy, ok := P.Handle.(optCycler); ok {
		res.Steps, _ = cy.OptCycles()
	}
	return res, nil
}

// Requests returns the orbital export requests set in the configuration for state.
func (P *Pipeline) Requests(state *qm.State) []ExportRequest {
	c := P.Config
	if len(c.Orbitals) > 0 {
		return Requests(c.Label, c.Orbitals)
	}
	return FrontierRequests(c.Label, state.Occupied(), state.Wavefunction.NMO(), c.Frontier)
}

// Run runs all the stages of the calculation.
func (P *Pipeline) Run() (*Summary, error) {
	c := P.Config
	P.Log.Info.Printf("godft run %s", c.Label)
	atoms, err := P.Load()
	if err != nil {
		P.Log.Error.Print(err)
		return nil, err
	}
	mol, err := P.Build(atoms)
	if err != nil {
		P.Log.Error.Print(err)
		return nil, err
	}
	P.Log.Info.Printf("Molecule: %d atoms, %d electrons, charge %d, basis %s", mol.Len(), mol.Electrons(), mol.Charge(), mol.Basis())
	S, err := P.Evaluate(mol, c.Label)
	if err != nil {
		return nil, err
	}
	sum := &Summary{Molecule: mol, State: S}
	structure := P.path(".xyz")
	if c.Optimize {
		newmol, res, err := P.Optimize(S, c.MaxSteps)
		if err != nil {
			return nil, err
		}
		sum.Opt = res
		P.Log.Delimiter()
		S, err = P.Evaluate(newmol, c.Label+"_opt")
		if err != nil {
			return nil, err
		}
		sum.Molecule, sum.State = newmol, S
		structure = P.path("_opt.xyz")
	} else if c.View.Format != "" {
		if err := chem.XYZFileWrite(structure, mol.Coords(), mol, c.Label); err != nil {
			return nil, err
		}
	}
	if c.Plot {
		if err := chemplot.Levels(S.Wavefunction.Energies, S.Occupied(), c.Label+" orbitals", P.path("_levels.png")); err != nil {
			P.Log.Warning.Printf("Orbital levels not plotted: %v", err)
		}
	}
	P.Log.Delimiter()
	reqs := P.Requests(S)
	if c.View.Orbital > 0 && !hasIndex(reqs, c.View.Orbital) {
		reqs = append(reqs, ExportRequest{Label: c.Label, Index: c.View.Orbital})
	}
	sum.Cubes, err = P.Exporter.ExportAll(S, reqs)
	if err != nil {
		P.Log.Error.Print(err)
		return sum, err
	}
	if c.View.Format == "" {
		return sum, nil
	}
	grids := sum.Cubes
	if c.View.Orbital > 0 {
		grids = []string{filepath.Join(c.OutDir, cube.FileName(c.Label, c.View.Orbital))}
	}
	var surfaces []view.Surface
	if len(c.View.Surfaces) > 0 {
		surfaces = c.View.Surfaces
	}
	vo := &view.Options{Format: c.View.Format, Launch: c.View.Launch, Command: c.View.Command, Stdout: P.Log.Detail(0)}
	sum.Session, err = view.Render(structure, grids, surfaces, vo)
	if err != nil {
		P.Log.Error.Print(err)
		return sum, err
	}
	P.Log.Info.Printf("Visualization session written to %s", sum.Session)
	return sum, nil
}

func hasIndex(reqs []ExportRequest, index int) bool {
	for _, r := range reqs {
		if r.Index == index {
			return true
		}
	}
	return false
}
