/*
 * config.go, part of godft.
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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rmera/godft/cube"
	"github.com/rmera/godft/view"
	"gopkg.in/yaml.v3"
)

// Engines and optimizers accepted in the configuration.
const (
	EngineOrca      = "orca"
	EngineNative    = "native"
	OptimizerNative = "native"
	OptimizerEngine = "engine"
)

// Defaults for Config.
const (
	DefaultLabel         = "molecule"
	DefaultFunctional    = "b3lyp"
	DefaultBasis         = "def2-svp"
	DefaultNativeBasis   = "sto-3g"
	DefaultMaxIterations = 125
	DefaultMaxSteps      = 50
	DefaultFrontier      = 3
)

// GridConfig sets the box for the orbital grids.
type GridConfig struct {
	// Points is the number of points per axis
	Points int `yaml:"points"`

	// Margin is the space, in bohr, added around the molecule in every direction
	Margin float64 `yaml:"margin"`
}

// ViewConfig sets the visualization session written at the end of a run.
type ViewConfig struct {
	// Format is "pymol" or "html". An empty format means no session is written.
	Format string `yaml:"format"`

	// Launch opens the session with Command and waits for it to exit
	Launch bool `yaml:"launch"`

	// Command is the viewer program
	Command string `yaml:"command"`

	// Orbital is the 1-based index of the orbital to show. If 0, all exported orbitals are loaded.
	Orbital int `yaml:"orbital"`

	// Surfaces are the isosurfaces drawn for each orbital. The usual blue/red pair if empty.
	Surfaces []view.Surface `yaml:"surfaces"`
}

// Config is a structure containing the parameters for a run. It can be instanced with
// LoadConfig or by "hand". If it is instanced by hand, use SetDefaults and
// Check before using it.
type Config struct {
	// Label names all the output files
	Label string `yaml:"label"`

	// Structure is an inline coordinate block, one "symbol x y z" line per atom, in A
	Structure string `yaml:"structure"`

	// StructureFile is an XYZ file (possibly zstd-compressed), used if Structure is empty
	StructureFile string `yaml:"structure_file"`

	Basis     string `yaml:"basis"`
	Charge    int    `yaml:"charge"`
	Verbosity int    `yaml:"verbosity"`

	// Log is the diagnostic log. It is overwritten each run. Empty means <label>.log in OutDir
	Log string `yaml:"log"`

	// Engine is "orca" or "native"
	Engine        string `yaml:"engine"`
	EngineCommand string `yaml:"engine_command"`

	// WorkDir is where the engine writes its files. OutDir by default
	WorkDir string `yaml:"workdir"`

	Functional    string `yaml:"functional"`
	MaxIterations int    `yaml:"max_iterations"`

	Optimize bool `yaml:"optimize"`

	// Optimizer is "native" (the opt package) or "engine" (the QM program's own optimizer)
	Optimizer string `yaml:"optimizer"`
	MaxSteps  int    `yaml:"max_steps"`

	// Trajectory writes the optimization trajectory as <label>_opt_traj.xyz.zst
	Trajectory bool `yaml:"trajectory"`

	// Plot writes the energy profile of the optimization and the orbital levels
	Plot bool `yaml:"plot"`

	// Orbitals are the 1-based indexes of the orbitals to export
	Orbitals []int `yaml:"orbitals"`

	// Frontier is the number of orbitals on each side of the HOMO-LUMO gap to export
	// when Orbitals is empty
	Frontier int `yaml:"frontier"`

	Grid   GridConfig `yaml:"grid"`
	OutDir string     `yaml:"outdir"`
	View   ViewConfig `yaml:"view"`
}

// LoadConfig opens and decodes the YAML configuration file path,
// sets the defaults and checks the result.
func LoadConfig(path string) (*Config, error) {
	errid := "pipeline/LoadConfig"
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errid, err)
	}
	defer f.Close()
	var c Config
	dec := yaml.NewDecoder(bufio.NewReader(f))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", errid, path, err)
	}
	c.SetDefaults()
	if err := c.Check(); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", errid, path, err)
	}
	return &c, nil
}

// SetDefaults fills the empty fields of c with the default values.
func (c *Config) SetDefaults() {
	if c.Label == "" {
		c.Label = DefaultLabel
	}
	c.Engine = strings.ToLower(c.Engine)
	if c.Engine == "" {
		c.Engine = EngineOrca
	}
	if c.Basis == "" {
		c.Basis = DefaultBasis
		if c.Engine == EngineNative {
			c.Basis = DefaultNativeBasis
		}
	}
	if c.Functional == "" {
		c.Functional = DefaultFunctional
		if c.Engine == EngineNative {
			c.Functional = "hf"
		}
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	c.Optimizer = strings.ToLower(c.Optimizer)
	if c.Optimizer == "" {
		c.Optimizer = OptimizerNative
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if len(c.Orbitals) == 0 && c.Frontier == 0 {
		c.Frontier = DefaultFrontier
	}
	if c.Grid.Points == 0 {
		c.Grid.Points = cube.DefaultPoints
	}
	if c.Grid.Margin == 0 {
		c.Grid.Margin = cube.DefaultMargin
	}
	if c.OutDir == "" {
		c.OutDir = "."
	}
	if c.WorkDir == "" {
		c.WorkDir = c.OutDir
	}
	if c.Log == "" {
		c.Log = filepath.Join(c.OutDir, c.Label+".log")
	}
	c.View.Format = strings.ToLower(c.View.Format)
}

// Check checks if c is correct. It returns an error if a field doesn't meet
// the requirements.
func (c *Config) Check() error {
	if c.Label == "" || strings.ContainsAny(c.Label, `/\ `) {
		return fmt.Errorf("label %q must be non-empty and contain no spaces or path separators", c.Label)
	}
	if (c.Structure == "") == (c.StructureFile == "") {
		return fmt.Errorf("exactly one of structure and structure_file must be given")
	}
	if c.Engine != EngineOrca && c.Engine != EngineNative {
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if c.Optimizer != OptimizerNative && c.Optimizer != OptimizerEngine {
		return fmt.Errorf("unknown optimizer %q", c.Optimizer)
	}
	if c.Verbosity < 0 || c.Verbosity > 9 {
		return fmt.Errorf("verbosity must be between 0 and 9, not %d", c.Verbosity)
	}
	if c.MaxIterations < 0 || c.MaxSteps < 0 {
		return fmt.Errorf("max_iterations and max_steps can't be negative")
	}
	if c.Grid.Points < 2 || c.Grid.Margin < 0 {
		return fmt.Errorf("the grid needs at least 2 points per axis and a non-negative margin")
	}
	for _, v := range c.Orbitals {
		if v < 1 {
			return fmt.Errorf("orbital indexes start at 1, got %d", v)
		}
	}
	if c.Frontier < 0 {
		return fmt.Errorf("frontier can't be negative")
	}
	switch c.View.Format {
	case "", view.PyMOL, view.HTML:
	default:
		return fmt.Errorf("unknown view format %q", c.View.Format)
	}
	if c.View.Orbital < 0 {
		return fmt.Errorf("view orbital can't be negative")
	}
	return nil
}

// Box returns the grid specification for the orbital grids.
func (c *Config) Box() cube.BoxSpec {
	b := cube.DefaultBox()
	if c.Grid.Points > 0 {
		b.Points = c.Grid.Points
	}
	if c.Grid.Margin > 0 {
		b.Margin = c.Grid.Margin
	}
	return b
}
