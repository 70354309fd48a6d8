/*
 * orca.go, part of godft.
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
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	chem "github.com/rmera/godft"
	"github.com/rmera/godft/molden"
	v3 "github.com/rmera/godft/v3"
)

// OrcaHandle runs calculations with the ORCA program.
// Note that the default methods and basis are NOT considered part of the API, so they can always change.
type OrcaHandle struct {
	defmethod string
	defbasis  string
	command   string
	inputname string
	workdir   string
	nCPU      int
	log       io.Writer
	maxiter   int
	out       *orcaOutput
}

// NewOrcaHandle returns an OrcaHandle with the default settings.
func NewOrcaHandle() *OrcaHandle {
	run := new(OrcaHandle)
	run.SetDefaults()
	return run
}

//OrcaHandle methods

// SetnCPU sets the number of CPU to be used
func (O *OrcaHandle) SetnCPU(cpu int) {
	O.nCPU = cpu
}

func (O *OrcaHandle) SetName(name string) {
	O.inputname = name
}

func (O *OrcaHandle) SetWorkDir(dir string) {
	O.workdir = dir
}

func (O *OrcaHandle) SetLog(w io.Writer) {
	O.log = w
}

func (O *OrcaHandle) SetCommand(name string) {
	O.command = name
}

// Program returns the name of the QM program.
func (O *OrcaHandle) Program() string { return Orca }

/*SetDefaults sets defaults for ORCA calculation. Default is a single-point at
B3LYP/def2-SVP, and all the available CPU with a max of
8. The ORCA command is set to $ORCA_PATH/orca, at least in
unix.*/
func (O *OrcaHandle) SetDefaults() {
	O.defmethod = "B3LYP"
	O.defbasis = "def2-SVP"
	O.command = os.ExpandEnv("${ORCA_PATH}/orca")
	if O.command == "/orca" { //if ORCA_PATH was not defined
		O.command = "orca"
	}
	O.nCPU = runtime.NumCPU()
	if O.nCPU > 8 {
		O.nCPU = 8
	}
	O.inputname = "godft"
}

// path returns the path, in the working directory, of a file named inputname+ext.
func (O *OrcaHandle) path(ext string) string {
	return filepath.Join(O.workdir, O.inputname+ext)
}

func orcaPrintLevel(verbosity int) string {
	switch {
	case verbosity <= 2:
		return "Mini"
	case verbosity <= 6:
		return "Normal"
	default:
		return "Maxi"
	}
}

// BuildInput builds an input for ORCA based int the data in atoms, coords and C.
// returns only error.
func (O *OrcaHandle) BuildInput(coords *v3.Matrix, atoms chem.AtomMultiCharger, Q *Calc) error {
	errid := "qm/OrcaHandle.BuildInput"
	if atoms == nil || coords == nil {
		return newError(ErrMissingCharges, Orca, "", "", errid)
	}
	if coords.NVecs() != atoms.Len() {
		return newError(ErrMissingCharges, Orca, "", fmt.Sprintf("%d coordinates for %d atoms", coords.NVecs(), atoms.Len()), errid)
	}
	if atoms.Multi() != 1 {
		return newError(ErrUnsupportedMethod, Orca, "", "only closed-shell calculations are supported", errid)
	}
	basis := Q.Basis
	if basis == "" {
		log.Printf("no basis set assigned for ORCA calculation, will use the default %s", O.defbasis)
		basis = O.defbasis
	}
	method := Q.Method
	if method == "" {
		log.Printf("no method assigned for ORCA calculation, will use the default %s", O.defmethod)
		method = O.defmethod
	}
	ref := "RKS"
	if m := strings.ToLower(method); m == "hf" || m == "rhf" {
		ref, method = "RHF", "HF"
	}
	opt := ""
	if Q.Optimize {
		opt = "Opt"
	}
	grad := ""
	if Q.Gradient && !Q.Optimize {
		grad = "EnGrad"
	}
	pal := ""
	if O.nCPU > 1 {
		pal = fmt.Sprintf("%%pal nprocs %d\n   end\n", O.nCPU)
	}
	mem := ""
	if Q.Memory != 0 {
		mem = fmt.Sprintf("%%MaxCore %d\n", Q.Memory)
	}
	O.maxiter = Q.MaxIter
	scf := ""
	if Q.MaxIter > 0 {
		scf = fmt.Sprintf("%%scf\n   MaxIter %d\n   end\n", Q.MaxIter)
	}
	geom := ""
	if Q.Optimize && Q.OptSteps > 0 {
		geom = fmt.Sprintf("%%geom\n   MaxIter %d\n   end\n", Q.OptSteps)
	}
	MainOptions := []string{"!", ref, method, basis, "TightSCF", opt, grad}
	mainline := strings.Join(strings.Fields(strings.Join(MainOptions, " ")), " ") + "\n"
	if O.inputname == "" {
		O.inputname = "godft"
	}
	file, err := os.Create(O.path(".inp"))
	if err != nil {
		return newError(ErrCantInput, Orca, O.path(".inp"), err.Error(), errid)
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	fmt.Fprint(w, mainline)
	fmt.Fprintf(w, "%%output\n   PrintLevel %s\n   end\n", orcaPrintLevel(Q.Verbosity))
	fmt.Fprint(w, scf)
	fmt.Fprint(w, geom)
	fmt.Fprint(w, pal)
	fmt.Fprint(w, mem)
	fmt.Fprint(w, "\n")
	//Now the type of coords, charge and multiplicity
	fmt.Fprintf(w, "* xyz %d %d\n", atoms.Charge(), atoms.Multi())
	for i := 0; i < atoms.Len(); i++ {
		fmt.Fprintf(w, "%-2s  %12.6f%12.6f%12.6f\n", atoms.Atom(i).Symbol, coords.At(i, 0), coords.At(i, 1), coords.At(i, 2))
	}
	fmt.Fprintf(w, "*\n")
	if err := w.Flush(); err != nil {
		return newError(ErrCantInput, Orca, O.path(".inp"), err.Error(), errid)
	}
	return nil
}

// Run runs the command given by the string O.command
// it waits or not for the result depending on wait.
// Not waiting for results works
// only for unix-compatible systems, as it uses sh and nohup.
// When waiting, the output is also copied to the log writer, and
// an SCF that doesn't converge gives a *ConvergenceError.
func (O *OrcaHandle) Run(wait bool) (err error) {
	errid := "qm/OrcaHandle.Run"
	O.out = nil
	inp := O.inputname + ".inp"
	if !wait {
		command := exec.Command("sh", "-c", "nohup "+O.command+fmt.Sprintf(" %s > %s.out &", inp, O.inputname))
		command.Dir = O.workdir
		if err := command.Start(); err != nil {
			return newError(ErrNotRunning, Orca, inp, err.Error(), errid)
		}
		return nil
	}
	out, err := os.Create(O.path(".out"))
	if err != nil {
		return newError(ErrNotRunning, Orca, O.path(".out"), err.Error(), errid)
	}
	defer out.Close()
	command := exec.Command(O.command, inp)
	command.Dir = O.workdir
	command.Stdout = out
	if O.log != nil {
		command.Stdout = io.MultiWriter(out, O.log)
		command.Stderr = O.log
	}
	runerr := command.Run()
	o, err := O.output()
	if err == nil && o.scfFailed {
		return &ConvergenceError{Program: Orca, Iterations: O.maxiter, Energy: o.energy, Cause: runerr}
	}
	if runerr != nil {
		return newError(ErrNotRunning, Orca, inp, runerr.Error(), errid)
	}
	return nil
}

// orcaOutput holds what we need from an ORCA output file.
type orcaOutput struct {
	energy        float64
	hasEnergy     bool
	scfFailed     bool
	scfIterations int //for the last SCF
	optConverged  bool
	optCycles     int
	normal        bool //ORCA terminated normally
}

func parseOrcaOutput(r io.Reader) (*orcaOutput, error) {
	o := new(orcaOutput)
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		line := s.Text()
		switch {
		case strings.Contains(line, "FINAL SINGLE POINT ENERGY"):
			fields := strings.Fields(line)
			e, err := strconv.ParseFloat(fields[len(fields)-1], 64)
			if err != nil {
				return nil, fmt.Errorf("bad energy line %q: %w", line, err)
			}
			o.energy, o.hasEnergy = e, true
		case strings.Contains(line, "SCF NOT CONVERGED"):
			o.scfFailed = true
		case strings.Contains(line, "SCF CONVERGED AFTER"):
			fields := strings.Fields(line)
			for i, f := range fields {
				if f == "AFTER" && i+1 < len(fields) {
					o.scfIterations, _ = strconv.Atoi(fields[i+1])
				}
			}
		case strings.Contains(line, "GEOMETRY OPTIMIZATION CYCLE"):
			o.optCycles++
		case strings.Contains(line, "THE OPTIMIZATION HAS CONVERGED"):
			o.optConverged = true
		case strings.Contains(line, "ORCA TERMINATED NORMALLY"):
			o.normal = true
		}
	}
	return o, s.Err()
}

// output parses the output of the last calculation, once.
func (O *OrcaHandle) output() (*orcaOutput, error) {
	if O.out != nil {
		return O.out, nil
	}
	f, err := os.Open(O.path(".out"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	o, err := parseOrcaOutput(f)
	if err != nil {
		return nil, err
	}
	O.out = o
	return o, nil
}

// SCFIterations returns the number of iterations of the last SCF
// in the calculation, or 0 if it can't be read.
func (O *OrcaHandle) SCFIterations() int {
	o, err := O.output()
	if err != nil {
		return 0
	}
	return o.scfIterations
}

// OptCycles returns the number of geometry optimization cycles in the last
// calculation, and whether the optimization converged.
func (O *OrcaHandle) OptCycles() (int, bool) {
	o, err := O.output()
	if err != nil {
		return 0, false
	}
	return o.optCycles, o.optConverged
}

/*OptimizedGeometry reads the latest geometry from an ORCA optimization. Returns the
  geometry or error. Returns the geometry AND error if the geometry read
  is not the product of a correctly ended and converged ORCA optimization. In this case
  the error wraps ErrProbableProblem*/
func (O *OrcaHandle) OptimizedGeometry(atoms chem.Atomer) (*v3.Matrix, error) {
	errid := "qm/OrcaHandle.OptimizedGeometry"
	var err error
	o, err1 := O.output()
	if err1 != nil || !o.normal {
		err = newError(ErrProbableProblem, Orca, O.path(".out"), "ORCA did not terminate normally", errid)
	} else if !o.optConverged {
		err = newError(ErrProbableProblem, Orca, O.path(".out"), fmt.Sprintf("optimization not converged after %d cycles", o.optCycles), errid)
	}
	geofile := O.path(".xyz")
	recs, err1 := chem.XYZFileRead(geofile)
	if err1 != nil {
		return nil, newError(ErrNoGeometry, Orca, geofile, err1.Error(), errid)
	}
	if atoms != nil && len(recs) != atoms.Len() {
		return nil, newError(ErrNoGeometry, Orca, geofile, fmt.Sprintf("%d atoms in file, %d expected", len(recs), atoms.Len()), errid)
	}
	coords := v3.Zeros(len(recs))
	for i, v := range recs {
		coords.SetVec(i, v.Pos)
	}
	return coords, err //the error indicates whether the structure is trusty (normal calculation) or not
}

// Energy gets the energy (Hartree) of a previous Orca calculation.
// Returns error if problem, and also if the energy returned that is product of an
// abnormally-terminated ORCA calculation. (in this case the error wraps ErrProbableProblem)
func (O *OrcaHandle) Energy() (float64, error) {
	errid := "qm/OrcaHandle.Energy"
	o, err := O.output()
	if err != nil {
		return 0, newError(ErrNoEnergy, Orca, O.path(".out"), err.Error(), errid)
	}
	if o.scfFailed {
		return o.energy, &ConvergenceError{Program: Orca, Iterations: O.maxiter, Energy: o.energy}
	}
	if !o.hasEnergy {
		return 0, newError(ErrNoEnergy, Orca, O.path(".out"), "", errid)
	}
	if !o.normal {
		return o.energy, newError(ErrProbableProblem, Orca, O.path(".out"), "ORCA did not terminate normally", errid)
	}
	return o.energy, nil
}

// readEngrad reads the gradient (Hartree/bohr) from an ORCA .engrad file.
func readEngrad(r io.Reader) (float64, []float64, error) {
	s := bufio.NewScanner(r)
	var vals []string
	for s.Scan() {
		l := strings.TrimSpace(s.Text())
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		vals = append(vals, l)
	}
	if err := s.Err(); err != nil {
		return 0, nil, err
	}
	if len(vals) < 2 {
		return 0, nil, fmt.Errorf("truncated file")
	}
	natoms, err := strconv.Atoi(vals[0])
	if err != nil || natoms <= 0 {
		return 0, nil, fmt.Errorf("bad number of atoms %q", vals[0])
	}
	e, err := strconv.ParseFloat(vals[1], 64)
	if err != nil {
		return 0, nil, fmt.Errorf("bad energy %q", vals[1])
	}
	if len(vals) < 2+3*natoms {
		return 0, nil, fmt.Errorf("%d gradient components, %d expected", len(vals)-2, 3*natoms)
	}
	g := make([]float64, 3*natoms)
	for i := range g {
		g[i], err = strconv.ParseFloat(vals[2+i], 64)
		if err != nil {
			return 0, nil, fmt.Errorf("bad gradient component %q", vals[2+i])
		}
	}
	return e, g, nil
}

// Gradient returns the gradient (Hartree/bohr) from the .engrad file
// of the last calculation, which must have been a gradient calculation.
func (O *OrcaHandle) Gradient() ([]float64, error) {
	errid := "qm/OrcaHandle.Gradient"
	f, err := os.Open(O.path(".engrad"))
	if err != nil {
		return nil, newError(ErrNoGradient, Orca, O.path(".engrad"), err.Error(), errid)
	}
	defer f.Close()
	_, g, err := readEngrad(f)
	if err != nil {
		return nil, newError(ErrNoGradient, Orca, O.path(".engrad"), err.Error(), errid)
	}
	return g, nil
}

// converter returns the path to the orca_2mkl program, which is
// expected to be next to the orca binary.
func (O *OrcaHandle) converter() string {
	dir := filepath.Dir(O.command)
	if dir == "." && !strings.Contains(O.command, string(filepath.Separator)) {
		return "orca_2mkl"
	}
	return filepath.Join(dir, "orca_2mkl")
}

// Wavefunction converts the .gbw file of the last calculation to
// Molden format with orca_2mkl, and reads it. ORCA's sign convention
// for f functions is corrected.
func (O *OrcaHandle) Wavefunction() (*molden.Wavefunction, error) {
	errid := "qm/OrcaHandle.Wavefunction"
	command := exec.Command(O.converter(), O.inputname, "-molden")
	command.Dir = O.workdir
	if O.log != nil {
		command.Stdout = O.log
		command.Stderr = O.log
	}
	if err := command.Run(); err != nil {
		return nil, newError(ErrNoWavefunction, Orca, O.path(".gbw"), err.Error(), errid)
	}
	W, err := molden.ReadFile(O.path(".molden.input"))
	if err != nil {
		return nil, newError(ErrNoWavefunction, Orca, O.path(".molden.input"), err.Error(), errid)
	}
	W.FixOrca()
	return W, nil
}
