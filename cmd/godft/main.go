/*
 * main.go, part of godft.
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

// godft runs an electronic structure calculation from a YAML
// configuration file, exports the requested orbitals as cube files and
// writes a visualization session.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rmera/godft/pipeline"
)

var version = "dev"

const defaultConfig = "godft.yaml"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("godft", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: godft [flags] [config.yaml]\n")
		fs.PrintDefaults()
	}

	var (
		confPath    string
		outDir      string
		noView      bool
		showVersion bool
	)
	fs.StringVar(&confPath, "c", "", "configuration file (default "+defaultConfig+")")
	fs.StringVar(&outDir, "o", "", "output directory, overrides the one in the configuration")
	fs.BoolVar(&noView, "no-view", false, "don't write or launch a visualization session")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	if showVersion {
		_, _ = fmt.Fprintf(stdout, "godft %s\n", version)
		return nil
	}
	if confPath == "" {
		confPath = defaultConfig
		if fs.NArg() > 0 {
			confPath = fs.Arg(0)
		}
	}
	c, err := pipeline.LoadConfig(confPath)
	if err != nil {
		return err
	}
	if outDir != "" {
		setOutDir(c, outDir)
	}
	if noView {
		c.View.Format = ""
		c.View.Launch = false
	}
	P, err := pipeline.New(c)
	if err != nil {
		return err
	}
	defer P.Close()
	sum, err := P.Run()
	if err != nil {
		return fmt.Errorf("%w (see %s)", err, c.Log)
	}
	printSummary(stdout, c, sum)
	return nil
}

// setOutDir changes the output directory of c to dir. The work directory and
// the log follow it only if they were left at their defaults.
func setOutDir(c *pipeline.Config, dir string) {
	old := c.OutDir
	c.OutDir = dir
	if c.WorkDir == old {
		c.WorkDir = dir
	}
	if c.Log == filepath.Join(old, c.Label+".log") {
		c.Log = filepath.Join(dir, c.Label+".log")
	}
}

func printSummary(w io.Writer, c *pipeline.Config, sum *pipeline.Summary) {
	fmt.Fprintf(w, "%s: %d atoms, %s/%s (%s)\n", c.Label, sum.Molecule.Len(), c.Functional, sum.Molecule.Basis(), c.Engine)
	fmt.Fprintf(w, "Energy: %.10f Eh\n", sum.State.Energy)
	if sum.Opt != nil {
		status := "converged"
		if !sum.Opt.Converged {
			status = "NOT converged"
		}
		fmt.Fprintf(w, "Optimization %s in %d steps\n", status, sum.Opt.Steps)
	}
	for _, v := range sum.Cubes {
		fmt.Fprintf(w, "Orbital: %s\n", v)
	}
	if sum.Session != "" {
		fmt.Fprintf(w, "Session: %s\n", sum.Session)
	}
}

// flagsWithValue lists the flags that take a value, so reorderArgs
// can keep them together.
var flagsWithValue = map[string]bool{
	"-c": true, "--c": true,
	"-o": true, "--o": true,
}

// reorderArgs moves the flags before the positional arguments, so
// they can be given in any order.
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
