/*
 * main_test.go, part of godft.
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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rmera/godft/pipeline"
)

const h2conf = `label: h2
engine: native
structure: |
  H 0.0 0.0 0.0
  H 0.0 0.0 0.74
grid:
  points: 16
frontier: 1
view:
  format: html
`

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "h2.yaml")
	if err := os.WriteFile(path, []byte(h2conf), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"-version"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if stdout.String() != "godft dev\n" {
		t.Errorf("unexpected version output %q", stdout.String())
	}
}

func TestMissingConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{filepath.Join(t.TempDir(), "nothere.yaml")}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected an error for a missing configuration")
	}
	if stdout.Len() != 0 {
		t.Errorf("unexpected output %q", stdout.String())
	}
	if err := run([]string{"-bogus"}, &stdout, &stderr); err == nil {
		t.Error("unknown flag accepted")
	}
}

func TestReorderArgs(t *testing.T) {
	got := reorderArgs([]string{"conf.yaml", "-o", "out", "-no-view"})
	want := []string{"-o", "out", "-no-view", "conf.yaml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSetOutDir(t *testing.T) {
	dir := t.TempDir()
	conf := writeConfig(t, dir)
	c, err := pipeline.LoadConfig(conf)
	if err != nil {
		t.Fatal(err)
	}
	setOutDir(c, "results")
	if c.OutDir != "results" || c.WorkDir != "results" || c.Log != filepath.Join("results", "h2.log") {
		t.Errorf("defaults not moved: outdir %s workdir %s log %s", c.OutDir, c.WorkDir, c.Log)
	}

	explicit := filepath.Join(dir, "keep.log")
	text := h2conf + "log: " + explicit + "\nworkdir: " + filepath.Join(dir, "scratch") + "\n"
	if err := os.WriteFile(conf, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = pipeline.LoadConfig(conf)
	if err != nil {
		t.Fatal(err)
	}
	setOutDir(c, "results")
	if c.Log != explicit || c.WorkDir != filepath.Join(dir, "scratch") {
		t.Errorf("explicit paths dropped: workdir %s log %s", c.WorkDir, c.Log)
	}
}

func TestRunH2(t *testing.T) {
	dir := t.TempDir()
	conf := writeConfig(t, dir)
	out := filepath.Join(dir, "out")

	var stdout, stderr bytes.Buffer
	if err := run([]string{conf, "-o", out}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	text := stdout.String()
	for _, v := range []string{"h2: 2 atoms", "Energy: -1.1", "h2_mol_1.cub", "h2_mol_2.cub", "Session: "} {
		if !strings.Contains(text, v) {
			t.Errorf("%q not in the output:\n%s", v, text)
		}
	}
	for _, v := range []string{"h2.log", "h2.xyz", "h2.html", "h2_mol_1.cub"} {
		if _, err := os.Stat(filepath.Join(out, v)); err != nil {
			t.Errorf("expected file %s: %v", v, err)
		}
	}

	stdout.Reset()
	out2 := filepath.Join(dir, "noview")
	if err := run([]string{"-no-view", "-o", out2, "-c", conf}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	if strings.Contains(stdout.String(), "Session: ") {
		t.Errorf("session written with -no-view:\n%s", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(out2, "h2.html")); err == nil {
		t.Error("h2.html written with -no-view")
	}
}
