/*
 * chem_test.go, part of godft.
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

package chem

import (
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	v3 "github.com/rmera/godft/v3"
)

const water = `
O   0.000000   0.000000   0.117300
H   0.000000   0.757200  -0.469200

H   0.000000  -0.757200  -0.469200
`

func TestParseXYZBlock(Te *testing.T) {
	recs, err := ParseXYZBlock(water)
	if err != nil {
		Te.Fatal(err)
	}
	if len(recs) != 3 {
		Te.Fatalf("got %d atoms, want 3", len(recs))
	}
	want := []string{"O", "H", "H"}
	for i, v := range recs {
		if v.Symbol != want[i] {
			Te.Errorf("atom %d is %s, want %s", i, v.Symbol, want[i])
		}
		for _, c := range v.Pos {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				Te.Errorf("atom %d has non-finite coordinates %v", i, v.Pos)
			}
		}
	}
	if recs[2].Pos[1] != -0.7572 {
		Te.Errorf("order not kept, third atom at %v", recs[2].Pos)
	}
}

func TestParseXYZBlockErrors(Te *testing.T) {
	cases := map[string]string{
		"too few fields":  "O 0.0 0.0",
		"too many fields": "O 0.0 0.0 0.0 1.0",
		"not a number":    "O 0.0 zero 0.0",
		"not finite":      "O 0.0 NaN 0.0",
	}
	for name, block := range cases {
		Te.Run(name, func(Te *testing.T) {
			_, err := ParseXYZBlock(block)
			var perr *ParseError
			if !errors.As(err, &perr) {
				Te.Fatalf("expected a ParseError, got %v", err)
			}
		})
	}
}

func TestParseEmptyBlock(Te *testing.T) {
	recs, err := ParseXYZBlock("\n  \n")
	if err != nil || len(recs) != 0 {
		Te.Errorf("empty block gave %v, %v", recs, err)
	}
	if _, err := Build(recs, "sto-3g", 0, 0, ""); err == nil {
		Te.Error("Build accepted a molecule without atoms")
	}
}

func TestBuild(Te *testing.T) {
	recs, _ := ParseXYZBlock(water)
	m1, err := Build(recs, "def2-svp", 0, 4, "water.log")
	if err != nil {
		Te.Fatal(err)
	}
	m2, err := Build(recs, "def2-svp", 0, 4, "water.log")
	if err != nil {
		Te.Fatal(err)
	}
	if !reflect.DeepEqual(m1, m2) {
		Te.Error("Build is not deterministic")
	}
	if a := m1.Atom(0); a.Mass != 15.999 || a.Z != 8 || m1.Atom(2).Mass != 1.008 {
		Te.Errorf("wrong atoms %+v %+v", a, m1.Atom(2))
	}
	if Mass("xx") != 0 {
		Te.Error("mass for an unknown element")
	}
	if m1.Electrons() != 10 || m1.Occupied() != 5 {
		Te.Errorf("got %d electrons, %d occupied orbitals", m1.Electrons(), m1.Occupied())
	}
	c := m1.Coords()
	c.Set(0, 0, 100)
	if m1.Coords().At(0, 0) == 100 {
		Te.Error("Coords should return a copy")
	}
	m3 := m1.WithCoords(c)
	if m3.Coords().At(0, 0) != 100 || m1.Coords().At(0, 0) != 0 {
		Te.Error("WithCoords should produce a new molecule and leave the old one alone")
	}
	if m3.Basis() != "def2-svp" || m3.LogPath() != "water.log" {
		Te.Error("WithCoords lost parameters")
	}
	if !reflect.DeepEqual(m1.Records(), recs) {
		Te.Errorf("Records %v don't match the input %v", m1.Records(), recs)
	}
}

func TestBuildErrors(Te *testing.T) {
	recs, _ := ParseXYZBlock(water)
	if _, err := Build(nil, "def2-svp", 0, 0, ""); err == nil {
		Te.Error("no error for empty atoms")
	}
	if _, err := Build(recs, "", 0, 0, ""); err == nil {
		Te.Error("no error for empty basis")
	}
	if _, err := Build(recs, "def2-svp", 1, 0, ""); err == nil {
		Te.Error("no error for an open-shell cation")
	}
	if _, err := Build([]AtomRecord{{Symbol: "Qq"}}, "def2-svp", 0, 0, ""); err == nil {
		Te.Error("no error for an unknown element")
	}
}

func TestXYZRoundTrip(Te *testing.T) {
	recs, _ := ParseXYZBlock(water)
	mol, err := Build(recs, "sto-3g", 0, 0, "")
	if err != nil {
		Te.Fatal(err)
	}
	dir := Te.TempDir()
	for _, name := range []string{"water.xyz", "water.xyz.zst"} {
		path := filepath.Join(dir, name)
		if err := XYZFileWrite(path, mol.Coords(), mol, "water"); err != nil {
			Te.Fatal(err)
		}
		back, err := XYZFileRead(path)
		if err != nil {
			Te.Fatal(err)
		}
		if len(back) != len(recs) {
			Te.Fatalf("%s: read %d atoms, wrote %d", name, len(back), len(recs))
		}
		for i := range back {
			if back[i].Symbol != recs[i].Symbol {
				Te.Errorf("%s: atom %d is %s, want %s", name, i, back[i].Symbol, recs[i].Symbol)
			}
			for k := 0; k < 3; k++ {
				if math.Abs(back[i].Pos[k]-recs[i].Pos[k]) > 1e-4 {
					Te.Errorf("%s: atom %d coordinate %d: %v vs %v", name, i, k, back[i].Pos[k], recs[i].Pos[k])
				}
			}
		}
	}
}

func TestXYZTraj(Te *testing.T) {
	recs, _ := ParseXYZBlock(water)
	mol, _ := Build(recs, "sto-3g", 0, 0, "")
	c1 := mol.Coords()
	c2 := mol.Coords()
	c2.Set(0, 2, 0.2)
	path := filepath.Join(Te.TempDir(), "traj.xyz.zst")
	if err := XYZTrajFileWrite(path, []*v3.Matrix{c1, c2}, mol, []string{"E=-1", "E=-2"}); err != nil {
		Te.Fatal(err)
	}
	frames, err := XYZTrajFileRead(path)
	if err != nil {
		Te.Fatal(err)
	}
	if len(frames) != 2 || frames[1][0].Pos[2] != 0.2 {
		Te.Errorf("unexpected frames %v", frames)
	}
}

func TestBonds(Te *testing.T) {
	recs, _ := ParseXYZBlock(water)
	mol, _ := Build(recs, "sto-3g", 0, 0, "")
	bonds, err := Bonds(mol.Coords(), mol, 0)
	if err != nil {
		Te.Fatal(err)
	}
	want := []Bond{{At1: 0, At2: 1}, {At1: 0, At2: 2}}
	if len(bonds) != len(want) {
		Te.Fatalf("got bonds %v, want %v", bonds, want)
	}
	for i := range want {
		if bonds[i].At1 != want[i].At1 || bonds[i].At2 != want[i].At2 {
			Te.Errorf("bond %d is %v, want %v", i, bonds[i], want[i])
		}
	}
}
