/*
 * cube.go, part of godft.
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

// Package cube evaluates molecular orbitals on regular grids, and reads and writes
// them as Gaussian cube files. All lengths are in bohr.
package cube

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rmera/godft/molden"
	v3 "github.com/rmera/godft/v3"
)

// Default parameters for the grid around a molecule.
const (
	DefaultPoints = 80
	DefaultMargin = 3.0 //bohr
)

// FileName returns the name of the cube file for the MO index (1-based) of the
// job label.
func FileName(label string, index int) string {
	return fmt.Sprintf("%s_mol_%d.cub", label, index)
}

// Grid is a set of values on a regular 3D grid. The point (i,j,k) is at
// Origin + i*Axes[0] + j*Axes[1] + k*Axes[2], and its value is in
// Values[(i*N[1]+j)*N[2]+k], which is the order of cube files.
type Grid struct {
	Comments [2]string
	Atoms    []molden.Atom
	Origin   [3]float64
	Axes     [3][3]float64
	N        [3]int
	Values   []float64
}

// BoxSpec describes a box-shaped grid around a molecule: the extent of the
// molecule plus Margin in every direction, with Points points per axis.
type BoxSpec struct {
	Points int
	Margin float64
}

// DefaultBox returns a BoxSpec with the default values.
func DefaultBox() BoxSpec {
	return BoxSpec{Points: DefaultPoints, Margin: DefaultMargin}
}

// NewBoxGrid returns a zero-valued grid that contains atoms, with the
// dimensions given by spec. Non-positive fields in spec take the default values.
func NewBoxGrid(atoms []molden.Atom, spec BoxSpec) *Grid {
	def := DefaultBox()
	if spec.Points < 2 {
		spec.Points = def.Points
	}
	if spec.Margin <= 0 {
		spec.Margin = def.Margin
	}
	var lo, hi [3]float64
	if len(atoms) > 0 {
		pos := v3.Zeros(len(atoms))
		for i, a := range atoms {
			pos.SetVec(i, a.Pos)
		}
		lo, hi = pos.Bounds()
	}
	G := &Grid{Atoms: atoms}
	for k := 0; k < 3; k++ {
		G.Origin[k] = lo[k] - spec.Margin
		G.N[k] = spec.Points
		G.Axes[k][k] = (hi[k] - lo[k] + 2*spec.Margin) / float64(spec.Points-1)
	}
	G.Values = make([]float64, G.N[0]*G.N[1]*G.N[2])
	return G
}

// Index returns the position in Values of the point (i,j,k).
func (G *Grid) Index(i, j, k int) int {
	return (i*G.N[1]+j)*G.N[2] + k
}

// Point returns the coordinates of the point (i,j,k).
func (G *Grid) Point(i, j, k int) [3]float64 {
	var p [3]float64
	for c := 0; c < 3; c++ {
		p[c] = G.Origin[c] + float64(i)*G.Axes[0][c] + float64(j)*G.Axes[1][c] + float64(k)*G.Axes[2][c]
	}
	return p
}

// VoxelVolume is the volume of one grid cell.
func (G *Grid) VoxelVolume() float64 {
	a, b, c := G.Axes[0], G.Axes[1], G.Axes[2]
	cross := [3]float64{b[1]*c[2] - b[2]*c[1], b[2]*c[0] - b[0]*c[2], b[0]*c[1] - b[1]*c[0]}
	return math.Abs(a[0]*cross[0] + a[1]*cross[1] + a[2]*cross[2])
}

// Norm2 returns the integral of the square of the values over the grid.
// For an orbital on a large enough grid, it should be close to 1.
func (G *Grid) Norm2() float64 {
	var s float64
	for _, v := range G.Values {
		s += v * v
	}
	return s * G.VoxelVolume()
}

// Write writes the grid in Gaussian cube format to w.
func (G *Grid) Write(w io.Writer) error {
	b := bufio.NewWriter(w)
	fmt.Fprintf(b, "%s\n%s\n", oneLine(G.Comments[0]), oneLine(G.Comments[1]))
	fmt.Fprintf(b, "%5d %12.6f %12.6f %12.6f\n", len(G.Atoms), G.Origin[0], G.Origin[1], G.Origin[2])
	for k := 0; k < 3; k++ {
		fmt.Fprintf(b, "%5d %12.6f %12.6f %12.6f\n", G.N[k], G.Axes[k][0], G.Axes[k][1], G.Axes[k][2])
	}
	for _, a := range G.Atoms {
		fmt.Fprintf(b, "%5d %12.6f %12.6f %12.6f %12.6f\n", a.Z, float64(a.Z), a.Pos[0], a.Pos[1], a.Pos[2])
	}
	for i := 0; i < G.N[0]; i++ {
		for j := 0; j < G.N[1]; j++ {
			for k := 0; k < G.N[2]; k++ {
				fmt.Fprintf(b, " %12.5E", G.Values[G.Index(i, j, k)])
				if k%6 == 5 {
					fmt.Fprintf(b, "\n")
				}
			}
			if G.N[2]%6 != 0 {
				fmt.Fprintf(b, "\n")
			}
		}
	}
	return b.Flush()
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// WriteFile writes G to the cube file name, overwriting it.
func (G *Grid) WriteFile(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("cube/WriteFile: %w", err)
	}
	if err := G.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("cube/WriteFile: %w", err)
	}
	return f.Close()
}

// Read reads a Gaussian cube file. For files with MO headers (negative atom count),
// only the first orbital is read.
func Read(r io.Reader) (*Grid, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	next := func() ([]string, error) {
		if !s.Scan() {
			if s.Err() != nil {
				return nil, s.Err()
			}
			return nil, fmt.Errorf("cube/Read: unexpected end of file after line %d", lineno)
		}
		lineno++
		return strings.Fields(s.Text()), nil
	}
	G := &Grid{}
	for k := 0; k < 2; k++ {
		if !s.Scan() {
			return nil, fmt.Errorf("cube/Read: missing comment lines")
		}
		lineno++
		G.Comments[k] = s.Text()
	}
	header := func(f []string) (int, [3]float64, error) {
		var v [3]float64
		if len(f) < 4 {
			return 0, v, fmt.Errorf("cube/Read: line %d: expected at least 4 fields", lineno)
		}
		n, err := strconv.Atoi(f[0])
		if err != nil {
			return 0, v, fmt.Errorf("cube/Read: line %d: %w", lineno, err)
		}
		for c := 0; c < 3; c++ {
			if v[c], err = strconv.ParseFloat(f[c+1], 64); err != nil {
				return 0, v, fmt.Errorf("cube/Read: line %d: %w", lineno, err)
			}
		}
		return n, v, nil
	}
	f, err := next()
	if err != nil {
		return nil, err
	}
	natoms, origin, err := header(f)
	if err != nil {
		return nil, err
	}
	G.Origin = origin
	mo := natoms < 0
	if mo {
		natoms = -natoms
	}
	for k := 0; k < 3; k++ {
		if f, err = next(); err != nil {
			return nil, err
		}
		if G.N[k], G.Axes[k], err = header(f); err != nil {
			return nil, err
		}
		if G.N[k] <= 0 {
			return nil, fmt.Errorf("cube/Read: line %d: %d points in axis %d (only bohr grids are supported)", lineno, G.N[k], k)
		}
	}
	for i := 0; i < natoms; i++ {
		if f, err = next(); err != nil {
			return nil, err
		}
		if len(f) < 5 {
			return nil, fmt.Errorf("cube/Read: line %d: bad atom line", lineno)
		}
		z, _, err := header(f[:4])
		if err != nil {
			return nil, err
		}
		_, pos, err := header(append([]string{"0"}, f[2:5]...))
		if err != nil {
			return nil, err
		}
		G.Atoms = append(G.Atoms, molden.Atom{Z: z, Pos: pos})
	}
	total := G.N[0] * G.N[1] * G.N[2]
	G.Values = make([]float64, 0, total)
	skip := 0
	if mo {
		if f, err = next(); err != nil {
			return nil, err
		}
		nmo, _ := strconv.Atoi(f[0])
		skip = nmo - 1
	}
	for len(G.Values) < total*(skip+1) {
		if f, err = next(); err != nil {
			return nil, err
		}
		for _, v := range f {
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("cube/Read: line %d: %w", lineno, err)
			}
			G.Values = append(G.Values, x)
		}
	}
	if skip > 0 {
		//values are interleaved when there are several MOs
		vals := make([]float64, total)
		for i := range vals {
			vals[i] = G.Values[i*(skip+1)]
		}
		G.Values = vals
	}
	G.Values = G.Values[:total]
	return G, nil
}

// ReadFile reads the cube file name.
func ReadFile(name string) (*Grid, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("cube/ReadFile: %w", err)
	}
	defer f.Close()
	return Read(f)
}
