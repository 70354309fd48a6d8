/*
 * chemplot.go, part of godft
 *
 * Copyright 2012 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU Lesser General Public License as published by
    the Free Software Foundation, either version 2.1 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU Lesser General Public License
    along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
*/
/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

// Package chemplot produces plots of optimization energy profiles and
// orbital energy levels. The format of the file (png, svg, pdf...) is
// taken from the extension of the path.
package chemplot

import (
	"fmt"
	"image/color"
	"math"

	chem "github.com/rmera/godft"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Degenerate is the maximum energy difference, in Hartree, for two orbitals
// to be drawn as degenerate in Levels.
const Degenerate = 1e-4

func basicPlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Padding = 3 * vg.Millimeter
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	return p
}

// EnergyProfile plots the energies (Hartree) of the steps of an optimization
// relative to the first one, in kcal/mol, and saves the plot to path.
func EnergyProfile(energies []float64, title, path string) error {
	errid := "chemplot/EnergyProfile"
	if len(energies) == 0 {
		return fmt.Errorf("%s: no energies to plot", errid)
	}
	p := basicPlot(title, "Step", "Relative energy (kcal/mol)")
	pts := make(plotter.XYs, len(energies))
	for i, e := range energies {
		pts[i].X = float64(i)
		pts[i].Y = (e - energies[0]) * chem.H2Kcal
	}
	l, s, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("%s: %w", errid, err)
	}
	r, g, b := iHVS2RGB(220, 0.8, 1)
	l.LineStyle.Color = color.RGBA{R: r, G: g, B: b, A: 255}
	l.LineStyle.Width = vg.Points(1.5)
	s.GlyphStyle.Color = l.LineStyle.Color
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(l, s)
	if len(energies) == 1 {
		p.X.Min, p.X.Max = -1, 1
		p.Y.Min, p.Y.Max = -1, 1
	}
	if err := p.Save(5*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("%s: %w", errid, err)
	}
	return nil
}

// Levels draws an orbital energy level diagram for the MO energies
// (Hartree, in increasing order) and saves it to path. The first nocc orbitals
// are drawn as occupied. Energies are shown in eV, and degenerate orbitals
// are drawn side by side.
func Levels(energies []float64, nocc int, title, path string) error {
	errid := "chemplot/Levels"
	if len(energies) == 0 {
		return fmt.Errorf("%s: no energies to plot", errid)
	}
	if nocc < 0 || nocc > len(energies) {
		return fmt.Errorf("%s: %d occupied orbitals out of %d", errid, nocc, len(energies))
	}
	p := basicPlot(title, "", "Orbital energy (eV)")
	p.HideX()
	groups := degenerateGroups(energies)
	occ, virt := colors(0, 2), colors(1, 2)
	var occdone, virtdone bool
	for _, grp := range groups {
		width := 0.6 / float64(len(grp))
		for k, i := range grp {
			x0 := 0.2 + float64(k)*width
			e := energies[i] * chem.H2eV
			l, err := plotter.NewLine(plotter.XYs{{X: x0 + 0.1*width, Y: e}, {X: x0 + 0.9*width, Y: e}})
			if err != nil {
				return fmt.Errorf("%s: %w", errid, err)
			}
			l.LineStyle.Width = vg.Points(2)
			if i < nocc {
				l.LineStyle.Color = occ
				if !occdone {
					p.Legend.Add("occupied", l)
					occdone = true
				}
			} else {
				l.LineStyle.Color = virt
				if !virtdone {
					p.Legend.Add("virtual", l)
					virtdone = true
				}
			}
			p.Add(l)
		}
	}
	p.X.Min, p.X.Max = 0, 1
	if err := p.Save(3*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("%s: %w", errid, err)
	}
	return nil
}

// degenerateGroups returns the indexes of the energies, grouped so that
// each group contains consecutive orbitals within Degenerate of each other.
func degenerateGroups(energies []float64) [][]int {
	var groups [][]int
	for i, e := range energies {
		n := len(groups)
		if n > 0 && math.Abs(e-energies[groups[n-1][len(groups[n-1])-1]]) < Degenerate {
			groups[n-1] = append(groups[n-1], i)
			continue
		}
		groups = append(groups, []int{i})
	}
	return groups
}

//takes hue (0-360), v and s (0-1), returns r,g,b (0-255)
func iHVS2RGB(h, v, s float64) (uint8, uint8, uint8) {
	var i, f, p, q, t float64
	var r, g, b float64
	maxcolor := 255.0
	conversion := maxcolor * v
	if s == 0.0 {
		return uint8(conversion), uint8(conversion), uint8(conversion)
	}
	h = h / 60
	i = math.Floor(h)
	f = h - i
	p = v * (1 - s)
	q = v * (1 - s*f)
	t = v * (1 - s*(1-f))
	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default: //case 5
		r, g, b = v, p, q
	}
	return uint8(r * maxcolor), uint8(g * maxcolor), uint8(b * maxcolor)
}

// colors returns the key-th of steps colors spread over the hue circle,
// from blue to red.
func colors(key, steps int) color.RGBA {
	h := 240.0
	if steps > 1 {
		h = 240 - 240*float64(key)/float64(steps-1)
	}
	r, g, b := iHVS2RGB(h, 1, 1)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
