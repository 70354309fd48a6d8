/*
 * view.go, part of godft.
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

// Package view writes visualization sessions for a structure and its orbital
// grids, either as PyMOL scripts or as HTML pages using 3Dmol.js, and
// optionally opens them.
package view

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Session formats.
const (
	PyMOL = "pymol"
	HTML  = "html"
)

// Surface is an isosurface to be drawn for each grid.
type Surface struct {
	Color    string  `yaml:"color"`
	Opacity  float64 `yaml:"opacity"` //0-1
	IsoLevel float64 `yaml:"isolevel"`
}

// DefaultSurfaces returns the usual pair of orbital lobes: blue at +0.02 and
// red at -0.02, with opacity 0.75.
func DefaultSurfaces() []Surface {
	return []Surface{
		{Color: "blue", Opacity: 0.75, IsoLevel: 0.02},
		{Color: "red", Opacity: 0.75, IsoLevel: -0.02},
	}
}

// Options for Render.
type Options struct {
	Format  string    //PyMOL (default) or HTML
	Output  string    //path of the session file. By default, the structure path with the extension changed
	Launch  bool      //open the session and wait for the viewer to exit
	Command string    //viewer program, "pymol" for PyMOL sessions and "xdg-open" for HTML ones by default
	Stdout  io.Writer //for the viewer's output
}

// DefaultOptions returns options for a PyMOL session that is not launched.
func DefaultOptions() *Options {
	return &Options{Format: PyMOL}
}

func (o *Options) command() string {
	if o.Command != "" {
		return o.Command
	}
	if o.Format == HTML {
		return "xdg-open"
	}
	return "pymol"
}

// Render writes a session that shows the structure in structurePath (an XYZ
// file) and, for each cube file in gridPaths, the isosurfaces in surfaces
// (DefaultSurfaces if nil). It returns the path to the session file. If o.Launch
// is set, the viewer is started and Render waits for it to exit.
func Render(structurePath string, gridPaths []string, surfaces []Surface, o *Options) (string, error) {
	errid := "view/Render"
	if o == nil {
		o = DefaultOptions()
	}
	if surfaces == nil {
		surfaces = DefaultSurfaces()
	}
	for i, s := range surfaces {
		if s.Color == "" || s.Opacity < 0 || s.Opacity > 1 {
			return "", fmt.Errorf("%s: surface %d: bad color %q or opacity %.2f", errid, i, s.Color, s.Opacity)
		}
	}
	for _, v := range append([]string{structurePath}, gridPaths...) {
		if _, err := os.Stat(v); err != nil {
			return "", fmt.Errorf("%s: %w", errid, err)
		}
	}
	var write func(io.Writer, string, []string, []Surface) error
	var ext string
	switch o.Format {
	case "", PyMOL:
		write, ext = writePML, ".pml"
	case HTML:
		write, ext = writeHTML, ".html"
	default:
		return "", fmt.Errorf("%s: unknown format %q", errid, o.Format)
	}
	out := o.Output
	if out == "" {
		out = strings.TrimSuffix(structurePath, filepath.Ext(structurePath)) + ext
	}
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errid, err)
	}
	if err := write(f, structurePath, gridPaths, surfaces); err != nil {
		f.Close()
		return "", fmt.Errorf("%s: %w", errid, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%s: %w", errid, err)
	}
	if o.Launch {
		viewer := exec.Command(o.command(), out)
		if o.Stdout != nil {
			viewer.Stdout = o.Stdout
			viewer.Stderr = o.Stdout
		}
		if err := viewer.Run(); err != nil {
			return out, fmt.Errorf("%s: running %s: %w", errid, o.command(), err)
		}
	}
	return out, nil
}

// objectName returns a PyMOL object name for the file path.
func objectName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return '_'
	}, base)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func writePML(w io.Writer, structure string, grids []string, surfaces []Surface) error {
	mol := objectName(structure)
	load := fmt.Sprintf("load %q, %s", absPath(structure), mol)
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(structure)), "."); ext != "" {
		load += ", format=" + ext
	}
	lines := []string{
		load,
		fmt.Sprintf("show sticks, %s", mol),
		fmt.Sprintf("set stick_radius, 0.15, %s", mol),
		"bg_color white",
	}
	for i, g := range grids {
		name := objectName(g)
		lines = append(lines, fmt.Sprintf("load %q, %s, format=cube", absPath(g), name))
		for j, s := range surfaces {
			iso := fmt.Sprintf("%s_s%d", name, j+1)
			lines = append(lines,
				fmt.Sprintf("isosurface %s, %s, %g", iso, name, s.IsoLevel),
				fmt.Sprintf("color %s, %s", s.Color, iso),
				fmt.Sprintf("set transparency, %.2f, %s", 1-s.Opacity, iso))
			if i > 0 {
				lines = append(lines, fmt.Sprintf("disable %s", iso))
			}
		}
	}
	lines = append(lines, fmt.Sprintf("orient %s", mol), "")
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://3Dmol.org/build/3Dmol-min.js"></script>
</head>
<body>
<h3>{{.Title}}</h3>
<div id="viewer" style="width: 800px; height: 600px; position: relative;"></div>
<script>
let viewer = $3Dmol.createViewer("viewer", {backgroundColor: "white"});
viewer.addModel({{.Structure}}, "xyz");
viewer.setStyle({}, {stick: {radius: 0.15}, sphere: {scale: 0.25}});
{{range .Grids}}
{
  let grid = new $3Dmol.VolumeData({{.Data}}, "cube");
  {{range $.Surfaces}}viewer.addIsosurface(grid, {isoval: {{.IsoLevel}}, color: {{.Color}}, opacity: {{.Opacity}}});
  {{end}}
}
{{end}}
viewer.zoomTo();
viewer.render();
</script>
</body>
</html>
`))

type gridData struct {
	Name string
	Data string
}

func writeHTML(w io.Writer, structure string, grids []string, surfaces []Surface) error {
	xyz, err := os.ReadFile(structure)
	if err != nil {
		return err
	}
	data := struct {
		Title     string
		Structure string
		Grids     []gridData
		Surfaces  []Surface
	}{Title: filepath.Base(structure), Structure: string(xyz), Surfaces: surfaces}
	for _, g := range grids {
		c, err := os.ReadFile(g)
		if err != nil {
			return err
		}
		data.Grids = append(data.Grids, gridData{Name: filepath.Base(g), Data: string(c)})
	}
	return page.Execute(w, data)
}
