/*
 * export.go, part of godft.
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
	"fmt"
	"path/filepath"

	"github.com/rmera/godft/cube"
	"github.com/rmera/godft/qm"
)

// ErrOrbitalRange is returned when an orbital index is not between 1
// and the number of MOs.
var ErrOrbitalRange = errors.New("orbital index out of range")

// ExportRequest asks for the orbital Index (1-based) to be written to the cube
// file named after Label.
type ExportRequest struct {
	Label string
	Index int
}

// Exporter writes orbitals as cube files.
type Exporter struct {
	OutDir string
	Box    cube.BoxSpec
	Log    *Logger //can be nil
}

// Export evaluates the orbital index (1-based) of state on a grid and writes it to
// the file cube.FileName(label, index) in the output directory, overwriting it if it
// exists. It returns the path to the file.
func (E *Exporter) Export(state *qm.State, label string, index int) (string, error) {
	errid := "pipeline/Exporter.Export"
	if state == nil || state.Wavefunction == nil {
		return "", fmt.Errorf("%s: no wavefunction to export", errid)
	}
	W := state.Wavefunction
	nmo := W.NMO()
	if index < 1 || index > nmo {
		return "", fmt.Errorf("%s: orbital %d requested, valid indexes are 1 to %d: %w", errid, index, nmo, ErrOrbitalRange)
	}
	G, err := cube.Orbital(W, index-1, E.Box)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errid, err)
	}
	G.Comments[0] = fmt.Sprintf("%s orbital %d %s/%s", label, index, state.Method, state.Molecule.Basis())
	path := filepath.Join(E.OutDir, cube.FileName(label, index))
	if err := G.WriteFile(path); err != nil {
		return "", fmt.Errorf("%s: %w", errid, err)
	}
	if E.Log != nil {
		E.Log.Info.Printf("Orbital %d (E= %.6f Eh) written to %s", index, W.Energies[index-1], path)
	}
	return path, nil
}

// ExportAll runs the requests one after the other, and returns the paths
// of the files written. It stops at the first error.
func (E *Exporter) ExportAll(state *qm.State, reqs []ExportRequest) ([]string, error) {
	paths := make([]string, 0, len(reqs))
	for _, r := range reqs {
		p, err := E.Export(state, r.Label, r.Index)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// FrontierRequests returns requests for the orbitals from HOMO-(window-1) to
// LUMO+(window-1), where the HOMO is the orbital nocc, clipped to the range
// 1 to nmo.
func FrontierRequests(label string, nocc, nmo, window int) []ExportRequest {
	var reqs []ExportRequest
	for i := nocc - window + 1; i <= nocc+window; i++ {
		if i < 1 || i > nmo {
			continue
		}
		reqs = append(reqs, ExportRequest{Label: label, Index: i})
	}
	return reqs
}

// Requests returns the requests for the orbitals in indexes.
func Requests(label string, indexes []int) []ExportRequest {
	reqs := make([]ExportRequest, len(indexes))
	for i, v := range indexes {
		reqs[i] = ExportRequest{Label: label, Index: v}
	}
	return reqs
}
