/*
 * write.go, part of godft.
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

package molden

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Write writes W in Molden format to w, with title in the [Title] section.
// Coordinates are written in bohr.
func (W *Wavefunction) Write(w io.Writer, title string) error {
	b := bufio.NewWriter(w)
	fmt.Fprintf(b, "[Molden Format]\n[Title]\n%s\n", title)
	fmt.Fprintf(b, "[Atoms] AU\n")
	for i, a := range W.Atoms {
		fmt.Fprintf(b, "%-3s %4d %3d %16.10f %16.10f %16.10f\n", a.Symbol, i+1, a.Z, a.Pos[0], a.Pos[1], a.Pos[2])
	}
	fmt.Fprintf(b, "[GTO]\n")
	for i := range W.Atoms {
		fmt.Fprintf(b, "%4d 0\n", i+1)
		for _, s := range W.Shells {
			if s.Atom != i {
				continue
			}
			fmt.Fprintf(b, " %s %4d 1.00\n", s.Letter(), len(s.Prims))
			for _, p := range s.Prims {
				fmt.Fprintf(b, "%20.10E %20.10E\n", p.Exp, p.Coeff)
			}
		}
		fmt.Fprintf(b, "\n")
	}
	switch {
	case W.PureD && W.PureF:
		fmt.Fprintf(b, "[5D7F]\n")
	case W.PureD:
		fmt.Fprintf(b, "[5D10F]\n")
	case W.PureF:
		fmt.Fprintf(b, "[7F]\n")
	}
	fmt.Fprintf(b, "[MO]\n")
	nao := W.NAO()
	for j := 0; j < W.NMO(); j++ {
		fmt.Fprintf(b, " Sym= %s\n Ene= %.8f\n Spin= Alpha\n Occup= %.6f\n", W.Symmetries[j], W.Energies[j], W.Occupations[j])
		for i := 0; i < nao; i++ {
			fmt.Fprintf(b, "%5d %18.12f\n", i+1, W.coefs.At(i, j))
		}
	}
	return b.Flush()
}

// WriteFile writes W to the Molden file name, overwriting it.
func (W *Wavefunction) WriteFile(name, title string) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("molden/WriteFile: %w", err)
	}
	if err := W.Write(f, title); err != nil {
		f.Close()
		return fmt.Errorf("molden/WriteFile: %w", err)
	}
	return f.Close()
}
