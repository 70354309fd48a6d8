/*
 * doc.go, part of godft.
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
/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

/*
Package chem is the main package of godft. It provides atom and molecule structures,
parsing of coordinate blocks, reading and writing of XYZ files (optionally
zstd-compressed), bond detection and some atomic data.

The rest of the library builds on it:

	qm         runs energy calculations with an external program (ORCA) or the native engine
	scf        a small in-process closed-shell Hartree-Fock engine
	molden     reads and writes wavefunctions in Molden format
	opt        a trust-region geometry optimizer
	cube       evaluates orbitals on grids and reads/writes Gaussian cube files
	view       prepares PyMOL or browser sessions with orbital iso-surfaces
	chemplot   plots of optimization profiles and orbital energy levels
	pipeline   chains all of the above, configured by a YAML file

A Molecule is never modified after it is built. Geometry changes produce new molecules.
*/
package chem
