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
 * */

//Package qm implements communication with QM programs
//in such a way that the calculation settings are as separated
//as possible from the choice of QM program to perform that
//calculation. Two programs are supported: ORCA, run as an external
//process, and the native Hartree-Fock engine in the scf package, which
//runs in-process but is driven through the same Handle interface.
//
//All energies are in Hartree and all gradients in Hartree/bohr.
package qm
