/*
 * read.go, part of godft.
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
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	chem "github.com/rmera/godft"
	"gonum.org/v1/gonum/mat"
)

// ReadFile reads the Molden file name.
func ReadFile(name string) (*Wavefunction, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("molden/ReadFile: %w", err)
	}
	defer f.Close()
	W, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("molden/ReadFile: %s: %w", name, err)
	}
	return W, nil
}

type rawMO struct {
	sym   string
	ene   float64
	occ   float64
	beta  bool
	coefs map[int]float64
}

// reader keeps the state of the parsing.
type reader struct {
	s      *bufio.Scanner
	lineno int
	peeked *string
}

func (r *reader) next() (string, bool) {
	if r.peeked != nil {
		l := *r.peeked
		r.peeked = nil
		return l, true
	}
	if !r.s.Scan() {
		return "", false
	}
	r.lineno++
	return r.s.Text(), true
}

func (r *reader) unread(l string) {
	r.peeked = &l
}

func (r *reader) errorf(format string, a ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", ErrFormat, r.lineno, fmt.Sprintf(format, a...))
}

func isSection(l string) bool {
	return strings.HasPrefix(strings.TrimSpace(l), "[")
}

func sectionName(l string) (name, rest string) {
	l = strings.TrimSpace(l)
	end := strings.Index(l, "]")
	if end < 0 {
		return strings.ToLower(l), ""
	}
	return strings.ToLower(l[1:end]), strings.TrimSpace(l[end+1:])
}

// Read reads a Molden file from r. Only the [Atoms], [GTO], [MO] and
// basis-type flag sections are used, the rest are skipped. Beta-spin MOs are
// ignored, since only closed shells are supported.
func Read(rd io.Reader) (*Wavefunction, error) {
	r := &reader{s: bufio.NewScanner(rd)}
	r.s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var atoms []Atom
	var shells []Shell
	var mos []rawMO
	var pureD, pureF bool
	var err error
	for {
		line, ok := r.next()
		if !ok {
			break
		}
		if !isSection(line) {
			continue
		}
		name, rest := sectionName(line)
		switch name {
		case "atoms":
			atoms, err = r.readAtoms(rest)
		case "gto":
			shells, err = r.readGTO()
		case "mo":
			mos, err = r.readMOs()
		case "5d", "5d7f":
			pureD, pureF = true, true
		case "5d10f":
			pureD, pureF = true, false
		case "7f":
			pureF = true
		}
		if err != nil {
			return nil, err
		}
	}
	if err := r.s.Err(); err != nil {
		return nil, err
	}
	if len(atoms) == 0 {
		return nil, fmt.Errorf("%w: no [Atoms] section", ErrFormat)
	}
	if len(shells) == 0 {
		return nil, fmt.Errorf("%w: no [GTO] section", ErrFormat)
	}
	if len(mos) == 0 {
		return nil, fmt.Errorf("%w: no [MO] section", ErrFormat)
	}
	W := &Wavefunction{Atoms: atoms, Shells: shells, PureD: pureD, PureF: pureF}
	nao := W.NAO()
	alpha := make([]rawMO, 0, len(mos))
	for _, v := range mos {
		if v.beta {
			continue
		}
		alpha = append(alpha, v)
	}
	if len(alpha) != len(mos) {
		log.Printf("molden/Read: ignoring %d beta-spin orbitals", len(mos)-len(alpha))
	}
	sort.SliceStable(alpha, func(i, j int) bool { return alpha[i].ene < alpha[j].ene })
	coefs := mat.NewDense(nao, len(alpha), nil)
	energies := make([]float64, len(alpha))
	occs := make([]float64, len(alpha))
	syms := make([]string, len(alpha))
	for j, v := range alpha {
		for i, c := range v.coefs {
			if i < 1 || i > nao {
				return nil, fmt.Errorf("%w: MO %d has a coefficient for basis function %d, but there are %d", ErrFormat, j+1, i, nao)
			}
			coefs.Set(i-1, j, c)
		}
		energies[j] = v.ene
		occs[j] = v.occ
		syms[j] = v.sym
	}
	ret, err := New(atoms, shells, pureD, pureF, energies, occs, coefs)
	if err != nil {
		return nil, err
	}
	copy(ret.Symmetries, syms)
	return ret, nil
}

func (r *reader) readAtoms(unit string) ([]Atom, error) {
	factor := chem.A2Bohr
	if strings.HasPrefix(strings.ToLower(unit), "au") {
		factor = 1
	}
	var ret []Atom
	for {
		line, ok := r.next()
		if !ok {
			break
		}
		if isSection(line) {
			r.unread(line)
			break
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 6 {
			return nil, r.errorf("atom line with %d fields", len(fields))
		}
		z, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, r.errorf("bad atomic number %q", fields[2])
		}
		a := Atom{Symbol: fields[0], Z: z}
		for k := 0; k < 3; k++ {
			a.Pos[k], err = parseFloat(fields[3+k])
			if err != nil {
				return nil, r.errorf("bad coordinate %q", fields[3+k])
			}
			a.Pos[k] *= factor
		}
		ret = append(ret, a)
	}
	return ret, nil
}

// parseFloat also understands the Fortran D exponent.
func parseFloat(s string) (float64, error) {
	s = strings.Replace(strings.Replace(s, "D", "E", 1), "d", "e", 1)
	return strconv.ParseFloat(s, 64)
}

func (r *reader) readGTO() ([]Shell, error) {
	var ret []Shell
	atom := -1
	for {
		line, ok := r.next()
		if !ok {
			break
		}
		if isSection(line) {
			r.unread(line)
			break
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		//atom header: "index 0"
		if _, err := strconv.Atoi(fields[0]); err == nil {
			idx, _ := strconv.Atoi(fields[0])
			atom = idx - 1
			continue
		}
		if atom < 0 {
			return nil, r.errorf("shell before any atom header")
		}
		if len(fields) < 2 {
			return nil, r.errorf("bad shell header %q", line)
		}
		letter := strings.ToLower(fields[0])
		nprim, err := strconv.Atoi(fields[1])
		if err != nil || nprim < 1 {
			return nil, r.errorf("bad number of primitives %q", fields[1])
		}
		scale := 1.0
		if len(fields) > 2 {
			if scale, err = parseFloat(fields[2]); err != nil {
				return nil, r.errorf("bad scale factor %q", fields[2])
			}
		}
		sp := letter == "sp"
		L := -1
		for i, v := range shellLetters {
			if v == letter {
				L = i
			}
		}
		if L < 0 && !sp {
			return nil, r.errorf("unknown shell type %q", fields[0])
		}
		s := Shell{Atom: atom, L: L}
		p := Shell{Atom: atom, L: 1}
		for i := 0; i < nprim; i++ {
			l, ok := r.next()
			if !ok {
				return nil, r.errorf("file ended inside a shell")
			}
			pf := strings.Fields(l)
			if len(pf) < 2 || (sp && len(pf) < 3) {
				return nil, r.errorf("bad primitive line %q", l)
			}
			vals := make([]float64, len(pf))
			for k, v := range pf {
				if vals[k], err = parseFloat(v); err != nil {
					return nil, r.errorf("bad number %q", v)
				}
			}
			e := vals[0] * scale * scale
			if sp {
				s.L = 0
				s.Prims = append(s.Prims, Primitive{Exp: e, Coeff: vals[1]})
				p.Prims = append(p.Prims, Primitive{Exp: e, Coeff: vals[2]})
				continue
			}
			s.Prims = append(s.Prims, Primitive{Exp: e, Coeff: vals[1]})
		}
		ret = append(ret, s)
		if sp {
			ret = append(ret, p)
		}
	}
	return ret, nil
}

func (r *reader) readMOs() ([]rawMO, error) {
	var ret []rawMO
	var cur *rawMO
	for {
		line, ok := r.next()
		if !ok {
			break
		}
		if isSection(line) {
			r.unread(line)
			break
		}
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if k, v, found := strings.Cut(t, "="); found {
			key := strings.ToLower(strings.TrimSpace(k))
			val := strings.TrimSpace(v)
			//a keyword after coefficients starts a new MO
			if cur == nil || len(cur.coefs) > 0 {
				ret = append(ret, rawMO{sym: "A", coefs: make(map[int]float64)})
				cur = &ret[len(ret)-1]
			}
			var err error
			switch key {
			case "sym":
				cur.sym = val
			case "ene":
				cur.ene, err = parseFloat(val)
			case "spin":
				cur.beta = strings.HasPrefix(strings.ToLower(val), "beta")
			case "occup":
				cur.occ, err = parseFloat(val)
			}
			if err != nil {
				return nil, r.errorf("bad value for %s: %q", k, val)
			}
			continue
		}
		if cur == nil {
			return nil, r.errorf("coefficients before any MO header")
		}
		fields := strings.Fields(t)
		if len(fields) != 2 {
			return nil, r.errorf("bad coefficient line %q", t)
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, r.errorf("bad basis function index %q", fields[0])
		}
		c, err := parseFloat(fields[1])
		if err != nil {
			return nil, r.errorf("bad coefficient %q", fields[1])
		}
		cur.coefs[idx] = c
	}
	return ret, nil
}
