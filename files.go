/*
 * files.go, part of godft.
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
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	v3 "github.com/rmera/godft/v3"
)

// ParseError is returned when a coordinate block or XYZ file is ill-formed.
// Line is 1-based.
type ParseError struct {
	File   string
	Line   int
	Text   string
	Reason string
}

func (err *ParseError) Error() string {
	f := ""
	if err.File != "" {
		f = err.File + ":"
	}
	return fmt.Sprintf("chem: %sline %d %q: %s", f, err.Line, err.Text, err.Reason)
}

// parseAtomLine parses a "<symbol> <x> <y> <z>" line.
func parseAtomLine(line string, lineno int) (AtomRecord, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return AtomRecord{}, &ParseError{Line: lineno, Text: line, Reason: fmt.Sprintf("expected 4 fields, got %d", len(fields))}
	}
	var rec AtomRecord
	rec.Symbol = fields[0]
	for i, v := range fields[1:] {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return AtomRecord{}, &ParseError{Line: lineno, Text: line, Reason: fmt.Sprintf("coordinate %d (%q) is not a finite number", i+1, v)}
		}
		rec.Pos[i] = f
	}
	return rec, nil
}

// ParseXYZBlock parses a block of text with one atom per non-empty line,
// in the format "<symbol> <x> <y> <z>", coordinates in Angstrom.
// The records are returned in the same order as the lines. A block without
// atoms gives an empty slice and no error.
func ParseXYZBlock(block string) ([]AtomRecord, error) {
	lines := strings.Split(block, "\n")
	ret := make([]AtomRecord, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := parseAtomLine(line, i+1)
		if err != nil {
			return nil, err
		}
		ret = append(ret, rec)
	}
	return ret, nil
}

// XYZRead reads the first frame of a standard XYZ file (atom count line,
// comment line, one atom per line) from r.
func XYZRead(r io.Reader) ([]AtomRecord, error) {
	frames, err := readXYZFrames(r, 1)
	if err != nil {
		return nil, err
	}
	return frames[0], nil
}

// readXYZFrames reads up to max frames (all of them if max<1).
func readXYZFrames(r io.Reader, max int) ([][]AtomRecord, error) {
	s := bufio.NewScanner(r)
	lineno := 0
	next := func() (string, bool) {
		if !s.Scan() {
			return "", false
		}
		lineno++
		return s.Text(), true
	}
	frames := make([][]AtomRecord, 0, 1)
	for max < 1 || len(frames) < max {
		line, ok := next()
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" && len(frames) > 0 {
			continue //trailing empty lines
		}
		natoms, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || natoms <= 0 {
			return nil, &ParseError{Line: lineno, Text: line, Reason: "expected a positive atom count"}
		}
		if _, ok := next(); !ok { //comment line, we don't care about it
			return nil, &ParseError{Line: lineno, Reason: "missing comment line"}
		}
		frame := make([]AtomRecord, 0, natoms)
		for i := 0; i < natoms; i++ {
			line, ok := next()
			if !ok {
				return nil, &ParseError{Line: lineno, Reason: fmt.Sprintf("file ended after %d of %d atoms", i, natoms)}
			}
			fields := strings.Fields(line)
			if len(fields) > 4 {
				line = strings.Join(fields[:4], " ") //some programs add extra columns
			}
			rec, err := parseAtomLine(line, lineno)
			if err != nil {
				return nil, err
			}
			frame = append(frame, rec)
		}
		frames = append(frames, frame)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("chem/readXYZFrames: %w", err)
	}
	if len(frames) == 0 {
		return nil, &ParseError{Line: lineno, Reason: "no frames found"}
	}
	return frames, nil
}

// XYZFileRead reads the first frame of the XYZ file name. Files ending in ".zst"
// are decompressed on the fly.
func XYZFileRead(name string) ([]AtomRecord, error) {
	errid := "chem/XYZFileRead"
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errid, err)
	}
	defer f.Close()
	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(name), ".zst") {
		d, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errid, err)
		}
		defer d.Close()
		r = d
	}
	recs, err := XYZRead(r)
	if perr, ok := err.(*ParseError); ok {
		perr.File = name
	}
	return recs, err
}

// XYZWrite writes coords and atoms in XYZ format to w, with comment as the second line.
func XYZWrite(w io.Writer, coords *v3.Matrix, atoms Atomer, comment string) error {
	if coords.NVecs() != atoms.Len() {
		return fmt.Errorf("chem/XYZWrite: %d coordinates for %d atoms", coords.NVecs(), atoms.Len())
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%-4d\n", atoms.Len())
	fmt.Fprintf(bw, "%s\n", strings.ReplaceAll(comment, "\n", " "))
	for i := 0; i < atoms.Len(); i++ {
		c := coords.Vec(i)
		if _, err := fmt.Fprintf(bw, "%-2s  %12.6f %12.6f %12.6f\n", atoms.Atom(i).Symbol, c[0], c[1], c[2]); err != nil {
			return fmt.Errorf("chem/XYZWrite: %w", err)
		}
	}
	return bw.Flush()
}

// nopCloser lets us treat plain files and zstd encoders the same way.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// createMaybeCompressed creates the file name, and returns a writer for it that
// compresses with zstd if the name ends in ".zst". Both returned closers must be called,
// the compressor first.
func createMaybeCompressed(name string) (io.WriteCloser, *os.File, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasSuffix(strings.ToLower(name), ".zst") {
		return nopCloser{f}, f, nil
	}
	z, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return z, f, nil
}

// XYZFileWrite writes coords and atoms to the XYZ file name, overwriting it
// if it exists. Names ending in ".zst" are zstd-compressed.
func XYZFileWrite(name string, coords *v3.Matrix, atoms Atomer, comment string) error {
	return XYZTrajFileWrite(name, []*v3.Matrix{coords}, atoms, []string{comment})
}

// XYZTrajFileWrite writes several frames to a multi-frame XYZ file. comments may be nil or
// contain one comment per frame. Names ending in ".zst" are zstd-compressed.
func XYZTrajFileWrite(name string, frames []*v3.Matrix, atoms Atomer, comments []string) error {
	errid := "chem/XYZTrajFileWrite"
	w, f, err := createMaybeCompressed(name)
	if err != nil {
		return fmt.Errorf("%s: %w", errid, err)
	}
	for i, c := range frames {
		comment := ""
		if i < len(comments) {
			comment = comments[i]
		}
		if err := XYZWrite(w, c, atoms, comment); err != nil {
			w.Close()
			f.Close()
			return fmt.Errorf("%s: frame %d: %w", errid, i, err)
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", errid, err)
	}
	return f.Close()
}

// XYZTrajFileRead reads all frames from a (possibly zstd-compressed) multi-frame XYZ file.
func XYZTrajFileRead(name string) ([][]AtomRecord, error) {
	errid := "chem/XYZTrajFileRead"
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errid, err)
	}
	defer f.Close()
	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(name), ".zst") {
		d, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errid, err)
		}
		defer d.Close()
		r = d
	}
	return readXYZFrames(r, 0)
}
