package data

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Errors returned by the DAVE reader.
var (
	ErrDaveFormat    = errors.New("data: malformed DAVE group file")
	ErrDaveTruncated = errors.New("data: truncated DAVE group file")
)

// LoadDave reads a DAVE grouped-data file from disk.
func LoadDave(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data: open dave file: %w", err)
	}
	defer f.Close()

	ds, err := ReadDave(f)
	if err != nil {
		return nil, fmt.Errorf("data: %s: %w", path, err)
	}

	return ds, nil
}

// ReadDave parses the DAVE grouped-data text format:
//
//	# comment lines start with '#'
//	<number of energy values>
//	<number of q groups>
//	<energy values, one per line>
//	<q values, one per line>
//	<for each group, one line per energy: "<intensity> <error>">
//
// Comment lines are permitted anywhere and ignored. The groups appear in the
// same order as the q values.
func ReadDave(r io.Reader) (*Dataset, error) {
	sc := newDaveScanner(r)

	nx, err := sc.nextInt()
	if err != nil {
		return nil, err
	}

	nq, err := sc.nextInt()
	if err != nil {
		return nil, err
	}

	if nx <= 0 || nq <= 0 {
		return nil, fmt.Errorf("%w: %d energies, %d groups", ErrDaveFormat, nx, nq)
	}

	x := make([]float64, nx)
	for i := range x {
		if x[i], err = sc.nextFloat(); err != nil {
			return nil, err
		}
	}

	qs := make([]float64, nq)
	for i := range qs {
		if qs[i], err = sc.nextFloat(); err != nil {
			return nil, err
		}
	}

	spectra := make([]Spectrum, nq)
	for g := range spectra {
		s := Spectrum{
			Q: qs[g],
			X: append([]float64(nil), x...),
			Y: make([]float64, nx),
			E: make([]float64, nx),
		}

		for i := 0; i < nx; i++ {
			fields, err := sc.nextFields()
			if err != nil {
				return nil, err
			}
			if len(fields) != 2 {
				return nil, fmt.Errorf("%w: group %d row %d has %d columns, want 2", ErrDaveFormat, g, i, len(fields))
			}

			if s.Y[i], err = parseFloat(fields[0]); err != nil {
				return nil, err
			}
			if s.E[i], err = parseFloat(fields[1]); err != nil {
				return nil, err
			}
		}

		spectra[g] = s
	}

	return NewDataset(spectra)
}

type daveScanner struct {
	sc *bufio.Scanner
}

func newDaveScanner(r io.Reader) *daveScanner {
	return &daveScanner{sc: bufio.NewScanner(r)}
}

// nextFields returns the whitespace-separated fields of the next
// non-comment, non-blank line.
func (d *daveScanner) nextFields() ([]string, error) {
	for d.sc.Scan() {
		line := strings.TrimSpace(d.sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		return strings.Fields(line), nil
	}

	if err := d.sc.Err(); err != nil {
		return nil, fmt.Errorf("data: reading dave file: %w", err)
	}

	return nil, ErrDaveTruncated
}

func (d *daveScanner) nextInt() (int, error) {
	fields, err := d.nextFields()
	if err != nil {
		return 0, err
	}
	if len(fields) != 1 {
		return 0, fmt.Errorf("%w: expected single integer, got %q", ErrDaveFormat, strings.Join(fields, " "))
	}

	v, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrDaveFormat, fields[0])
	}

	return v, nil
}

func (d *daveScanner) nextFloat() (float64, error) {
	fields, err := d.nextFields()
	if err != nil {
		return 0, err
	}
	if len(fields) != 1 {
		return 0, fmt.Errorf("%w: expected single value, got %q", ErrDaveFormat, strings.Join(fields, " "))
	}

	return parseFloat(fields[0])
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrDaveFormat, s)
	}

	return v, nil
}
