// Package elfsize computes Berkeley-style section size totals (text, data,
// bss) of ELF firmware images and prints them in the layout of `size -B`,
// so fwstat can check upload sizes without binutils installed.
package elfsize

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/samber/lo"
)

// Radix selects how the text, data and bss columns are printed.
type Radix int

const (
	Decimal Radix = iota
	Octal
	Hex
)

// berkeleyRow is the row layout of GNU size -B: right-aligned columns
// separated by tabs.
const berkeleyRow = "%7s\t%7s\t%7s\t%7s\t%7s\t%s\n"

// ErrNotELF is returned for files that are not ELF images.
var ErrNotELF = errors.New("not an ELF file")

// Sizes holds the section totals of one file.
type Sizes struct {
	Text     uint64
	Data     uint64
	BSS      uint64
	Filename string
}

// Dec returns the total of all three columns.
func (s Sizes) Dec() uint64 {
	return s.Text + s.Data + s.BSS
}

// Read opens an ELF file and totals its allocated sections.
func Read(path string) (Sizes, error) {
	f, err := elf.Open(path)
	if err != nil {
		var formatErr *elf.FormatError
		if errors.As(err, &formatErr) {
			return Sizes{}, fmt.Errorf("%s: %w", path, ErrNotELF)
		}
		return Sizes{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sizes := Sizes{Filename: path}
	for _, section := range f.Sections {
		sizes.add(section.Flags, section.Type, section.Size)
	}
	return sizes, nil
}

// add accounts one section the way `size -B` does: non-allocated sections are
// ignored, executable or read-only sections count as text, sections with file
// contents as data and the rest as bss.
func (s *Sizes) add(flags elf.SectionFlag, typ elf.SectionType, size uint64) {
	if flags&elf.SHF_ALLOC == 0 {
		return
	}
	switch {
	case flags&elf.SHF_EXECINSTR != 0 || flags&elf.SHF_WRITE == 0:
		s.Text += size
	case typ != elf.SHT_NOBITS:
		s.Data += size
	default:
		s.BSS += size
	}
}

// Total sums a list of sizes into a "(TOTALS)" row.
func Total(all []Sizes) Sizes {
	return lo.Reduce(all, func(acc Sizes, s Sizes, _ int) Sizes {
		acc.Text += s.Text
		acc.Data += s.Data
		acc.BSS += s.BSS
		return acc
	}, Sizes{Filename: "(TOTALS)"})
}

// WriteBerkeley prints the header and one row per file. The total column is
// octal for Octal and decimal otherwise; the hex column is always hexadecimal.
func WriteBerkeley(w io.Writer, all []Sizes, radix Radix, totals bool) error {
	dec := "dec"
	if radix == Octal {
		dec = "oct"
	}
	if _, err := fmt.Fprintf(w, berkeleyRow, "text", "data", "bss", dec, "hex", "filename"); err != nil {
		return err
	}

	rows := all
	if totals {
		rows = append(append([]Sizes{}, all...), Total(all))
	}
	for _, s := range rows {
		if _, err := fmt.Fprintf(w, berkeleyRow,
			formatNum(s.Text, radix), formatNum(s.Data, radix), formatNum(s.BSS, radix),
			formatTotal(s.Dec(), radix), strconv.FormatUint(s.Dec(), 16), s.Filename); err != nil {
			return err
		}
	}
	return nil
}

func formatNum(v uint64, radix Radix) string {
	switch radix {
	case Octal:
		return fmt.Sprintf("%#o", v)
	case Hex:
		return fmt.Sprintf("%#x", v)
	default:
		return fmt.Sprintf("%d", v)
	}
}

func formatTotal(v uint64, radix Radix) string {
	if radix == Octal {
		return fmt.Sprintf("%o", v)
	}
	return fmt.Sprintf("%d", v)
}
