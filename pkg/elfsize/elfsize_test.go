package elfsize

import (
	"bytes"
	"debug/elf"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizes_Add(t *testing.T) {
	var s Sizes

	s.add(elf.SHF_ALLOC|elf.SHF_EXECINSTR, elf.SHT_PROGBITS, 1000) // .text
	s.add(elf.SHF_ALLOC, elf.SHT_PROGBITS, 200)                    // .rodata
	s.add(elf.SHF_ALLOC|elf.SHF_WRITE, elf.SHT_PROGBITS, 30)       // .data
	s.add(elf.SHF_ALLOC|elf.SHF_WRITE, elf.SHT_NOBITS, 400)        // .bss
	s.add(0, elf.SHT_PROGBITS, 9999)                               // .debug_info

	assert.Equal(t, uint64(1200), s.Text)
	assert.Equal(t, uint64(30), s.Data)
	assert.Equal(t, uint64(400), s.BSS)
	assert.Equal(t, uint64(1630), s.Dec())
}

func TestWriteBerkeley_MatchesDefaultPatterns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBerkeley(&buf, []Sizes{{Text: 24120, Data: 184, BSS: 1850, Filename: "firmware.elf"}}, Decimal, false))

	assert.Equal(t, "   text\t   data\t    bss\t    dec\t    hex\tfilename\n"+
		"  24120\t    184\t   1850\t  26154\t   662a\tfirmware.elf\n", buf.String())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"text", "data", "bss", "dec", "hex", "filename"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"24120", "184", "1850", "26154", "662a", "firmware.elf"}, strings.Fields(lines[1]))

	prog := regexp.MustCompile(`^(\d+)\s+(\d+)\s+\d+\s`)
	data := regexp.MustCompile(`^\d+\s+(\d+)\s+(\d+)\s+\d+`)
	row := strings.TrimSpace(lines[1])
	assert.Equal(t, []string{"24120", "184"}, prog.FindStringSubmatch(row)[1:])
	assert.Equal(t, []string{"184", "1850"}, data.FindStringSubmatch(row)[1:])
}

func TestWriteBerkeley_RadixAndTotals(t *testing.T) {
	all := []Sizes{
		{Text: 16, Data: 8, BSS: 1, Filename: "a.elf"},
		{Text: 16, Data: 0, BSS: 0, Filename: "b.elf"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBerkeley(&buf, all, Hex, true))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"0x10", "0x8", "0x1", "25", "19", "a.elf"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"0x20", "0x8", "0x1", "41", "29", "(TOTALS)"}, strings.Fields(lines[3]))

	buf.Reset()
	require.NoError(t, WriteBerkeley(&buf, all[:1], Octal, false))
	lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "oct", strings.Fields(lines[0])[3])
	assert.Equal(t, []string{"020", "010", "01", "31", "19", "a.elf"}, strings.Fields(lines[1]))
}

func TestRead_TestBinary(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("test binary is only an ELF image on linux")
	}

	exe, err := os.Executable()
	require.NoError(t, err)

	sizes, err := Read(exe)
	require.NoError(t, err)
	assert.Positive(t, sizes.Text)
	assert.Equal(t, exe, sizes.Filename)
}

func TestRead_NotELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firmware.hex")
	require.NoError(t, os.WriteFile(path, []byte(":100000000C9434000C943E000C943E000C943E0082\n"), 0o600))

	_, err := Read(path)
	require.ErrorIs(t, err, ErrNotELF)
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.elf"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotELF)
}
