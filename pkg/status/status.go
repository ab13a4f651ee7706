// Package status reads and writes the append-only status file: one block
// per build holding the commit summary, the size report and a blank line.
package status

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/yaklabco/fwstat/pkg/sizecheck"
)

const filePerm = 0o644

// Entry is one block of the status file.
type Entry struct {
	// Commit is the one-line summary of the commit that was built. It is
	// empty when the commit could not be determined.
	Commit string

	// Lines is the size report printed for the build.
	Lines []string
}

// String renders the entry as it is stored: the commit line, the report
// lines and a terminating blank line.
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.Commit)
	b.WriteByte('\n')
	for _, line := range e.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// NewEntry builds an entry from a commit summary and a captured report.
func NewEntry(commit, report string) Entry {
	report = strings.TrimRight(report, "\n")
	var lines []string
	if report != "" {
		lines = strings.Split(report, "\n")
	}
	return Entry{Commit: commit, Lines: lines}
}

// Append adds entry to the end of the file at path, creating it if needed.
// Existing content is never truncated.
func Append(path string, entry Entry) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("opening status file: %w", err)
	}

	if _, err := io.WriteString(file, entry.String()); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing status file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing status file: %w", err)
	}
	return nil
}

// Read returns the entries of the status file at path, oldest first.
func Read(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening status file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse splits status-file content into entries, inverting Entry.String:
// the first line of a block is its commit line, possibly empty, and a blank
// line ends the block. A build with neither a commit nor a report is stored
// as two blank lines and parses back to an empty entry.
func Parse(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		current *Entry
	)
	flush := func() {
		if current == nil {
			return
		}
		// Blocks written without a commit line start with the report.
		if current.Commit == sizecheck.Banner {
			current.Lines = append([]string{current.Commit}, current.Lines...)
			current.Commit = ""
		}
		entries = append(entries, *current)
		current = nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case current == nil:
			current = &Entry{Commit: line}
		case strings.TrimSpace(line) == "":
			flush()
		default:
			current.Lines = append(current.Lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading status file: %w", err)
	}
	flush()

	return entries, nil
}

// Last returns the n most recent entries; n <= 0 returns all of them.
func Last(entries []Entry, n int) []Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[len(entries)-n:]
}

// ErrNoEntries is returned when there is nothing to render.
var ErrNoEntries = errors.New("status file has no entries")

// RenderMarkdown renders entries newest first as a markdown document.
func RenderMarkdown(entries []Entry) string {
	var b strings.Builder
	b.WriteString("# Build status\n")
	newestFirst := slices.Clone(entries)
	slices.Reverse(newestFirst)
	for _, entry := range newestFirst {
		heading := entry.Commit
		if heading == "" {
			heading = "(unknown commit)"
		}
		fmt.Fprintf(&b, "\n## %s\n\n", heading)
		if len(entry.Lines) == 0 {
			b.WriteString("_No size report._\n")
			continue
		}
		b.WriteString("```\n")
		for _, line := range entry.Lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteString("```\n")
	}
	return b.String()
}
