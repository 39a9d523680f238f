package storagemanager

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Entry is one parsed record of the mount table.
type Entry struct {
	Device     string
	MountPoint string
	Type       string
	Options    string
	Freq       int
	PassNo     int
}

func (e Entry) String() string {
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%d", e.Device, e.MountPoint, e.Type, e.Options, e.Freq, e.PassNo)
}

type tableLine struct {
	raw   string // original text, preserved verbatim on save
	entry *Entry // nil for comments, blanks and unparseable lines
}

// Table is the mount table parsed into records. Comments and malformed
// lines pass through untouched; new entries are appended at the end.
// Duplicate detection compares the device field of parsed records only,
// not raw line text, so a path that merely appears inside a comment or an
// unrelated option string does not suppress a mapping.
type Table struct {
	lines []tableLine
}

// LoadTable parses the mount table at path. A missing file yields an empty
// table.
func LoadTable(fsys afero.Fs, path string) (*Table, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Table{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	t := &Table{}
	for _, raw := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		t.lines = append(t.lines, tableLine{raw: raw, entry: parseLine(raw)})
	}
	return t, nil
}

func parseLine(raw string) *Entry {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil
	}
	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return nil
	}
	e := &Entry{Device: fields[0], MountPoint: fields[1], Type: "auto", Options: "defaults"}
	if len(fields) > 2 {
		e.Type = fields[2]
	}
	if len(fields) > 3 {
		e.Options = fields[3]
	}
	if len(fields) > 4 {
		e.Freq, _ = strconv.Atoi(fields[4])
	}
	if len(fields) > 5 {
		e.PassNo, _ = strconv.Atoi(fields[5])
	}
	return e
}

// HasDevice reports whether any parsed record maps the given device.
func (t *Table) HasDevice(device string) bool {
	for _, line := range t.lines {
		if line.entry != nil && line.entry.Device == device {
			return true
		}
	}
	return false
}

// Entries returns the parsed records in file order.
func (t *Table) Entries() []Entry {
	var out []Entry
	for _, line := range t.lines {
		if line.entry != nil {
			out = append(out, *line.entry)
		}
	}
	return out
}

// Append adds a new record at the end of the table.
func (t *Table) Append(e Entry) {
	t.lines = append(t.lines, tableLine{entry: &e})
}

// Save writes the table back. Pre-existing lines are emitted verbatim;
// appended records are formatted.
func (t *Table) Save(fsys afero.Fs, path string) error {
	var b strings.Builder
	for _, line := range t.lines {
		if line.raw != "" || line.entry == nil {
			b.WriteString(line.raw)
		} else {
			b.WriteString(line.entry.String())
		}
		b.WriteByte('\n')
	}
	if err := afero.WriteFile(fsys, path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
