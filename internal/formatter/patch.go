package formatter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// Script types shown in the header.
const (
	TypePatch  = "Patch Script"
	TypeRevert = "Revert Script"
)

// HeaderDateLayout formats the creation date shown in the header.
const HeaderDateLayout = "Mon, Jan 02, 2006"

var headerTemplate = template.Must(template.New("header").Parse(`--
-- Schema Sync {{.AppVersion}} {{.Type}}
-- Created: {{.Created}}
-- Server Version: {{.ServerVersion}}
-- Apply To: {{.Host}}:{{.Port}}/{{.Database}}
--

`))

// Header describes the run a script belongs to.
type Header struct {
	AppVersion    string
	Type          string
	Created       string
	ServerVersion string
	Host          string
	Port          int
	Database      string
}

// PatchBuffer accumulates one script in memory and writes it to disk on
// Save. Nothing touches the file system before Save.
type PatchBuffer struct {
	name      string
	header    Header
	filters   []Filter
	versioned bool

	buf      strings.Builder
	modified bool
	saved    bool
}

// NewPatchBuffer creates a buffer that will be saved as name. When
// versioned is set an existing file is never overwritten; a numbered name
// is chosen instead.
func NewPatchBuffer(name string, header Header, filters []Filter, versioned bool) *PatchBuffer {
	return &PatchBuffer{
		name:      name,
		header:    header,
		filters:   filters,
		versioned: versioned,
	}
}

// Write implements io.Writer.
func (b *PatchBuffer) Write(p []byte) (int, error) {
	b.modified = true
	return b.buf.Write(p)
}

// WriteString appends s.
func (b *PatchBuffer) WriteString(s string) (int, error) {
	b.modified = true
	return b.buf.WriteString(s)
}

// Modified reports whether anything was written.
func (b *PatchBuffer) Modified() bool {
	return b.modified
}

// Name returns the file name; after a versioned Save it is the name
// actually used.
func (b *PatchBuffer) Name() string {
	return b.name
}

// Render returns the header followed by the filtered body.
func (b *PatchBuffer) Render() (string, error) {
	var out strings.Builder
	if err := headerTemplate.Execute(&out, b.header); err != nil {
		return "", fmt.Errorf("failed to render header: %w", err)
	}
	out.WriteString(applyFilters(b.buf.String(), b.filters))
	return out.String(), nil
}

// Save writes the rendered script. It reports false without writing when
// the buffer is empty.
func (b *PatchBuffer) Save() (bool, error) {
	if b.buf.Len() == 0 {
		return false, nil
	}

	content, err := b.Render()
	if err != nil {
		return false, err
	}

	if b.versioned {
		name, err := Versioned(b.name)
		if err != nil {
			return false, fmt.Errorf("failed to version %s: %w", b.name, err)
		}
		b.name = name
	}

	// a partially written file is removed by Delete as well
	b.saved = true
	if err := os.WriteFile(b.name, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", b.name, err)
	}
	return true, nil
}

// Delete removes the file written by Save, if any.
func (b *PatchBuffer) Delete() error {
	if !b.saved {
		return nil
	}
	if err := os.Remove(b.name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	b.saved = false
	return nil
}

// ScriptOptions configures a Script.
type ScriptOptions struct {
	Dir        string
	Tag        string
	NoDate     bool
	Versioned  bool
	AppVersion string
	Now        time.Time
	Filters    []Filter
}

// Script assembles the patch and revert files of one database. Both files
// receive their blocks in the order the pairs are added.
type Script struct {
	database string
	patch    *PatchBuffer
	revert   *PatchBuffer
	count    int
}

// NewScript prepares the scripts for database. header supplies the server
// and address fields; its Type, Created, Database and AppVersion are filled
// in here.
func NewScript(database string, header Header, opts ScriptOptions) *Script {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	filters := opts.Filters
	if filters == nil {
		filters = DefaultFilters
	}

	patchName, revertName := ScriptNames(database, NameOptions{Tag: opts.Tag, NoDate: opts.NoDate, Now: now})

	header.AppVersion = opts.AppVersion
	header.Created = now.Format(HeaderDateLayout)
	header.Database = database

	ph, rh := header, header
	ph.Type = TypePatch
	rh.Type = TypeRevert

	return &Script{
		database: database,
		patch:    NewPatchBuffer(filepath.Join(opts.Dir, patchName), ph, filters, opts.Versioned),
		revert:   NewPatchBuffer(filepath.Join(opts.Dir, revertName), rh, filters, opts.Versioned),
	}
}

// Add appends one (forward, backward) pair. The first pair is preceded by
// a USE statement selecting the database.
func (s *Script) Add(forward, backward string) {
	if s.count == 0 {
		use := "USE `" + strings.ReplaceAll(s.database, "`", "``") + "`;\n"
		_, _ = s.patch.WriteString(use)
		_, _ = s.revert.WriteString(use)
	}
	s.count++
	_, _ = s.patch.WriteString(forward + "\n")
	_, _ = s.revert.WriteString(backward + "\n")
}

// Len returns the number of pairs added.
func (s *Script) Len() int {
	return s.count
}

// Patch returns the patch buffer.
func (s *Script) Patch() *PatchBuffer {
	return s.patch
}

// Revert returns the revert buffer.
func (s *Script) Revert() *PatchBuffer {
	return s.revert
}

// Save writes both files. Nothing is written when no pair was added. If
// either file fails, both are removed.
func (s *Script) Save() (bool, error) {
	if s.count == 0 {
		return false, nil
	}

	if _, err := s.patch.Save(); err != nil {
		s.Delete()
		return false, err
	}
	if _, err := s.revert.Save(); err != nil {
		s.Delete()
		return false, err
	}
	return true, nil
}

// Delete removes both saved files.
func (s *Script) Delete() {
	_ = s.patch.Delete()
	_ = s.revert.Delete()
}
