package formatter

import (
	"fmt"
	"io"
	"path/filepath"
)

// TextFormatter writes rendered scripts to a stream instead of files
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the patch and then the revert script of s, each introduced
// by the file name it would be saved under. An empty script writes nothing.
func (f *TextFormatter) Format(s *Script) error {
	if s.Len() == 0 {
		return nil
	}

	for i, buf := range []*PatchBuffer{s.Patch(), s.Revert()} {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between scripts
		}

		content, err := buf.Render()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(f.writer, "-- %s\n%s", filepath.Base(buf.Name()), content); err != nil {
			return fmt.Errorf("failed to write %s: %w", filepath.Base(buf.Name()), err)
		}
	}
	return nil
}
