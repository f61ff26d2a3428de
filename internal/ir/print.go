package ir

import (
	"fmt"
	"io"
	"strings"
)

// WriteText writes a human-readable dump of the module. The format is
// stable enough to grep and diff in tests and post-codegen verification,
// but is not a parseable interchange format.
func (m *Module) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "; module %s\n", m.Name); err != nil {
		return err
	}
	for _, f := range m.Funcs {
		if f.IsDeclaration() {
			if _, err := fmt.Fprintf(w, "\ndeclare %s\n", f.Name); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "\ndefine %s {\n", f.Name); err != nil {
			return err
		}
		for _, b := range f.Blocks {
			name := b.Name
			if name == "" {
				name = "entry"
			}
			if _, err := fmt.Fprintf(w, "%s:\n", name); err != nil {
				return err
			}
			for _, in := range b.Instrs {
				if _, err := fmt.Fprintf(w, "  %s\n", in); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprintln(w, "}"); err != nil {
			return err
		}
	}
	return nil
}

// String renders the module dump as a string. Convenience for tests and
// diagnostics; WriteText is the streaming form.
func (m *Module) String() string {
	var sb strings.Builder
	_ = m.WriteText(&sb)
	return sb.String()
}
