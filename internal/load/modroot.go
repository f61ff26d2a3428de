package load

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// FindModule locates the go.mod file governing dir by walking up the
// directory tree, and returns the module root directory together with the
// declared module path.
//
// The module path names the ir.Module built from the loaded packages, so
// dumps and CSV exports identify which program they describe.
func FindModule(dir string) (root, path string, err error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", "", err
	}

	for d := abs; ; {
		modPath := filepath.Join(d, "go.mod")
		if _, statErr := os.Stat(modPath); statErr == nil {
			data, readErr := os.ReadFile(modPath)
			if readErr != nil {
				return "", "", fmt.Errorf("reading %s: %w", modPath, readErr)
			}
			mf, parseErr := modfile.Parse(modPath, data, nil)
			if parseErr != nil {
				return "", "", fmt.Errorf("parsing %s: %w", modPath, parseErr)
			}
			if mf.Module == nil {
				return "", "", fmt.Errorf("%s has no module directive", modPath)
			}
			return d, mf.Module.Mod.Path, nil
		}

		parent := filepath.Dir(d)
		if parent == d {
			// Reached the filesystem root.
			return "", "", fmt.Errorf("no go.mod found above %s", abs)
		}
		d = parent
	}
}
