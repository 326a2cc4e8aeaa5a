package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ManifestName is the file listing the staged inputs passed to the binary.
const ManifestName = "ctp_orbital_list"

// Stage symlinks every input into dir under its base name and returns the
// staged paths by input name. Existing links to the same target are reused.
func Stage(dir string, inputs map[string]string) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}

	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	staged := make(map[string]string, len(inputs))
	owner := make(map[string]string, len(inputs))
	for _, name := range names {
		src, err := filepath.Abs(inputs[name])
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", name, err)
		}
		fi, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", name, err)
		}
		if !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("input %s: %s is not a regular file", name, src)
		}

		base := filepath.Base(src)
		if other, ok := owner[base]; ok {
			return nil, fmt.Errorf("inputs %s and %s share the file name %s", other, name, base)
		}
		owner[base] = name

		link := filepath.Join(dir, base)
		if err := symlink(src, link); err != nil {
			return nil, fmt.Errorf("stage input %s: %w", name, err)
		}
		staged[name] = link
	}
	return staged, nil
}

func symlink(target, link string) error {
	current, err := os.Readlink(link)
	switch {
	case err == nil:
		if current == target {
			return nil
		}
		// Left over from an earlier attempt with different inputs.
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("replace stale link %s: %w", link, err)
		}
		return os.Symlink(target, link)
	case errors.Is(err, os.ErrNotExist):
		return os.Symlink(target, link)
	default:
		return fmt.Errorf("%s exists and is not a symlink", link)
	}
}

// WriteManifest writes the base names of the staged inputs to
// dir/ManifestName, one per line, sorted.
func WriteManifest(dir string, staged map[string]string) (string, error) {
	lines := make([]string, 0, len(staged))
	for _, p := range staged {
		lines = append(lines, filepath.Base(p))
	}
	sort.Strings(lines)

	path := filepath.Join(dir, ManifestName)
	body := strings.Join(lines, "\n")
	if len(lines) > 0 {
		body += "\n"
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}
