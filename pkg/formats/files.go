package formats

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Faultbox/meshforge/pkg/geometry"
)

// invalidFileNameChars are rejected by at least one supported filesystem.
const invalidFileNameChars = `<>:"/\|?*`

// SanitizeFileName replaces characters that are invalid in file names with
// '_'. Each invalid rune, and each byte that is not valid UTF-8, maps to
// exactly one '_', so the byte length is unchanged.
func SanitizeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); {
		r, size := utf8.DecodeRuneInString(name[i:])
		switch {
		case r == utf8.RuneError && size <= 1:
			b.WriteByte('_')
			size = 1
		case r < 0x20 || strings.ContainsRune(invalidFileNameChars, r):
			b.WriteByte('_')
		default:
			b.WriteString(name[i : i+size])
		}
		i += size
	}
	return b.String()
}

// AssetFileName returns the file name for a group saved under base. When the
// geometry holds several groups the group's label is appended so each group
// gets its own file.
func AssetFileName(base string, group *geometry.LODGroup, multiple bool) string {
	base = strings.TrimSuffix(base, geometry.AssetFileExtension)
	name := base
	if multiple {
		name = base + "_" + group.Label()
	}
	return SanitizeFileName(name) + geometry.AssetFileExtension
}

// AssetFileNames returns one file name per group, in group order. Groups
// whose labels collide get their index appended so no two groups share a
// file. Names are compared case-insensitively.
func AssetFileNames(base string, groups []*geometry.LODGroup) []string {
	multiple := len(groups) > 1
	names := make([]string, len(groups))
	used := make(map[string]bool, len(groups))
	for i, group := range groups {
		name := AssetFileName(base, group, multiple)
		stem := strings.TrimSuffix(name, geometry.AssetFileExtension)
		for n := i; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d%s", stem, n, geometry.AssetFileExtension)
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so a failed write never leaves a partial file at path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("writing temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Chmod(perm); err != nil {
		return cleanup(fmt.Errorf("setting permissions: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
