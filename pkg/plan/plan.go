package plan

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Layout selects how output paths are derived from input paths.
type Layout string

const (
	// LayoutTree mirrors the input directory structure under the output root.
	LayoutTree Layout = "tree"
	// LayoutFlat places every file directly in the output root.
	LayoutFlat Layout = "flat"
	// LayoutInPlace writes back to the source file.
	LayoutInPlace Layout = "in-place"
)

// ParseLayout validates a layout name.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case LayoutTree, LayoutFlat, LayoutInPlace:
		return l, nil
	default:
		return "", fmt.Errorf("unknown layout %q (want tree, flat or in-place)", s)
	}
}

// Operation represents a planned write from source to destination.
type Operation struct {
	SourcePath      string
	DestinationPath string
}

// InPlace reports whether the operation rewrites its source.
func (op Operation) InPlace() bool {
	return filepath.Clean(op.SourcePath) == filepath.Clean(op.DestinationPath)
}

// Destination computes the output path for a slash-separated path relative
// to the input root.
//
// In flat layout, a name that is already in existingFiles gets a suffix _N
// before the extension, where N starts at 1.
func Destination(destRoot string, rel string, layout Layout, existingFiles map[string]bool) string {
	switch layout {
	case LayoutFlat:
		return resolveCollision(destRoot, path.Base(rel), existingFiles)
	default:
		dst := filepath.Join(destRoot, filepath.FromSlash(rel))
		if existingFiles != nil {
			existingFiles[dst] = true
		}
		return dst
	}
}

// resolveCollision claims a name for filename in dir. Names already claimed
// in taken get the lowest free _N suffix before the extension.
func resolveCollision(dir string, filename string, taken map[string]bool) string {
	if taken == nil {
		taken = make(map[string]bool)
	}

	candidate := filepath.Join(dir, filename)
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for n := 1; taken[candidate]; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}

	taken[candidate] = true
	return candidate
}

// Plan computes an operation for every relative source path, in order.
// Sources are resolved against srcRoot; in-place layout ignores destRoot.
func Plan(srcRoot, destRoot string, sources []string, layout Layout) []Operation {
	existingFiles := make(map[string]bool)
	operations := make([]Operation, 0, len(sources))

	for _, rel := range sources {
		src := filepath.Join(srcRoot, filepath.FromSlash(rel))

		dest := src
		if layout != LayoutInPlace {
			dest = Destination(destRoot, rel, layout, existingFiles)
		}

		operations = append(operations, Operation{
			SourcePath:      src,
			DestinationPath: dest,
		})
	}

	return operations
}
