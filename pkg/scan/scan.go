package scan

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
)

// Mode selects how candidates are enumerated.
type Mode string

const (
	// ModeTree walks the input recursively.
	ModeTree Mode = "tree"
	// ModeGlob matches Pattern against paths relative to the root.
	ModeGlob Mode = "glob"
)

type Options struct {
	Mode Mode

	// MaxDepth limits tree mode recursion; -1 means unlimited, 0 only the root.
	MaxDepth int

	// Pattern is used in glob mode, e.g. "*.jp*".
	Pattern string

	// Extensions filters candidates by extension. Empty admits every regular file.
	Extensions []string
}

func DefaultOptions() Options {
	return Options{
		Mode:     ModeTree,
		MaxDepth: -1,
		Pattern:  "*.jp*",
		Extensions: []string{
			".jpg", ".jpeg", ".jpe", ".png",
		},
	}
}

type Record struct {
	Path          string    `json:"path"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	ModTime       time.Time `json:"mod_time"`
}

// Skipped is a directory entry that was seen but not returned.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

const (
	ReasonSymlink    = "symlink"
	ReasonNotRegular = "not a regular file"
)

// Listing is the result of ScanRecords.
type Listing struct {
	Records []Record
	Skipped []Skipped
}

func Scan(fsys fs.FS, root string, opts Options) ([]string, error) {
	listing, err := ScanRecords(fsys, root, opts)
	if err != nil {
		return nil, err
	}

	matches := make([]string, 0, len(listing.Records))
	for _, r := range listing.Records {
		matches = append(matches, r.Path)
	}
	return matches, nil
}

// ScanRecords enumerates regular files under root. Symlinks are never
// followed; they are reported in Listing.Skipped together with other special
// files. Dot-files are ignored.
func ScanRecords(fsys fs.FS, root string, opts Options) (Listing, error) {
	if opts.MaxDepth < -1 {
		return Listing{}, fs.ErrInvalid
	}

	maxDepth := opts.MaxDepth
	switch opts.Mode {
	case ModeTree, "":
	case ModeGlob:
		if _, err := path.Match(opts.Pattern, ""); err != nil || opts.Pattern == "" {
			return Listing{}, fs.ErrInvalid
		}
		maxDepth = depth(opts.Pattern)
	default:
		return Listing{}, fs.ErrInvalid
	}

	exts := normalizeExts(opts.Extensions)

	var listing Listing

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			// Unreadable entries below the root are reported, not fatal.
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				rel = p
			}
			listing.Skipped = append(listing.Skipped, Skipped{Path: filepath.ToSlash(rel), Reason: err.Error()})
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			if maxDepth >= 0 && depth(rel) > maxDepth {
				return fs.SkipDir
			}
			return nil
		}

		if maxDepth >= 0 && depth(rel) > maxDepth {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			listing.Skipped = append(listing.Skipped, Skipped{Path: rel, Reason: ReasonSymlink})
			return nil
		}
		if !d.Type().IsRegular() {
			listing.Skipped = append(listing.Skipped, Skipped{Path: rel, Reason: ReasonNotRegular})
			return nil
		}

		if opts.Mode == ModeGlob {
			if ok, _ := path.Match(opts.Pattern, rel); !ok {
				return nil
			}
		}

		if len(exts) > 0 && !exts[strings.ToLower(path.Ext(rel))] {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		listing.Records = append(listing.Records, Record{
			Path:          rel,
			FileSizeBytes: info.Size(),
			ModTime:       info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return Listing{}, err
	}

	sort.Slice(listing.Records, func(i, j int) bool {
		return natural.Less(listing.Records[i].Path, listing.Records[j].Path)
	})
	return listing, nil
}

func normalizeExts(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, ext := range exts {
		e := strings.TrimSpace(strings.ToLower(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m[e] = true
	}
	return m
}

func depth(rel string) int {
	rel = path.Clean(filepath.ToSlash(rel))
	if rel == "." {
		return 0
	}
	return strings.Count(rel, "/")
}
