package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Discovery selects the documents to ingest.
type Discovery struct {
	// Roots are the directories to scan.
	Roots []string
	// Include holds slash-separated glob patterns relative to each root.
	// "**" matches any number of directories, including none.
	Include []string
	// Exclude patterns win over Include. A pattern without a slash matches
	// the file name anywhere below the root.
	Exclude []string
}

// Discover returns the matching files, deduplicated and sorted. Missing roots
// are skipped.
func (d Discovery) Discover() ([]string, error) {
	if len(d.Roots) == 0 || len(d.Include) == 0 {
		return nil, errors.New("discovery requires at least one root and one include pattern")
	}
	for _, p := range append(append([]string(nil), d.Include...), d.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid discovery pattern %q", p)
		}
	}

	seen := map[string]bool{}
	var out []string
	for _, root := range d.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving root %s: %w", root, err)
		}
		err = filepath.WalkDir(abs, func(p string, e fs.DirEntry, err error) error {
			if err != nil {
				if p == abs && errors.Is(err, fs.ErrNotExist) {
					return fs.SkipDir
				}
				return err
			}
			if e.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(abs, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if !d.included(rel) || d.excluded(rel) || seen[p] {
				return nil
			}
			seen[p] = true
			out = append(out, p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", abs, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d Discovery) included(rel string) bool {
	for _, p := range d.Include {
		if MatchGlob(p, rel) {
			return true
		}
	}
	return false
}

func (d Discovery) excluded(rel string) bool {
	name := path.Base(rel)
	for _, p := range d.Exclude {
		if MatchGlob(p, rel) {
			return true
		}
		if !strings.Contains(p, "/") && MatchGlob(p, name) {
			return true
		}
	}
	return false
}

// MatchGlob reports whether the slash-separated path rel matches pattern.
// A "**" segment matches zero or more path segments. Malformed patterns
// never match; Discover rejects them up front.
func MatchGlob(pattern, rel string) bool {
	ok, err := doublestar.Match(pattern, rel)
	return err == nil && ok
}
