package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/wfharness/wst/internal/config"
	"github.com/wfharness/wst/internal/script"
)

// Test is a discovered test directory.
type Test struct {
	// Name is the slash-separated path of the directory below its root.
	Name   string
	Dir    string
	Script *script.Script
}

// GUI reports the test's GUI classification.
func (t Test) GUI() bool {
	return t.Script.IsGUI()
}

// Discover walks roots and returns every directory holding a scenario file
// whose name matches the include globs and none of the exclude globs.
// Tests are sorted by name. All scenario errors are reported together.
func Discover(roots []string, scenarioFile string, include, exclude []string) ([]Test, error) {
	var (
		tests []Test
		errs  []error
		seen  = make(map[string]string)
	)

	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", root, err)
		}

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				errs = append(errs, fmt.Errorf("access error at %s: %w", path, walkErr))
				return nil
			}
			if !d.IsDir() {
				return nil
			}
			if path != absRoot && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}

			scenarioPath := filepath.Join(path, scenarioFile)
			if !fileExists(scenarioPath) {
				return nil
			}

			name := testName(absRoot, path)
			if !selected(name, include, exclude) {
				return nil
			}
			if other, dup := seen[name]; dup {
				errs = append(errs, fmt.Errorf("duplicate test name %q: %s and %s", name, other, path))
				return nil
			}
			seen[name] = path

			sc, err := script.ParseFile(scenarioPath)
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			tests = append(tests, Test{Name: name, Dir: path, Script: sc})
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	sort.Slice(tests, func(i, j int) bool {
		return tests[i].Name < tests[j].Name
	})
	return tests, errors.Join(errs...)
}

// FilterGUI keeps the tests matching filter.
func FilterGUI(tests []Test, filter config.GUIFilter) []Test {
	if filter == config.GUIAll || filter == "" {
		return tests
	}
	kept := make([]Test, 0, len(tests))
	for _, t := range tests {
		if t.GUI() == (filter == config.GUIOnly) {
			kept = append(kept, t)
		}
	}
	return kept
}

// testName is the directory path below root, or the root's base name when
// the root itself is the test.
func testName(root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return filepath.Base(dir)
	}
	return filepath.ToSlash(rel)
}

func selected(name string, include, exclude []string) bool {
	if len(include) > 0 && !matchesAny(name, include) {
		return false
	}
	return !matchesAny(name, exclude)
}

func matchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, err := doublestar.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// ValidatePatterns rejects malformed globs before a walk silently ignores them.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
