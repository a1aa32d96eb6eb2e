// Package bootstrap seeds a fresh workspace with starter KQL queries so
// the saved-query tools have something to surface before anyone saves
// their own.
package bootstrap

import (
	"embed"
	"os"
	"path/filepath"
	"strings"
)

//go:embed templates
var templateFS embed.FS

// EnsureStarterQueries copies the embedded starter queries into queriesDir,
// preserving category subfolders. Existing files are never overwritten.
// Returns the relative paths created.
func EnsureStarterQueries(queriesDir string) ([]string, error) {
	entries, err := listTemplates()
	if err != nil {
		return nil, err
	}

	var created []string
	for _, rel := range entries {
		dst := filepath.Join(queriesDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return created, err
		}
		ok, err := seedFile("templates/"+rel, dst)
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, rel)
		}
	}
	return created, nil
}

func listTemplates() ([]string, error) {
	var out []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := templateFS.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			path := dir + "/" + e.Name()
			if e.IsDir() {
				if err := walk(path); err != nil {
					return err
				}
				continue
			}
			out = append(out, strings.TrimPrefix(path, "templates/"))
		}
		return nil
	}
	if err := walk("templates"); err != nil {
		return nil, err
	}
	return out, nil
}

// seedFile writes one embedded file to dst unless dst already exists.
// O_EXCL keeps a concurrent seeder from clobbering a user's edit.
func seedFile(src, dst string) (bool, error) {
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	content, err := templateFS.ReadFile(src)
	if err != nil {
		os.Remove(dst)
		return false, err
	}
	if _, err := f.Write(content); err != nil {
		return false, err
	}
	return true, nil
}
