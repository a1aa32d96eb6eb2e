// Package queries owns the workspace-local saved-query folder and the
// fetching of external KQL reference sources.
package queries

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// SavedQuery is one .kql file under the queries folder. Category is the
// immediate subfolder; files at the root land in "general".
type SavedQuery struct {
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	KQL         string    `json:"kql"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CategoryCount summarizes one category for get_categories.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Store indexes the queries folder lazily and invalidates on demand (the
// watcher in watch.go drives invalidation when enabled).
type Store struct {
	dir string

	mu      sync.Mutex
	loaded  bool
	queries []SavedQuery
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

// Invalidate drops the in-memory index; the next read rescans the folder.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.queries = nil
	s.mu.Unlock()
}

// List returns saved queries, optionally filtered by category.
func (s *Store) List(category string) ([]SavedQuery, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	if category == "" {
		return all, nil
	}
	var out []SavedQuery
	for _, q := range all {
		if strings.EqualFold(q.Category, category) {
			out = append(out, q)
		}
	}
	return out, nil
}

// Search matches term against name, description, and query text.
func (s *Store) Search(term string) ([]SavedQuery, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return all, nil
	}
	var out []SavedQuery
	for _, q := range all {
		if strings.Contains(strings.ToLower(q.Name), needle) ||
			strings.Contains(strings.ToLower(q.Description), needle) ||
			strings.Contains(strings.ToLower(q.KQL), needle) {
			out = append(out, q)
		}
	}
	return out, nil
}

// Categories lists categories with their query counts, sorted by name.
func (s *Store) Categories() ([]CategoryCount, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, q := range all {
		counts[q.Category]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for cat, n := range counts {
		out = append(out, CategoryCount{Category: cat, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

var queryNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9 _-]*$`)

// Save writes one query file. Name and KQL are required; the name doubles
// as the file stem so it is restricted to a safe character set.
func (s *Store) Save(q SavedQuery) error {
	if q.Name == "" {
		return fmt.Errorf("save query: name is required")
	}
	if !queryNameRe.MatchString(q.Name) {
		return fmt.Errorf("save query: name %q may only contain letters, digits, spaces, - and _", q.Name)
	}
	if strings.TrimSpace(q.KQL) == "" {
		return fmt.Errorf("save query: query text is required")
	}
	if q.Category == "" {
		q.Category = "general"
	}
	if !queryNameRe.MatchString(q.Category) {
		return fmt.Errorf("save query: invalid category %q", q.Category)
	}

	dir := filepath.Join(s.dir, q.Category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save query: %w", err)
	}

	var b strings.Builder
	if q.Description != "" {
		b.WriteString("// description: " + strings.ReplaceAll(q.Description, "\n", " ") + "\n")
	}
	b.WriteString(strings.TrimSpace(q.KQL))
	b.WriteString("\n")

	path := filepath.Join(dir, q.Name+".kql")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("save query: %w", err)
	}

	s.Invalidate()
	return nil
}

func (s *Store) load() ([]SavedQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.queries, nil
	}

	var out []SavedQuery
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".kql") {
			return nil
		}
		q, err := readQueryFile(s.dir, path)
		if err != nil {
			// One unreadable file must not hide the rest.
			return nil
		}
		out = append(out, q)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			s.queries = nil
			return nil, nil
		}
		return nil, fmt.Errorf("scan queries folder: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	s.loaded = true
	s.queries = out
	return out, nil
}

func readQueryFile(root, path string) (SavedQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SavedQuery{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return SavedQuery{}, err
	}

	rel, _ := filepath.Rel(root, path)
	category := "general"
	if dir := filepath.Dir(rel); dir != "." {
		category = strings.Split(filepath.ToSlash(dir), "/")[0]
	}

	q := SavedQuery{
		Name:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Category:  category,
		UpdatedAt: info.ModTime().UTC(),
	}

	lines := strings.Split(string(data), "\n")
	body := lines
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if desc, ok := strings.CutPrefix(trimmed, "// description:"); ok {
			q.Description = strings.TrimSpace(desc)
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}
		body = lines[i:]
		break
	}
	q.KQL = strings.TrimSpace(strings.Join(body, "\n"))
	return q, nil
}
