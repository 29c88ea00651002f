package models

import (
	"fmt"
	"sort"
	"strings"
)

// Category is a resolved grouping label. Values are only produced by a
// CategorySet, so every Category in a run is either a declared label or
// CategoryUnknown.
type Category string

// CategoryUnknown is the reserved bucket for entities whose category is NULL.
const CategoryUnknown Category = "UNKNOWN"

func (c Category) String() string {
	return string(c)
}

// IsUnknown reports whether c is the reserved UNKNOWN bucket.
func (c Category) IsUnknown() bool {
	return c == CategoryUnknown
}

// CategorySet resolves raw category labels into Category values once, at load time.
// An empty set is open: any non-empty label becomes its own category.
type CategorySet struct {
	allowed map[string]Category
}

// NewCategorySet builds a closed set from labels, or an open set when labels is empty.
// Labels are matched case-insensitively and stored upper-cased.
func NewCategorySet(labels []string) *CategorySet {
	set := &CategorySet{}
	if len(labels) == 0 {
		return set
	}
	set.allowed = make(map[string]Category, len(labels)+1)
	for _, l := range labels {
		norm := strings.ToUpper(strings.TrimSpace(l))
		if norm == "" {
			continue
		}
		set.allowed[norm] = Category(norm)
	}
	set.allowed[string(CategoryUnknown)] = CategoryUnknown
	return set
}

// Closed reports whether only declared labels are accepted.
func (s *CategorySet) Closed() bool {
	return s.allowed != nil
}

// Resolve maps a raw label to a Category. NULL and blank labels map to
// CategoryUnknown; labels outside a closed set are rejected.
func (s *CategorySet) Resolve(raw *string) (Category, error) {
	if raw == nil {
		return CategoryUnknown, nil
	}
	norm := strings.ToUpper(strings.TrimSpace(*raw))
	if norm == "" {
		return CategoryUnknown, nil
	}
	if s.allowed == nil {
		return Category(norm), nil
	}
	c, ok := s.allowed[norm]
	if !ok {
		return "", fmt.Errorf("category %q is not one of %s", *raw, strings.Join(s.Labels(), ", "))
	}
	return c, nil
}

// Labels returns the declared labels in sorted order (nil for an open set).
func (s *CategorySet) Labels() []string {
	if s.allowed == nil {
		return nil
	}
	out := make([]string, 0, len(s.allowed))
	for k := range s.allowed {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
