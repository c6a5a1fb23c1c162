package category

import (
	"sort"

	"bjs/parser/internal/domain"
)

// ExclusionSet is a prefix-closed set of excluded category paths
type ExclusionSet struct {
	rules map[string]domain.Path
}

// NewExclusionSet expands every rule into all of its non-empty prefixes
func NewExclusionSet(rules []domain.Path) *ExclusionSet {
	set := &ExclusionSet{
		rules: make(map[string]domain.Path),
	}
	for _, rule := range rules {
		for depth := 1; depth <= len(rule); depth++ {
			prefix := rule[:depth]
			set.rules[prefix.Key()] = append(domain.Path(nil), prefix...)
		}
	}
	return set
}

func (s *ExclusionSet) Contains(path domain.Path) bool {
	if len(path) == 0 {
		return false
	}
	_, ok := s.rules[path.Key()]
	return ok
}

// Excluded reports whether any prefix of any candidate path matches a rule
func (s *ExclusionSet) Excluded(candidates [][]string) bool {
	for _, path := range Clean(candidates) {
		for depth := 1; depth <= len(path); depth++ {
			if s.Contains(path[:depth]) {
				return true
			}
		}
	}
	return false
}

func (s *ExclusionSet) Len() int {
	return len(s.rules)
}

// Rules returns the expanded rule set ordered by key
func (s *ExclusionSet) Rules() []domain.Path {
	keys := make([]string, 0, len(s.rules))
	for key := range s.rules {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rules := make([]domain.Path, 0, len(keys))
	for _, key := range keys {
		rules = append(rules, s.rules[key])
	}
	return rules
}
