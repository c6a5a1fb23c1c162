package category

import "bjs/parser/internal/domain"

// Clean drops empty names from every candidate path and then drops candidates left empty.
// Source records carry null entries which decode to empty strings.
func Clean(candidates [][]string) []domain.Path {
	cleaned := make([]domain.Path, 0, len(candidates))
	for _, candidate := range candidates {
		var path domain.Path
		for _, name := range candidate {
			if name != "" {
				path = append(path, name)
			}
		}
		if len(path) > 0 {
			cleaned = append(cleaned, path)
		}
	}
	return cleaned
}

// Normalize picks the deepest candidate path. Equal lengths resolve to the first one seen.
// Returns nil when no candidate survives cleaning.
func Normalize(candidates [][]string) domain.Path {
	var best domain.Path
	for _, path := range Clean(candidates) {
		if len(path) > len(best) {
			best = path
		}
	}
	return best
}
