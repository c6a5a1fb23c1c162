package domain

import (
	"encoding/json"
	"strings"
)

// Path is an ordered, root-first sequence of category names
type Path []string

func (p Path) String() string {
	return strings.Join(p, " > ")
}

// Key encodes the path as a JSON array so names containing separators stay unambiguous
func (p Path) Key() string {
	if p == nil {
		p = Path{}
	}
	b, _ := json.Marshal([]string(p))
	return string(b)
}

// ParsePathKey is the inverse of Key
func ParsePathKey(key string) (Path, error) {
	var p Path
	if err := json.Unmarshal([]byte(key), &p); err != nil {
		return nil, err
	}
	return p, nil
}

// Child returns a copy of the path extended by name
func (p Path) Child(name string) Path {
	child := make(Path, len(p), len(p)+1)
	copy(child, p)
	return append(child, name)
}

// Parent returns the path without its last name, nil for roots
func (p Path) Parent() Path {
	if len(p) <= 1 {
		return nil
	}
	return p[:len(p)-1]
}

func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}
