package state

import (
	"context"

	"bjs/parser/internal/domain"
)

// ResumeCache records which category subtrees a walk has finished and the items collected per path
type ResumeCache interface {
	Completed(ctx context.Context, path domain.Path) (bool, error)
	Items(ctx context.Context, path domain.Path) (map[string]domain.Item, bool, error)
	PutItems(ctx context.Context, path domain.Path, items map[string]domain.Item) error
	// RollUp stores items as the entry of path and drops the entries of its direct children
	RollUp(ctx context.Context, path domain.Path, items map[string]domain.Item) error
	MarkCompleted(ctx context.Context, path domain.Path) error
}

func isDirectChild(key string, parent domain.Path) bool {
	path, err := domain.ParsePathKey(key)
	if err != nil {
		return false
	}
	return len(path) == len(parent)+1 && path.Parent().Equal(parent)
}
