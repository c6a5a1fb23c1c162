package repository

import (
	"context"
	"errors"

	"bjs/parser/internal/domain"
)

// ErrDuplicateCategory means more than one row matched a (name, store, parent) triple,
// which correct operation can never produce
var ErrDuplicateCategory = errors.New("multiple category rows match")

type InventoryRepository interface {
	// Begin opens the transaction an ingestion run writes through
	Begin(ctx context.Context) (InventoryTx, error)
	Close() error
}

type InventoryTx interface {
	// InsertCategoryIfNew returns the id of the category matching name, store and parent,
	// inserting it first when absent
	InsertCategoryIfNew(ctx context.Context, category domain.Category) (int64, error)
	InsertProduct(ctx context.Context, product domain.Product) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
