package service

import (
	"context"
	"fmt"

	"bjs/parser/internal/category"
	"bjs/parser/internal/domain"
	"bjs/parser/internal/repository"

	log "github.com/sirupsen/logrus"
)

type IngestStats struct {
	Products      int
	Excluded      int
	Uncategorized int
}

// Ingester loads an inventory snapshot into the category tree and product tables
type Ingester struct {
	repository repository.InventoryRepository
	exclusions *category.ExclusionSet
	store      string
}

func NewIngester(repository repository.InventoryRepository, exclusions *category.ExclusionSet, store string) *Ingester {
	return &Ingester{
		repository: repository,
		exclusions: exclusions,
		store:      store,
	}
}

// Ingest writes every included record in a single transaction; nothing is committed on error
func (i *Ingester) Ingest(ctx context.Context, inventory *domain.Inventory) (stats IngestStats, err error) {
	tx, err := i.repository.Begin(ctx)
	if err != nil {
		return stats, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Errorf("❌ Failed to roll back ingestion: %v", rbErr)
			}
		}
	}()

	log.Infof("🔄 Ingesting %d records for store %s", len(inventory.Items), i.store)

	for _, item := range inventory.Items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if i.exclusions.Excluded(item.Categories) {
			log.Debugf("Skipping excluded %s", item.Name)
			stats.Excluded++
			continue
		}

		path := category.Normalize(item.Categories)
		if path == nil {
			log.Warnf("No category information for %s", item.Name)
			stats.Uncategorized++
			continue
		}

		categoryID, err := i.ensurePath(ctx, tx, path)
		if err != nil {
			return stats, err
		}

		if err := tx.InsertProduct(ctx, domain.Product{
			Name:       item.Name,
			CategoryID: categoryID,
			URL:        item.URL,
			Store:      i.store,
		}); err != nil {
			return stats, err
		}
		stats.Products++
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, err
	}

	log.Infof("✅ Ingested %d products (%d excluded, %d without category)",
		stats.Products, stats.Excluded, stats.Uncategorized)
	return stats, nil
}

// ensurePath resolves the path root to leaf, creating missing categories, and returns the leaf id
func (i *Ingester) ensurePath(ctx context.Context, tx repository.InventoryTx, path domain.Path) (int64, error) {
	var parentID *int64
	for _, name := range path {
		id, err := tx.InsertCategoryIfNew(ctx, domain.Category{
			Name:     name,
			Store:    i.store,
			ParentID: parentID,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to resolve category %s: %w", path, err)
		}
		parentID = &id
	}
	return *parentID, nil
}
