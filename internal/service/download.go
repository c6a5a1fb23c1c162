package service

import (
	"context"
	"fmt"

	"bjs/parser/internal/client"
	"bjs/parser/internal/domain"
	"bjs/parser/internal/inventory"

	log "github.com/sirupsen/logrus"
)

// Downloader pages through the search API until every record has been fetched,
// saving the snapshot after each page
type Downloader struct {
	client   client.SearchClient
	snapshot *inventory.Snapshot
	resume   bool
}

func NewDownloader(client client.SearchClient, snapshot *inventory.Snapshot, resume bool) *Downloader {
	return &Downloader{
		client:   client,
		snapshot: snapshot,
		resume:   resume,
	}
}

func (d *Downloader) Download(ctx context.Context) (*domain.Inventory, error) {
	inv, skip, err := d.start()
	if err != nil {
		return nil, err
	}

	for {
		page, err := d.client.Search(ctx, skip)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch records at offset %d: %w", skip, err)
		}

		inv.Items = append(inv.Items, page.Items...)
		if err := d.snapshot.Save(inv); err != nil {
			return nil, err
		}

		log.Infof("✅ Downloaded records %d-%d of %d", skip, page.RecordEnd, page.TotalRecordCount)

		if page.Done() {
			break
		}
		if page.RecordEnd <= skip {
			return nil, fmt.Errorf("%w: offset %d, record end %d", ErrNoProgress, skip, page.RecordEnd)
		}
		skip = page.RecordEnd
	}

	log.Infof("✅ Download finished with %d records in %s", len(inv.Items), d.snapshot.Path())
	return inv, nil
}

// start returns the inventory to extend and the offset to request first
func (d *Downloader) start() (*domain.Inventory, int, error) {
	if d.resume {
		exists, err := d.snapshot.Exists()
		if err != nil {
			return nil, 0, err
		}
		if exists {
			inv, err := d.snapshot.Load()
			if err != nil {
				return nil, 0, err
			}
			log.Infof("🔄 Resuming download from offset %d", len(inv.Items))
			return inv, len(inv.Items), nil
		}
	}

	inv, err := d.snapshot.Reset()
	if err != nil {
		return nil, 0, err
	}
	return inv, 0, nil
}
