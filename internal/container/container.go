package container

import (
	"context"
	"errors"
	"fmt"

	"bjs/parser/internal/category"
	"bjs/parser/internal/client"
	"bjs/parser/internal/config"
	"bjs/parser/internal/domain"
	"bjs/parser/internal/inventory"
	"bjs/parser/internal/proxy"
	"bjs/parser/internal/repository"
	"bjs/parser/internal/service"
	"bjs/parser/internal/state"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container builds the components each command needs and releases them on Close
type Container struct {
	Config *config.Config

	closers []func() error
}

// New creates a container for the given configuration; resources are opened by the commands
func New(cfg *config.Config) *Container {
	return &Container{
		Config: cfg,
	}
}

// Download fetches the full inventory from the search API into the snapshot at inventoryPath
func (c *Container) Download(ctx context.Context, inventoryPath string, resume bool) (*domain.Inventory, error) {
	proxySupplier, err := proxy.NewProxySupplier(ctx, c.Config.Search.Proxies, c.Config.Search.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize proxy supplier: %w", err)
	}

	searchClient := client.NewSearchClient(c.Config.Search, proxySupplier)
	snapshot := inventory.NewSnapshot(c.inventoryPath(inventoryPath))

	return service.NewDownloader(searchClient, snapshot, resume).Download(ctx)
}

// Populate loads the snapshot at inventoryPath into the store
func (c *Container) Populate(ctx context.Context, databasePath, inventoryPath string) (service.IngestStats, error) {
	inv, err := inventory.Load(c.inventoryPath(inventoryPath))
	if err != nil {
		return service.IngestStats{}, err
	}
	return c.ingest(ctx, databasePath, inv)
}

// Sync downloads the inventory and ingests it in one go
func (c *Container) Sync(ctx context.Context, databasePath, inventoryPath string, resume bool) (service.IngestStats, error) {
	inv, err := c.Download(ctx, inventoryPath, resume)
	if err != nil {
		return service.IngestStats{}, err
	}
	return c.ingest(ctx, databasePath, inv)
}

// Walk collects the inventory through the browser category walk and saves it at inventoryPath.
// A non-empty databasePath also ingests the result.
func (c *Container) Walk(ctx context.Context, inventoryPath, databasePath string) (*domain.Inventory, error) {
	cache, err := c.resumeCache(ctx)
	if err != nil {
		return nil, err
	}

	proxySupplier, err := proxy.NewProxySupplier(ctx, c.Config.Search.Proxies, c.Config.Browser.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize proxy supplier: %w", err)
	}

	browser, err := client.NewBrowser(ctx, c.Config.Browser, proxySupplier)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func() error {
		browser.Close()
		return nil
	})

	inv, err := service.NewWalker(browser, cache).Walk(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := inventory.NewSnapshot(c.inventoryPath(inventoryPath))
	if err := snapshot.Save(inv); err != nil {
		return nil, err
	}
	log.Infof("✅ Walk finished with %d records in %s", len(inv.Items), snapshot.Path())

	if databasePath != "" {
		if _, err := c.ingest(ctx, databasePath, inv); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Debug("Shutting down container...")

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil

	return errors.Join(errs...)
}

func (c *Container) ingest(ctx context.Context, databasePath string, inv *domain.Inventory) (service.IngestStats, error) {
	rules, err := c.Config.Ingest.Rules()
	if err != nil {
		return service.IngestStats{}, err
	}

	repo, err := c.openRepository(ctx, databasePath)
	if err != nil {
		return service.IngestStats{}, err
	}
	c.closers = append(c.closers, repo.Close)

	exclusions := category.NewExclusionSet(rules)
	log.Debugf("Excluding %d category paths", exclusions.Len())

	return service.NewIngester(repo, exclusions, c.Config.Ingest.Store).Ingest(ctx, inv)
}

// openRepository connects to the configured store. The database argument, when given,
// replaces the configured location: a file path for sqlite, a URL for libsql, a DSN for postgres.
func (c *Container) openRepository(ctx context.Context, database string) (repository.InventoryRepository, error) {
	cfg := c.Config.Database

	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if database != "" {
			path = database
		}
		log.Infof("🔗 Opening SQLite database %s", path)
		return repository.OpenSQLite(ctx, path)
	case "libsql":
		url := cfg.URL
		if database != "" {
			url = database
		}
		log.Infof("🔗 Connecting to libsql database %s", url)
		return repository.OpenLibsql(ctx, url, cfg.AuthToken)
	case "postgres":
		dsn := repository.PostgresDSN(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
		if database != "" {
			dsn = database
		}
		log.Infof("🔗 Connecting to PostgreSQL at %s:%d", cfg.Host, cfg.Port)
		return repository.OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func (c *Container) resumeCache(ctx context.Context) (state.ResumeCache, error) {
	switch c.Config.Cache.Backend {
	case "", "file":
		return state.NewFileResumeCache(c.Config.Cache.ItemsPath, c.Config.Cache.CompletedPath)
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", c.Config.Redis.Host, c.Config.Redis.Port),
			Password: c.Config.Redis.Password,
			DB:       c.Config.Redis.Database,
		})
		c.closers = append(c.closers, rdb.Close)

		if _, err := rdb.Ping(ctx).Result(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis successfully")

		return state.NewRedisResumeCache(rdb, c.Config.Redis.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", c.Config.Cache.Backend)
	}
}

func (c *Container) inventoryPath(path string) string {
	if path != "" {
		return path
	}
	return c.Config.Inventory.Path
}
