package repository

import (
	"context"
	"database/sql"
	"io"
	"log"
	"testing"
	"time"

	"bjs/parser/internal/domain"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

type rowCounter func(t *testing.T, table string) int

// checkInventoryBackend runs the same category and product writes against any backend
func checkInventoryBackend(t *testing.T, repo InventoryRepository, count rowCounter) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)

	home, err := tx.InsertCategoryIfNew(ctx, domain.Category{Name: "Home", Store: "bjs"})
	require.NoError(t, err)
	again, err := tx.InsertCategoryIfNew(ctx, domain.Category{Name: "Home", Store: "bjs"})
	require.NoError(t, err)
	require.Equal(t, home, again, "root lookup must match a NULL parent")

	decor, err := tx.InsertCategoryIfNew(ctx, domain.Category{Name: "Decor", Store: "bjs", ParentID: &home})
	require.NoError(t, err)
	decorAgain, err := tx.InsertCategoryIfNew(ctx, domain.Category{Name: "Decor", Store: "bjs", ParentID: &home})
	require.NoError(t, err)
	require.Equal(t, decor, decorAgain)

	rootDecor, err := tx.InsertCategoryIfNew(ctx, domain.Category{Name: "Decor", Store: "bjs"})
	require.NoError(t, err)
	require.NotEqual(t, decor, rootDecor)

	otherStore, err := tx.InsertCategoryIfNew(ctx, domain.Category{Name: "Home", Store: "costco"})
	require.NoError(t, err)
	require.NotEqual(t, home, otherStore)

	stocked := true
	require.NoError(t, tx.InsertProduct(ctx, domain.Product{
		Name: "Table Lamp", CategoryID: decor, URL: "/product/table-lamp/1", Store: "bjs", Stocked: &stocked,
	}))
	require.NoError(t, tx.InsertProduct(ctx, domain.Product{
		Name: "Wall Art", CategoryID: decor, URL: "/product/wall-art/2", Store: "bjs",
	}))
	require.NoError(t, tx.Commit(ctx))

	require.Equal(t, 4, count(t, "categories"))
	require.Equal(t, 2, count(t, "products"))

	discarded, err := repo.Begin(ctx)
	require.NoError(t, err)
	garden, err := discarded.InsertCategoryIfNew(ctx, domain.Category{Name: "Garden", Store: "bjs"})
	require.NoError(t, err)
	require.NoError(t, discarded.InsertProduct(ctx, domain.Product{
		Name: "Hose", CategoryID: garden, URL: "/product/hose/3", Store: "bjs",
	}))
	require.NoError(t, discarded.Rollback(ctx))
	require.NoError(t, discarded.Rollback(ctx))

	require.Equal(t, 4, count(t, "categories"))
	require.Equal(t, 2, count(t, "products"))
}

func TestSQLiteBackend(t *testing.T) {
	db, repo := setupMemory(t)
	checkInventoryBackend(t, repo, func(t *testing.T, table string) int {
		return countRows(t, db, table)
	})
}

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string, scheme string) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started:          true,
		ContainerRequest: req,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate %s: %v", req.Image, err)
		}
	})

	endpoint, err := c.PortEndpoint(ctx, nat.Port(port), scheme)
	require.NoError(t, err)
	return endpoint
}

func TestPostgresBackend(t *testing.T) {
	endpoint := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "bjs",
			"POSTGRES_PASSWORD": "bjs",
			"POSTGRES_DB":       "inventory",
		},
		// the server restarts once after running its init scripts
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute),
	}, "5432/tcp", "")
	dsn := "postgres://bjs:bjs@" + endpoint + "/inventory?sslmode=disable"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	checkInventoryBackend(t, repo, func(t *testing.T, table string) int {
		t.Helper()
		var n int
		require.NoError(t, pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
		return n
	})
}

func TestLibsqlBackend(t *testing.T) {
	url := startContainer(t, testcontainers.ContainerRequest{
		Image:        "ghcr.io/tursodatabase/libsql-server:latest",
		ExposedPorts: []string{"8080/tcp"},
		WaitingFor:   wait.ForListeningPort("8080/tcp").WithStartupTimeout(time.Minute),
	}, "8080/tcp", "http")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := OpenLibsql(ctx, url, "")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	db, err := sql.Open("libsql", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	checkInventoryBackend(t, repo, func(t *testing.T, table string) int {
		return countRows(t, db, table)
	})
}
