package repository

import (
	"context"
	"errors"
	"fmt"

	"bjs/parser/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS categories (
	id BIGSERIAL PRIMARY KEY,
	name TEXT,
	store TEXT,
	parentid BIGINT REFERENCES categories(id)
);
CREATE TABLE IF NOT EXISTS products (
	name TEXT,
	categoryid BIGINT REFERENCES categories(id),
	url TEXT,
	store TEXT,
	stocked BOOLEAN
);`

type postgresRepository struct {
	db *pgxpool.Pool
}

// OpenPostgres connects to a Postgres server and applies the schema
func OpenPostgres(ctx context.Context, dsn string) (InventoryRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	cfg.MaxConns = 1

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &postgresRepository{db: db}, nil
}

func PostgresDSN(host string, port int, user, password, name string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, name)
}

func (r *postgresRepository) Begin(ctx context.Context) (InventoryTx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &postgresTx{tx: tx}, nil
}

func (r *postgresRepository) Close() error {
	r.db.Close()
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) InsertCategoryIfNew(ctx context.Context, category domain.Category) (int64, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id FROM categories WHERE name = $1 AND store = $2 AND parentid IS NOT DISTINCT FROM $3`,
		category.Name, category.Store, category.ParentID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up category %q: %w", category.Name, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("failed to look up category %q: %w", category.Name, err)
	}

	switch len(ids) {
	case 0:
		var id int64
		err := t.tx.QueryRow(ctx,
			`INSERT INTO categories (name, store, parentid) VALUES ($1, $2, $3) RETURNING id`,
			category.Name, category.Store, category.ParentID).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("failed to insert category %q: %w", category.Name, err)
		}
		return id, nil
	case 1:
		return ids[0], nil
	default:
		return 0, duplicateError(category, len(ids))
	}
}

func (t *postgresTx) InsertProduct(ctx context.Context, product domain.Product) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO products (name, categoryid, url, store, stocked) VALUES ($1, $2, $3, $4, $5)`,
		product.Name, product.CategoryID, product.URL, product.Store, product.Stocked)
	if err != nil {
		return fmt.Errorf("failed to insert product %q: %w", product.Name, err)
	}
	return nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
