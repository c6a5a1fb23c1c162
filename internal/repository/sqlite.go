package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bjs/parser/internal/domain"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Executed one statement at a time; the libsql driver does not accept batches through Exec
var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	store TEXT,
	parentid INTEGER,
	FOREIGN KEY(parentid) REFERENCES categories(id)
)`, `
CREATE TABLE IF NOT EXISTS products (
	name TEXT,
	categoryid INTEGER,
	url TEXT,
	store TEXT,
	stocked INTEGER,
	FOREIGN KEY(categoryid) REFERENCES categories(id)
)`}

type sqlRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) an SQLite database file. ":memory:" is accepted.
func OpenSQLite(ctx context.Context, path string) (InventoryRepository, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// One writer; an in-memory database also lives on a single connection
	db.SetMaxOpenConns(1)

	return newSQLRepository(ctx, db)
}

// OpenLibsql opens a remote libsql database
func OpenLibsql(ctx context.Context, url, authToken string) (InventoryRepository, error) {
	dsn := url
	if authToken != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		dsn = url + sep + "authToken=" + authToken
	}

	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql %s: %w", url, err)
	}
	db.SetMaxOpenConns(1)

	return newSQLRepository(ctx, db)
}

// NewSQLRepository wraps an already opened SQLite-dialect database
func NewSQLRepository(ctx context.Context, db *sql.DB) (InventoryRepository, error) {
	return newSQLRepository(ctx, db)
}

func newSQLRepository(ctx context.Context, db *sql.DB) (*sqlRepository, error) {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &sqlRepository{db: db}, nil
}

func (r *sqlRepository) Begin(ctx context.Context) (InventoryTx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

func (r *sqlRepository) Close() error {
	return r.db.Close()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) InsertCategoryIfNew(ctx context.Context, category domain.Category) (int64, error) {
	var parent interface{}
	if category.ParentID != nil {
		parent = *category.ParentID
	}

	rows, err := t.tx.QueryContext(ctx,
		`SELECT id FROM categories WHERE name = ? AND store = ? AND parentid IS ?`,
		category.Name, category.Store, parent)
	if err != nil {
		return 0, fmt.Errorf("failed to look up category %q: %w", category.Name, err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return 0, fmt.Errorf("failed to look up category %q: %w", category.Name, err)
	}

	switch len(ids) {
	case 0:
		res, err := t.tx.ExecContext(ctx,
			`INSERT INTO categories (name, store, parentid) VALUES (?, ?, ?)`,
			category.Name, category.Store, parent)
		if err != nil {
			return 0, fmt.Errorf("failed to insert category %q: %w", category.Name, err)
		}
		return res.LastInsertId()
	case 1:
		return ids[0], nil
	default:
		return 0, duplicateError(category, len(ids))
	}
}

func (t *sqlTx) InsertProduct(ctx context.Context, product domain.Product) error {
	var stocked interface{}
	if product.Stocked != nil {
		stocked = *product.Stocked
	}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO products (name, categoryid, url, store, stocked) VALUES (?, ?, ?, ?, ?)`,
		product.Name, product.CategoryID, product.URL, product.Store, stocked)
	if err != nil {
		return fmt.Errorf("failed to insert product %q: %w", product.Name, err)
	}
	return nil
}

func (t *sqlTx) Commit(ctx context.Context) error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func duplicateError(category domain.Category, count int) error {
	parent := "NULL"
	if category.ParentID != nil {
		parent = fmt.Sprint(*category.ParentID)
	}
	return fmt.Errorf("%w: %d rows for name=%q store=%q parentid=%s",
		ErrDuplicateCategory, count, category.Name, category.Store, parent)
}
