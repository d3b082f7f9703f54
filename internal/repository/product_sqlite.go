package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/internal/domain"
	_ "modernc.org/sqlite"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(dbPath string) (*ProductRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// an in-memory database lives per connection
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return &ProductRepository{db: db}, nil
}

func (r *ProductRepository) RunMigrations(migrationsPath string) error {
	return migrateSQLite(r.db, migrationsPath)
}

func (r *ProductRepository) Close() error {
	return r.db.Close()
}

const productColumns = `id, name, slug, category, image, price, count_in_stock, is_published, created_at`

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Category,
		&p.Image,
		&p.Price,
		&p.CountInStock,
		&p.IsPublished,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProductRepository) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// GetProductsByIDs returns the products found, in the order of ids. Unknown ids are skipped.
func (r *ProductRepository) GetProductsByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return []*domain.Product{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + placeholders(len(ids)) + `)`

	found, err := r.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*domain.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	ordered := make([]*domain.Product, 0, len(found))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok && !seen[id] {
			ordered = append(ordered, p)
			seen[id] = true
		}
	}
	return ordered, nil
}

// GetRelatedProducts returns published products from the given categories, newest first,
// leaving out excludeIDs.
func (r *ProductRepository) GetRelatedProducts(ctx context.Context, categories []string, excludeIDs []int64, limit int) ([]*domain.Product, error) {
	if len(categories) == 0 || limit <= 0 {
		return []*domain.Product{}, nil
	}

	args := make([]any, 0, len(categories)+len(excludeIDs)+1)
	for _, c := range categories {
		args = append(args, c)
	}

	query := `SELECT ` + productColumns + ` FROM products
	          WHERE is_published = 1 AND category IN (` + placeholders(len(categories)) + `)`
	if len(excludeIDs) > 0 {
		query += ` AND id NOT IN (` + placeholders(len(excludeIDs)) + `)`
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	return r.queryProducts(ctx, query, args...)
}
