package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/zapvendas/bot-server-go/internal/model"
)

type ProductRepository interface {
	Upsert(ctx context.Context, params model.UpsertProductParams) error
	FindByID(ctx context.Context, id string) (*model.Product, error)
	All(ctx context.Context) ([]model.Product, error)
	Count(ctx context.Context) (int, error)
}

// productDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type productDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type productRepo struct {
	db productDB
}

func NewProductRepository(db *sqlx.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Upsert(ctx context.Context, params model.UpsertProductParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			embedding = EXCLUDED.embedding,
			updated_at = now()
	`, params.ID, params.Name, params.Description, params.Price, pq.Float64Array(params.Embedding))
	return err
}

func (r *productRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	var product model.Product
	err := r.db.GetContext(ctx, &product, `
		SELECT * FROM products WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) All(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.SelectContext(ctx, &products, `
		SELECT * FROM products ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM products`)
	return count, err
}
