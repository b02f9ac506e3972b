package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"catalogsync/internal/model"
)

const uniqueViolation = "23505"

const productColumns = "article, name, price, model, sizes, created_at, updated_at"

// ProductRepository is the Postgres ProductStore.
type ProductRepository struct {
	DB *pgxpool.Pool
}

func (r *ProductRepository) FindByArticle(ctx context.Context, article int) (model.Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE article = $1`, article)
	p, err := scanProduct(row)
	if err != nil {
		return model.Product{}, translate(err, "find", article)
	}
	return p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	if err := checkRange("create", p); err != nil {
		return model.Product{}, err
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO products (article, name, price, model, sizes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+productColumns,
		p.Article, strings.ToValidUTF8(p.Name, ""), p.Price, p.Model, toInt32(p.Sizes))
	created, err := scanProduct(row)
	if err != nil {
		return model.Product{}, translate(err, "create", p.Article)
	}
	return created, nil
}

func (r *ProductRepository) UpdateSizes(ctx context.Context, article int, sizes []int) error {
	if err := checkSizes("update sizes", article, sizes); err != nil {
		return err
	}
	tag, err := r.DB.Exec(ctx, `
		UPDATE products
		SET sizes = $1, updated_at = now()
		WHERE article = $2
	`, toInt32(sizes), article)
	if err != nil {
		return translate(err, "update sizes", article)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update sizes %d: %w", article, ErrNotFound)
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p model.Product) (model.Product, error) {
	if err := checkRange("update", p); err != nil {
		return model.Product{}, err
	}
	row := r.DB.QueryRow(ctx, `
		UPDATE products
		SET name = $1, price = $2, model = $3, sizes = $4, updated_at = now()
		WHERE article = $5
		RETURNING `+productColumns,
		strings.ToValidUTF8(p.Name, ""), p.Price, p.Model, toInt32(p.Sizes), p.Article)
	updated, err := scanProduct(row)
	if err != nil {
		return model.Product{}, translate(err, "update", p.Article)
	}
	return updated, nil
}

func (r *ProductRepository) Delete(ctx context.Context, article int) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM products WHERE article = $1`, article)
	if err != nil {
		return translate(err, "delete", article)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %d: %w", article, ErrNotFound)
	}
	return nil
}

func (r *ProductRepository) List(ctx context.Context) ([]model.Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY model, article`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	list := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w: %v", ErrStoreUnavailable, err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w: %v", ErrStoreUnavailable, err)
	}
	return list, nil
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var (
		p     model.Product
		sizes []int32
	)
	if err := row.Scan(&p.Article, &p.Name, &p.Price, &p.Model, &sizes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Product{}, err
	}
	p.Sizes = make([]int, len(sizes))
	for i, s := range sizes {
		p.Sizes[i] = int(s)
	}
	return p, nil
}

// toInt32 expects sizes already passed through checkSizes.
func toInt32(sizes []int) []int32 {
	norm := model.NormalizeSizes(sizes)
	out := make([]int32, len(norm))
	for i, s := range norm {
		out[i] = int32(s)
	}
	return out
}

// translate maps driver errors onto the store sentinels.
func translate(err error, op string, article int) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", op, article, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s %d: %w", op, article, ErrConflict)
	}
	return fmt.Errorf("%s %d: %w: %v", op, article, ErrStoreUnavailable, err)
}
