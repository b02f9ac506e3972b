package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"catalogsync/internal/model"
)

var (
	ErrNotFound         = errors.New("product not found")
	ErrConflict         = errors.New("product already exists")
	ErrStoreUnavailable = errors.New("product store unavailable")
	ErrOutOfRange       = errors.New("value out of INTEGER range")
)

// ProductStore persists products keyed by article. Find returns ErrNotFound
// for an unknown article; UpdateSizes, Update and Delete do the same.
type ProductStore interface {
	FindByArticle(ctx context.Context, article int) (model.Product, error)
	Create(ctx context.Context, p model.Product) (model.Product, error)
	UpdateSizes(ctx context.Context, article int, sizes []int) error
	Update(ctx context.Context, p model.Product) (model.Product, error)
	Delete(ctx context.Context, article int) error
	List(ctx context.Context) ([]model.Product, error)
}

// checkRange rejects values the INTEGER columns cannot hold.
func checkRange(op string, p model.Product) error {
	if !fits(p.Article) {
		return fmt.Errorf("%s %d: article: %w", op, p.Article, ErrOutOfRange)
	}
	if !fits(p.Price) {
		return fmt.Errorf("%s %d: price %d: %w", op, p.Article, p.Price, ErrOutOfRange)
	}
	return checkSizes(op, p.Article, p.Sizes)
}

func checkSizes(op string, article int, sizes []int) error {
	for _, s := range sizes {
		if !fits(s) {
			return fmt.Errorf("%s %d: size %d: %w", op, article, s, ErrOutOfRange)
		}
	}
	return nil
}

func fits(v int) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}
