package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"catalogsync/internal/model"
)

func TestMemoryRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.FindByArticle(ctx, 501)
	require.ErrorIs(t, err, ErrNotFound)

	created, err := repo.Create(ctx, model.Product{Article: 501, Name: "Shirt", Price: 19, Model: "Shirts", Sizes: []int{38, 36, 36}})
	require.NoError(t, err)
	require.Equal(t, []int{36, 38}, created.Sizes)
	require.False(t, created.CreatedAt.IsZero())

	_, err = repo.Create(ctx, model.Product{Article: 501})
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, repo.UpdateSizes(ctx, 501, []int{44, 40}))
	got, err := repo.FindByArticle(ctx, 501)
	require.NoError(t, err)
	require.Equal(t, []int{40, 44}, got.Sizes)

	updated, err := repo.Update(ctx, model.Product{Article: 501, Name: "Shirt v2", Price: 25, Model: "Shirts"})
	require.NoError(t, err)
	require.Equal(t, "Shirt v2", updated.Name)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)

	require.ErrorIs(t, repo.UpdateSizes(ctx, 999, nil), ErrNotFound)
	_, err = repo.Update(ctx, model.Product{Article: 999})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Delete(ctx, 501))
	require.ErrorIs(t, repo.Delete(ctx, 501), ErrNotFound)
}

func TestMemoryRepositoryListOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	for _, p := range []model.Product{
		{Article: 3, Model: "Shoes"},
		{Article: 2, Model: "Shirts"},
		{Article: 1, Model: "Shoes"},
	} {
		_, err := repo.Create(ctx, p)
		require.NoError(t, err)
	}

	list, err := repo.List(ctx)
	require.NoError(t, err)
	var articles []int
	for _, p := range list {
		articles = append(articles, p.Article)
	}
	require.Equal(t, []int{2, 1, 3}, articles)
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_, err := repo.Create(ctx, model.Product{Article: 7, Sizes: []int{36}})
	require.NoError(t, err)

	got, err := repo.FindByArticle(ctx, 7)
	require.NoError(t, err)
	got.Sizes[0] = 99

	again, err := repo.FindByArticle(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []int{36}, again.Sizes)
}

func TestMemoryRepositoryRejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.Create(ctx, model.Product{Article: 1, Sizes: []int{4294967336}})
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = repo.FindByArticle(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound, "nothing is stored on a range error")

	_, err = repo.Create(ctx, model.Product{Article: 1, Sizes: []int{40}})
	require.NoError(t, err)
	require.ErrorIs(t, repo.UpdateSizes(ctx, 1, []int{-1 << 40}), ErrOutOfRange)

	got, err := repo.FindByArticle(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []int{40}, got.Sizes)
}
