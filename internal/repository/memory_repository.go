package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"catalogsync/internal/model"
)

// MemoryRepository is an in-process ProductStore for local runs and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	products map[int]model.Product
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products: make(map[int]model.Product),
		now:      time.Now,
	}
}

func (m *MemoryRepository) FindByArticle(_ context.Context, article int) (model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[article]
	if !ok {
		return model.Product{}, fmt.Errorf("find %d: %w", article, ErrNotFound)
	}
	return clone(p), nil
}

func (m *MemoryRepository) Create(_ context.Context, p model.Product) (model.Product, error) {
	if err := checkRange("create", p); err != nil {
		return model.Product{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[p.Article]; ok {
		return model.Product{}, fmt.Errorf("create %d: %w", p.Article, ErrConflict)
	}
	now := m.now()
	p = clone(p)
	p.CreatedAt, p.UpdatedAt = now, now
	m.products[p.Article] = p
	return clone(p), nil
}

func (m *MemoryRepository) UpdateSizes(_ context.Context, article int, sizes []int) error {
	if err := checkSizes("update sizes", article, sizes); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[article]
	if !ok {
		return fmt.Errorf("update sizes %d: %w", article, ErrNotFound)
	}
	p.Sizes = model.NormalizeSizes(sizes)
	p.UpdatedAt = m.now()
	m.products[article] = p
	return nil
}

func (m *MemoryRepository) Update(_ context.Context, p model.Product) (model.Product, error) {
	if err := checkRange("update", p); err != nil {
		return model.Product{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.products[p.Article]
	if !ok {
		return model.Product{}, fmt.Errorf("update %d: %w", p.Article, ErrNotFound)
	}
	p = clone(p)
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = m.now()
	m.products[p.Article] = p
	return clone(p), nil
}

func (m *MemoryRepository) Delete(_ context.Context, article int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[article]; !ok {
		return fmt.Errorf("delete %d: %w", article, ErrNotFound)
	}
	delete(m.products, article)
	return nil
}

// List returns products ordered by model, then article, like the Postgres store.
func (m *MemoryRepository) List(_ context.Context) ([]model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]model.Product, 0, len(m.products))
	for _, p := range m.products {
		list = append(list, clone(p))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Model != list[j].Model {
			return list[i].Model < list[j].Model
		}
		return list[i].Article < list[j].Article
	})
	return list, nil
}

func clone(p model.Product) model.Product {
	p.Sizes = model.NormalizeSizes(p.Sizes)
	return p
}
