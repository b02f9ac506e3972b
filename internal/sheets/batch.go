package sheets

import (
	"context"
	"fmt"
	"sync"

	"catalogsync/internal/model"
)

// Snapshot is the full product list computed from one read of the source.
type Snapshot struct {
	Sheets   []string
	Products []model.Product
	Rejected []*ParseError
}

// FetchSnapshot lists the sheets, fetches all grids in one batch and
// transforms them. Products keep sheet order, then column order.
func FetchSnapshot(ctx context.Context, src Source) (Snapshot, error) {
	names, err := src.ListSheets(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if len(names) == 0 {
		return Snapshot{}, nil
	}

	grids, err := src.FetchValues(ctx, names)
	if err != nil {
		return Snapshot{}, err
	}

	type result struct {
		products []model.Product
		rejected []*ParseError
	}
	results := make([]result, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			products, rejected := Transform(grids[name], name)
			results[i] = result{products: products, rejected: rejected}
		}()
	}
	wg.Wait()

	snap := Snapshot{Sheets: names}
	for _, r := range results {
		snap.Products = append(snap.Products, r.products...)
		snap.Rejected = append(snap.Rejected, r.rejected...)
	}
	return snap, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrSourceUnavailable, err)
}
