package sheets

import (
	"context"
	"errors"

	"catalogsync/internal/model"
)

// ErrSourceUnavailable wraps every transport, auth or configuration failure
// while reading the spreadsheet.
var ErrSourceUnavailable = errors.New("spreadsheet source unavailable")

// Source reads the sheets of one spreadsheet document.
type Source interface {
	// ListSheets returns sheet names in document order.
	ListSheets(ctx context.Context) ([]string, error)
	// FetchValues returns the grid of every named sheet in one round trip.
	// A sheet without data maps to an empty grid.
	FetchValues(ctx context.Context, names []string) (map[string]model.Grid, error)
}
