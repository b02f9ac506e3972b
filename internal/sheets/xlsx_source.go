package sheets

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"catalogsync/internal/model"
)

// XLSXSource reads a spreadsheet exported as an .xlsx file. The file is
// reopened on every call so a replaced export is picked up by the next cycle.
type XLSXSource struct {
	path string
}

func NewXLSXSource(path string) *XLSXSource {
	return &XLSXSource{path: path}
}

func (s *XLSXSource) ListSheets(ctx context.Context) ([]string, error) {
	f, err := s.open(ctx)
	if err != nil {
		return nil, unavailable("list sheets", err)
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

func (s *XLSXSource) FetchValues(ctx context.Context, names []string) (map[string]model.Grid, error) {
	f, err := s.open(ctx)
	if err != nil {
		return nil, unavailable("fetch values", err)
	}
	defer f.Close()

	grids := make(map[string]model.Grid, len(names))
	for _, name := range names {
		if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
			grids[name] = model.Grid{}
			continue
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, unavailable("fetch values", fmt.Errorf("failed to get rows of %q: %w", name, err))
		}
		grids[name] = model.Grid(rows)
	}
	return grids, nil
}

func (s *XLSXSource) open(ctx context.Context) (*excelize.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.path == "" {
		return nil, errors.New("SHEET_XLSX_PATH is empty")
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	return f, nil
}
