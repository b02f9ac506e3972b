package sheets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"catalogsync/internal/model"
)

// Fixed rows of a product sheet. Row 3 is unused.
const (
	rowName    = 0
	rowPrice   = 1
	rowArticle = 2
	firstSize  = 4
)

const available = "+"

var ErrParseRejected = errors.New("column rejected")

// ParseError describes a sheet column dropped because price or article is
// not a 32-bit integer.
type ParseError struct {
	Sheet  string
	Column int
	Field  string
	Value  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sheet %q column %d: %s %q is not a 32-bit integer", e.Sheet, e.Column, e.Field, e.Value)
}

func (e *ParseError) Unwrap() error { return ErrParseRejected }

// Transform converts one sheet grid into products. Column 0 holds size labels;
// every other column of the header row is a product. Columns with an
// unparseable price or article are returned as rejections instead.
func Transform(grid model.Grid, sheet string) ([]model.Product, []*ParseError) {
	if len(grid) == 0 {
		return nil, nil
	}

	var (
		products []model.Product
		rejected []*ParseError
	)
	for i := 1; i < len(grid[rowName]); i++ {
		price, err := parseInt(grid.Cell(rowPrice, i))
		if err != nil {
			rejected = append(rejected, &ParseError{Sheet: sheet, Column: i, Field: "price", Value: grid.Cell(rowPrice, i)})
			continue
		}
		article, err := parseInt(grid.Cell(rowArticle, i))
		if err != nil {
			rejected = append(rejected, &ParseError{Sheet: sheet, Column: i, Field: "article", Value: grid.Cell(rowArticle, i)})
			continue
		}

		products = append(products, model.Product{
			Article: article,
			Name:    strings.TrimSpace(grid.Cell(rowName, i)),
			Price:   price,
			Model:   sheet,
			Sizes:   sizesAt(grid, i),
		})
	}
	return products, rejected
}

func sizesAt(grid model.Grid, col int) []int {
	var sizes []int
	for r := firstSize; r < len(grid); r++ {
		if grid.Cell(r, col) != available {
			continue
		}
		size, err := parseInt(grid.Cell(r, 0))
		if err != nil {
			continue
		}
		sizes = append(sizes, size)
	}
	return model.NormalizeSizes(sizes)
}

// parseInt accepts only values that fit the INTEGER columns of the store.
func parseInt(s string) (int, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}
