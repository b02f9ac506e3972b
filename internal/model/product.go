package model

import (
	"slices"
	"time"
)

// Product is one catalog entry keyed by its article number.
type Product struct {
	Article   int       `json:"article"`
	Name      string    `json:"name"`
	Price     int       `json:"price"`
	Model     string    `json:"model"`
	Sizes     []int     `json:"sizes"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Grid is the raw cell matrix of one sheet. Rows may be ragged.
type Grid [][]string

// Cell returns the value at row r, column c or "" when the cell is missing.
func (g Grid) Cell(r, c int) string {
	if r < 0 || r >= len(g) || c < 0 || c >= len(g[r]) {
		return ""
	}
	return g[r][c]
}

// NormalizeSizes returns the sizes sorted ascending without duplicates.
// The result is never nil.
func NormalizeSizes(sizes []int) []int {
	out := make([]int, len(sizes))
	copy(out, sizes)
	slices.Sort(out)
	return slices.Compact(out)
}

// SameSizes reports whether a and b hold the same set of sizes.
func SameSizes(a, b []int) bool {
	return slices.Equal(NormalizeSizes(a), NormalizeSizes(b))
}
