package remote

import (
	"context"
	"sync"
)

// MemoryStore is a grid-backed Store for development and tests. It keeps
// the same loose typing as the real store: every cell is text, rows can
// be ragged, and cleared rows stay in place as runs of empty cells.
type MemoryStore struct {
	mu     sync.Mutex
	sheets map[string][][]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: make(map[string][][]string)}
}

// Read returns the populated rows of the range's sheet, trimmed to the
// requested column span.
func (m *MemoryStore) Read(_ context.Context, rng string) ([][]string, error) {
	ref, err := ParseRange(rng)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]string
	for i, row := range m.sheets[ref.Sheet] {
		if ref.RowStart > 0 && (i+1 < ref.RowStart || i+1 > ref.RowEnd) {
			continue
		}
		out = append(out, sliceCols(row, ref.ColStart, ref.ColEnd))
	}
	return out, nil
}

// Append adds a row after the last row of the sheet.
func (m *MemoryStore) Append(_ context.Context, rng string, row []string) error {
	ref, err := ParseRange(rng)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	padded := make([]string, ref.ColStart)
	padded = append(padded, row...)
	m.sheets[ref.Sheet] = append(m.sheets[ref.Sheet], padded)
	return nil
}

// Update overwrites cells of a bounded range, growing the sheet as
// needed so updates past the current edge behave like the real store.
func (m *MemoryStore) Update(_ context.Context, rng string, values [][]string) error {
	ref, err := ParseRange(rng)
	if err != nil {
		return err
	}
	if ref.RowStart == 0 {
		ref.RowStart = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	grid := m.sheets[ref.Sheet]
	for vi, valRow := range values {
		rowIdx := ref.RowStart - 1 + vi
		for len(grid) <= rowIdx {
			grid = append(grid, nil)
		}
		for ci, val := range valRow {
			colIdx := ref.ColStart + ci
			for len(grid[rowIdx]) <= colIdx {
				grid[rowIdx] = append(grid[rowIdx], "")
			}
			grid[rowIdx][colIdx] = val
		}
	}
	m.sheets[ref.Sheet] = grid
	return nil
}

// Rows exposes a sheet's raw grid to tests.
func (m *MemoryStore) Rows(sheet string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]string, len(m.sheets[sheet]))
	for i, row := range m.sheets[sheet] {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func sliceCols(row []string, start, end int) []string {
	if start >= len(row) {
		return []string{}
	}
	if end >= len(row)-1 {
		end = len(row) - 1
	}
	return append([]string(nil), row[start:end+1]...)
}
