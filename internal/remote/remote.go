// Package remote defines the ports onto the shared tabular store. The
// store is rows and columns with no row ids, no transactions, and
// eventually-consistent reads; ranges are addressed by table name plus
// column span, e.g. "Log!A:L" or "Daily Stats!I5:K5".
package remote

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Reader is the read port consumed by the row resolver.
type Reader interface {
	// Read returns the populated rows of a range, top to bottom. An
	// empty table yields an empty slice, not an error.
	Read(ctx context.Context, rng string) ([][]string, error)
}

// Writer is the write port consumed by the aggregation updater.
type Writer interface {
	// Append adds a row after the last populated row of the range.
	Append(ctx context.Context, rng string, row []string) error

	// Update overwrites the cells of a bounded range.
	Update(ctx context.Context, rng string, values [][]string) error
}

// Store combines both ports.
type Store interface {
	Reader
	Writer
}

// Ref is a parsed range reference.
type Ref struct {
	Sheet    string
	ColStart int // zero-based
	ColEnd   int
	RowStart int // one-based; 0 means the whole column span
	RowEnd   int
}

// ParseRange parses "Sheet!A:L", "Sheet!A5:L5" or "Sheet!I5:K5". Sheet
// names may be quoted or contain spaces.
func ParseRange(rng string) (Ref, error) {
	bang := strings.LastIndex(rng, "!")
	if bang < 0 {
		return Ref{}, fmt.Errorf("range %q missing sheet name", rng)
	}

	ref := Ref{Sheet: strings.Trim(rng[:bang], "'")}
	span := rng[bang+1:]

	parts := strings.SplitN(span, ":", 2)
	if len(parts) != 2 {
		return Ref{}, fmt.Errorf("range %q missing column span", rng)
	}

	var err error
	ref.ColStart, ref.RowStart, err = parseCell(parts[0])
	if err != nil {
		return Ref{}, fmt.Errorf("range %q: %w", rng, err)
	}
	ref.ColEnd, ref.RowEnd, err = parseCell(parts[1])
	if err != nil {
		return Ref{}, fmt.Errorf("range %q: %w", rng, err)
	}

	if ref.ColEnd < ref.ColStart {
		return Ref{}, fmt.Errorf("range %q: columns out of order", rng)
	}
	return ref, nil
}

// CellRange builds a single-row range like "Daily Stats!I5:K5". row is
// one-based, as the store counts it.
func CellRange(sheet string, colStart, colEnd, row int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", sheet, ColumnLetter(colStart), row, ColumnLetter(colEnd), row)
}

// ColumnLetter converts a zero-based column index to its letter form.
func ColumnLetter(i int) string {
	s := ""
	for i >= 0 {
		s = string(rune('A'+i%26)) + s
		i = i/26 - 1
	}
	return s
}

// parseCell splits "I5" into column index 8 and row 5; "I" alone gives
// row 0 (unbounded).
func parseCell(cell string) (col, row int, err error) {
	i := 0
	for i < len(cell) && cell[i] >= 'A' && cell[i] <= 'Z' {
		col = col*26 + int(cell[i]-'A') + 1
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("cell %q missing column letter", cell)
	}
	col--

	if i < len(cell) {
		row, err = strconv.Atoi(cell[i:])
		if err != nil || row < 1 {
			return 0, 0, fmt.Errorf("cell %q has invalid row", cell)
		}
	}
	return col, row, nil
}
