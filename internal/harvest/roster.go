package harvest

import (
	"context"
	"fmt"

	"github.com/univalle-dev/asignacion-go/internal/asignacion"
)

// ColumnReader is the slice of the spreadsheet transport the roster
// loader needs.
type ColumnReader interface {
	ReadColumn(ctx context.Context, spreadsheetID, title, column string) ([]string, error)
}

// LoadRoster reads the cedula column from the source worksheet and
// returns the cleaned list: spaces, dots and dashes stripped, all-digit
// values of length 7-10 kept, a header-like first row discarded,
// duplicates dropped keeping the first occurrence.
func LoadRoster(ctx context.Context, reader ColumnReader, spreadsheetID, worksheet, column string) ([]string, error) {
	values, err := reader.ReadColumn(ctx, spreadsheetID, worksheet, column)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster column: %w", err)
	}

	cedulas := asignacion.FilterCedulas(values)
	if len(cedulas) == 0 {
		return nil, fmt.Errorf("no valid cedulas in worksheet %q column %s", worksheet, column)
	}
	return cedulas, nil
}
