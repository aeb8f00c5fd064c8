package tagstore

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readXLSXTable loads the first worksheet of an XLSX file into a table.
func readXLSXTable(path string) (*table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tag file: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only handle

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return &table{}, nil
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q of %q: %w", sheet, path, err)
	}
	if len(rows) == 0 {
		return &table{sheet: sheet}, nil
	}

	return &table{
		sheet:  sheet,
		header: rows[0],
		rows:   rows[1:],
	}, nil
}

// writeXLSXTable rewrites an XLSX file from the table.
//
// The workbook is rebuilt with a single worksheet carrying the merged
// cells; formatting from the original file is not preserved, matching
// the full-rewrite persistence model.
func writeXLSXTable(path string, tbl *table) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // In-memory workbook

	sheet := tbl.sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if def := f.GetSheetName(0); def != sheet {
		if err := f.SetSheetName(def, sheet); err != nil {
			return fmt.Errorf("naming sheet %q: %w", sheet, err)
		}
	}

	if err := setSheetRow(f, sheet, 1, tbl.header); err != nil {
		return err
	}
	for i, row := range tbl.rows {
		if err := setSheetRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("writing tag file: %w", err)
	}
	return nil
}

// setSheetRow writes one row of string cells at the given 1-based row
// number.
func setSheetRow(f *excelize.File, sheet string, rowNum int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("addressing row %d: %w", rowNum, err)
	}
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing row %d: %w", rowNum, err)
	}
	return nil
}
