package dataset

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf16"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the offers table in .xlsx output.
const SheetName = "offers"

// ErrCellTooLong is returned when a value does not fit in one spreadsheet cell.
var ErrCellTooLong = errors.New("value exceeds spreadsheet cell limit")

// CheckXLSX reports whether every cell of ds fits in a workbook. Excel caps a
// cell at excelize.TotalCellChars UTF-16 units and excelize truncates silently.
func CheckXLSX(ds *domain.Dataset) error {
	if ds == nil {
		return nil
	}
	for i, e := range ds.Entries {
		for j, c := range entryRow(e) {
			if n := utf16Len(c); n > excelize.TotalCellChars {
				return fmt.Errorf("row %d %s: %d of %d characters: %w",
					i+1, Columns[j], n, excelize.TotalCellChars, ErrCellTooLong)
			}
		}
	}
	return nil
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// WriteXLSX writes the dataset as a single-sheet workbook.
// Amounts are stored as numeric cells holding the exact decimal text.
func WriteXLSX(w io.Writer, ds *domain.Dataset) error {
	if err := CheckXLSX(ds); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if ds != nil {
		for i, e := range ds.Entries {
			cells := entryRow(e)
			row := make([]interface{}, len(cells))
			for j, c := range cells {
				row[j] = c
			}

			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
				return fmt.Errorf("write row %d: %w", i+1, err)
			}
			if e.Record.Amount != nil {
				amountCell, err := excelize.CoordinatesToCellName(amountColumn+1, i+2)
				if err != nil {
					return err
				}
				if err := f.SetCellDefault(SheetName, amountCell, e.Record.Amount.String()); err != nil {
					return fmt.Errorf("write row %d amount: %w", i+1, err)
				}
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ReadXLSX reads a workbook written by WriteXLSX.
func ReadXLSX(r io.Reader) ([]domain.Entry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	// Raw values keep amounts beyond 15 significant digits intact.
	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", SheetName, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	idx, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}
	entries := make([]domain.Entry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		e, err := rowEntry(len(entries), idx, row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
