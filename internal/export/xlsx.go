package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"snowlog/internal/core"
)

// SheetName is the worksheet the workbook report is written to.
const SheetName = "Журнал"

// WriteXLSX writes records as a single-sheet workbook with the same columns
// as Delimited. Numbers are stored as numeric cells and unreported values are
// left blank.
func WriteXLSX(w io.Writer, records []core.ShiftRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerRow := HeaderRow()
	if err := f.SetSheetRow(SheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name for row %d: %w", i+2, err)
		}
		row := Row(r)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Row returns the report cells of one record with numbers kept numeric and
// unreported values as nil.
func Row(r core.ShiftRecord) []any {
	t := core.RecordTotals(r.ShiftInput)
	row := []any{
		r.ID,
		core.FormatPeriod(r.ShiftInput),
		core.ShiftLabel(r.ShiftType),
		t.Trips,
		t.VolumeM3,
	}
	for _, c := range core.Contractors() {
		b := r.Block(c)
		row = append(row, cellValue(b.Trips), cellValue(b.VolumeM3))
	}
	return append(row, r.Comment)
}

func cellValue[T core.Number](q core.Quantity[T]) any {
	if v, ok := q.Get(); ok {
		return v
	}
	return nil
}

// HeaderRow returns Header as cells.
func HeaderRow() []any {
	header := Header()
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	return row
}
