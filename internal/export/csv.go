// Package export serializes shift records into report files.
//
// The functions here only produce bytes; choosing a file name and delivering
// the file belong to the caller.
package export

import (
	"strconv"
	"strings"
	"time"

	"snowlog/internal/core"
)

// BOM lets spreadsheet tools detect UTF-8 when opening the CSV.
const BOM = "\uFEFF"

// Header returns the report column names.
func Header() []string {
	cols := []string{"ID", "Период", "Тип", "Всего Рейсов", "Всего м3"}
	for _, c := range core.Contractors() {
		cols = append(cols, c.Name()+" Рейс", c.Name()+" м3")
	}
	return append(cols, "Комментарий")
}

// Delimited renders records as comma-delimited text, one row per record in
// input order, prefixed with a byte-order mark. Unreported numbers become
// empty fields; the comment is always quoted.
func Delimited(records []core.ShiftRecord) []byte {
	var b strings.Builder
	b.WriteString(BOM)
	b.WriteString(strings.Join(Header(), ","))
	for _, r := range records {
		b.WriteByte('\n')
		b.WriteString(strings.Join(csvRow(r), ","))
	}
	return []byte(b.String())
}

func csvRow(r core.ShiftRecord) []string {
	t := core.RecordTotals(r.ShiftInput)
	row := []string{
		r.ID,
		core.FormatPeriod(r.ShiftInput),
		core.ShiftLabel(r.ShiftType),
		strconv.FormatFloat(t.Trips, 'f', -1, 64),
		strconv.FormatFloat(t.VolumeM3, 'f', -1, 64),
	}
	for _, c := range core.Contractors() {
		b := r.Block(c)
		row = append(row, b.Trips.String(), b.VolumeM3.String())
	}
	return append(row, quote(r.Comment))
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// FileName returns the conventional CSV report name for the given day.
func FileName(now time.Time) string {
	return "snow_report_" + now.Format(core.DateLayout) + ".csv"
}

// XLSXFileName returns the workbook report name for the given day.
func XLSXFileName(now time.Time) string {
	return "snow_report_" + now.Format(core.DateLayout) + ".xlsx"
}
