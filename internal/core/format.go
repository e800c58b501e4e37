package core

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var ruPrinter = message.NewPrinter(language.Russian)

// FormatDate renders d as dd.mm.yyyy.
func FormatDate(d Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02.01.2006")
}

// ShiftLabel is the capitalised shift name used in exports.
func ShiftLabel(t ShiftType) string {
	if t == Day {
		return "День"
	}
	return "Ночь"
}

func shiftMarker(t ShiftType) string {
	if t == Day {
		return "(день)"
	}
	return "(ночь)"
}

// FormatPeriod renders the period of a record, collapsing single-day
// periods: "10.01.2024 (день)" or "10.01.2024 – 11.01.2024 (ночь)".
func FormatPeriod(in ShiftInput) string {
	from, to := FormatDate(in.PeriodFrom), FormatDate(in.PeriodTo)
	if from == to {
		return from + " " + shiftMarker(in.ShiftType)
	}
	return from + " – " + to + " " + shiftMarker(in.ShiftType)
}

// FormatNumber renders v with Russian digit grouping. Zero renders as "-",
// matching how the log shows both unreported and empty cells.
func FormatNumber(v float64) string {
	if v == 0 {
		return "-"
	}
	return ruPrinter.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}
