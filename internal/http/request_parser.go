// Package http provides the JSON API over the shift record collection.
//
// This file holds the request parsing helpers shared by the handlers.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"snowlog/internal/core"
)

const maxBodyBytes = 64 << 10

var errBodyTooLarge = errors.New("request body too large")

// Open bounds used when an export window names only one side.
var (
	minDate = core.NewDate(1, 1, 1)
	maxDate = core.NewDate(9999, 12, 31)
)

// parseWindow reads from/to query parameters, falling back to the given
// defaults for missing ones.
func parseWindow(query url.Values, defFrom, defTo core.Date) (from, to core.Date, err error) {
	from, to = defFrom, defTo
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		if from, err = core.ParseDate(v); err != nil {
			return core.Date{}, core.Date{}, err
		}
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		if to, err = core.ParseDate(v); err != nil {
			return core.Date{}, core.Date{}, err
		}
	}
	return from, to, nil
}

// decodeShiftInput reads a shift record from the JSON body. A missing
// periodTo is derived from the shift type.
func decodeShiftInput(w http.ResponseWriter, r *http.Request) (core.ShiftInput, error) {
	var in core.ShiftInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.ShiftInput{}, errBodyTooLarge
		}
		return core.ShiftInput{}, err
	}

	in.Comment = sanitizeInput(in.Comment)
	if in.PeriodTo.IsZero() && !in.PeriodFrom.IsZero() {
		in.PeriodTo = core.DeriveShiftEnd(in.PeriodFrom, in.ShiftType)
	}
	return in, in.Validate()
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
