package http

import (
	"bytes"
	"fmt"
	"net/http"

	"snowlog/internal/core"
	"snowlog/internal/export"
	applog "snowlog/internal/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportRecords returns the full collection, or the filtered one when the
// query names a window.
func (s *Server) exportRecords(w http.ResponseWriter, r *http.Request) ([]core.ShiftRecord, bool) {
	query := r.URL.Query()
	all := s.records.List()
	if query.Get("from") == "" && query.Get("to") == "" {
		return all, true
	}
	from, to, err := parseWindow(query, minDate, maxDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD dates")
		return nil, false
	}
	return core.FilterByPeriod(all, from, to), true
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	list, ok := s.exportRecords(w, r)
	if !ok {
		return
	}

	body := export.Delimited(list)
	s.countExport()
	s.logger.InfoContext(r.Context(), "Report exported",
		applog.FieldComponent, applog.ComponentExport,
		applog.FieldOperation, applog.OpExport,
		applog.FieldCount, len(list),
		"format", "csv")

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(export.FileName(s.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	list, ok := s.exportRecords(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, list); err != nil {
		s.logger.ErrorContext(r.Context(), "Workbook export failed",
			applog.FieldComponent, applog.ComponentExport,
			applog.FieldOperation, applog.OpExport,
			applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	s.countExport()
	s.logger.InfoContext(r.Context(), "Report exported",
		applog.FieldComponent, applog.ComponentExport,
		applog.FieldOperation, applog.OpExport,
		applog.FieldCount, len(list),
		"format", "xlsx")

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", attachment(export.XLSXFileName(s.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
