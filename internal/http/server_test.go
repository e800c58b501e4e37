package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"snowlog/internal/core"
	"snowlog/internal/export"
	applog "snowlog/internal/log"
	"snowlog/internal/records"
	"snowlog/internal/services"
	"snowlog/internal/storage"
)

var testNow = time.Date(2024, time.January, 20, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	n := 0
	store := records.Open(context.Background(), storage.NewMemoryKV(),
		records.WithLogger(applog.Discard()),
		records.WithClock(func() time.Time { return testNow }),
		records.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("rec-%d", n)
		}))
	opts.Logger = applog.Discard()
	opts.Now = func() time.Time { return testNow }
	srv := NewServer(":0", services.NewRecordService(store, nil), opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "203.0.113.10:4000"
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func createRecord(t *testing.T, srv *Server, body string) core.ShiftRecord {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/records", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var rec core.ShiftRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	return rec
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s missing request id", path)
		}
	}
}

func TestReadyReportsStorageFailure(t *testing.T) {
	srv := newTestServer(t, Options{Ready: func(context.Context) error { return fmt.Errorf("disk gone") }})
	rr := do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "disk gone") {
		t.Fatalf("body missing cause: %s", rr.Body.String())
	}
}

func TestCreateRecordDerivesPeriodEnd(t *testing.T) {
	srv := newTestServer(t, Options{})
	rec := createRecord(t, srv, `{"periodFrom":"2024-01-10","shiftType":"night","sabytov_trips":3,"sabytov_m3":45.5,"comment":"  snowfall  "}`)

	if rec.ID != "rec-1" {
		t.Fatalf("id=%q", rec.ID)
	}
	if got := rec.PeriodTo.String(); got != "2024-01-11" {
		t.Fatalf("periodTo=%s, want 2024-01-11", got)
	}
	if rec.Comment != "snowfall" {
		t.Fatalf("comment=%q", rec.Comment)
	}
	if rec.Yakor.Trips.Valid() {
		t.Fatal("omitted trips must stay absent")
	}
	if !rec.CreatedAt.Equal(testNow) {
		t.Fatalf("createdAt=%v", rec.CreatedAt)
	}
}

func TestCreateRecordValidation(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"periodFrom":`, "malformed"},
		{"bad shift type", `{"periodFrom":"2024-01-10","shiftType":"evening"}`, "shiftType"},
		{"bad date", `{"periodFrom":"10.01.2024","shiftType":"day"}`, "YYYY-MM-DD"},
		{"missing date", `{"shiftType":"day"}`, "YYYY-MM-DD"},
		{"end before start", `{"periodFrom":"2024-01-10","periodTo":"2024-01-09","shiftType":"day"}`, "periodTo"},
		{"negative volume", `{"periodFrom":"2024-01-10","shiftType":"day","yakor_m3":-1}`, "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/records", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.want) {
				t.Fatalf("body %s does not mention %q", rr.Body.String(), tt.want)
			}
		})
	}

	rr := do(t, srv, http.MethodGet, "/records", "")
	var resp recordsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 0 {
		t.Fatalf("rejected input was stored: %d records", resp.Count)
	}
}

func TestListSearchAndDelete(t *testing.T) {
	srv := newTestServer(t, Options{})
	createRecord(t, srv, `{"periodFrom":"2024-01-05","shiftType":"day","comment":"Heavy snow"}`)
	createRecord(t, srv, `{"periodFrom":"2024-01-06","shiftType":"night"}`)

	var resp recordsResponse
	rr := do(t, srv, http.MethodGet, "/records", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || resp.Records[0].ID != "rec-2" {
		t.Fatalf("expected newest first, got %+v", resp.Records)
	}

	rr = do(t, srv, http.MethodGet, "/records?q=heavy", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Records[0].ID != "rec-1" {
		t.Fatalf("search returned %+v", resp.Records)
	}

	for _, id := range []string{"rec-1", "missing"} {
		if rr := do(t, srv, http.MethodDelete, "/records/"+id, ""); rr.Code != http.StatusNoContent {
			t.Fatalf("delete %s status=%d", id, rr.Code)
		}
	}
	rr = do(t, srv, http.MethodGet, "/records", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Records[0].ID != "rec-2" {
		t.Fatalf("after delete: %+v", resp.Records)
	}
}

func TestStatsDefaultsToMonthToDate(t *testing.T) {
	srv := newTestServer(t, Options{})
	createRecord(t, srv, `{"periodFrom":"2023-12-31","shiftType":"night","sabytov_trips":4,"sabytov_m3":10}`)
	createRecord(t, srv, `{"periodFrom":"2024-01-05","shiftType":"day","sabytov_trips":2,"yakor_trips":1,"yakor_m3":12.5}`)

	rr := do(t, srv, http.MethodGet, "/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp statsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.From.String() != "2024-01-01" || resp.To.String() != "2024-01-20" {
		t.Fatalf("window %s..%s", resp.From, resp.To)
	}
	if resp.Count != 1 || resp.AllTimeCount != 2 {
		t.Fatalf("count=%d allTime=%d", resp.Count, resp.AllTimeCount)
	}
	if resp.Window.Total.Trips != 3 || resp.Window.Total.VolumeM3 != 12.5 {
		t.Fatalf("window total %+v", resp.Window.Total)
	}
	if resp.AllTime.Sabytov.Trips != 6 {
		t.Fatalf("all-time sabytov %+v", resp.AllTime.Sabytov)
	}
	if len(resp.Contractors) != 3 || len(resp.Chart.Labels) != 3 {
		t.Fatalf("expected three contractors, got %d", len(resp.Contractors))
	}
	if resp.Contractors[2].TripsText != "-" {
		t.Fatalf("empty contractor should render '-', got %q", resp.Contractors[2].TripsText)
	}

	rr = do(t, srv, http.MethodGet, "/stats?from=2023-12-01&to=2023-12-31", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Window.Sabytov.Trips != 4 {
		t.Fatalf("explicit window: %+v", resp.Window)
	}

	if rr := do(t, srv, http.MethodGet, "/stats?from=yesterday", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad window status=%d", rr.Code)
	}
}

func TestPeriodEnd(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		query string
		code  int
		want  string
	}{
		{"from=2024-02-28&shift=night", http.StatusOK, `"periodTo":"2024-02-29"`},
		{"from=2024-02-28&shift=day", http.StatusOK, `"periodTo":"2024-02-28"`},
		{"from=2024-02-28", http.StatusOK, `"periodTo":"2024-02-28"`},
		{"from=2024-02-28&shift=evening", http.StatusBadRequest, "shift"},
		{"shift=night", http.StatusBadRequest, "from"},
	}
	for _, tt := range tests {
		rr := do(t, srv, http.MethodGet, "/period-end?"+tt.query, "")
		if rr.Code != tt.code || !strings.Contains(rr.Body.String(), tt.want) {
			t.Fatalf("%s: status=%d body=%s", tt.query, rr.Code, rr.Body.String())
		}
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t, Options{})
	createRecord(t, srv, `{"periodFrom":"2024-01-05","shiftType":"day","sabytov_trips":2,"comment":"say \"hi\""}`)
	createRecord(t, srv, `{"periodFrom":"2024-01-15","shiftType":"day"}`)

	rr := do(t, srv, http.MethodGet, "/export.csv", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "snow_report_2024-01-20.csv") {
		t.Fatalf("Content-Disposition=%q", got)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, export.BOM) {
		t.Fatal("missing BOM")
	}
	if lines := strings.Split(strings.TrimSuffix(body, "\n"), "\n"); len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(body, `"say ""hi"""`) {
		t.Fatalf("comment not quoted: %s", body)
	}

	rr = do(t, srv, http.MethodGet, "/export.csv?from=2024-01-10", "")
	if lines := strings.Split(strings.TrimSuffix(rr.Body.String(), "\n"), "\n"); len(lines) != 2 {
		t.Fatalf("filtered export: expected header + 1 row, got %d lines", len(lines))
	}
}

func TestExportXLSX(t *testing.T) {
	srv := newTestServer(t, Options{})
	createRecord(t, srv, `{"periodFrom":"2024-01-05","shiftType":"day","sabytov_trips":2}`)

	rr := do(t, srv, http.MethodGet, "/export.xlsx", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("Content-Type=%q", rr.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")) {
		t.Fatal("workbook is not a zip archive")
	}
}

func TestAuthGate(t *testing.T) {
	srv := newTestServer(t, Options{AuthToken: "s3cret"})

	if rr := do(t, srv, http.MethodGet, "/records", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Fatalf("health status=%d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/records", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("authenticated status=%d", rr.Code)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 2})
	body := `{"periodFrom":"2024-01-05","shiftType":"day"}`

	for i := 0; i < 2; i++ {
		createRecord(t, srv, body)
	}
	rr := do(t, srv, http.MethodPost, "/records", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third create status=%d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatal("missing Retry-After")
	}

	// Reads are not limited.
	if rr := do(t, srv, http.MethodGet, "/records", ""); rr.Code != http.StatusOK {
		t.Fatalf("read status=%d", rr.Code)
	}
}

func TestSecurityHeadersAndMethodRouting(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/records", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}
	if rr := do(t, srv, http.MethodPut, "/records", "{}"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT status=%d", rr.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, Options{})
	createRecord(t, srv, `{"periodFrom":"2024-01-05","shiftType":"day"}`)
	rr := do(t, srv, http.MethodGet, "/metrics", "")
	if !strings.Contains(rr.Body.String(), "records_created_total 1") {
		t.Fatalf("metrics body: %s", rr.Body.String())
	}
}
