package http

import (
	"net/http"

	"snowlog/internal/core"
)

// contractorSummary is one contractor card of the dashboard
type contractorSummary struct {
	Contractor    core.Contractor `json:"contractor"`
	Name          string          `json:"name"`
	Title         string          `json:"title"`
	Subtitle      string          `json:"subtitle"`
	Trips         float64         `json:"trips"`
	VolumeM3      float64         `json:"volumeM3"`
	TripsText     string          `json:"tripsText"`
	VolumeM3Text  string          `json:"volumeM3Text"`
	AllTimeTrips  float64         `json:"allTimeTrips"`
	AllTimeVolume float64         `json:"allTimeVolumeM3"`
}

// chartSeries feeds the per-contractor bar charts
type chartSeries struct {
	Labels   []string  `json:"labels"`
	Trips    []float64 `json:"trips"`
	VolumeM3 []float64 `json:"volumeM3"`
}

type statsResponse struct {
	From         core.Date           `json:"from"`
	To           core.Date           `json:"to"`
	Count        int                 `json:"count"`
	Window       core.Stats          `json:"window"`
	AllTime      core.Stats          `json:"allTime"`
	TotalTrips   string              `json:"totalTripsText"`
	TotalVolume  string              `json:"totalVolumeM3Text"`
	Contractors  []contractorSummary `json:"contractors"`
	Chart        chartSeries         `json:"chart"`
	AllTimeCount int                 `json:"allTimeCount"`
}

// handleStats aggregates the requested window (month to date by default)
// alongside the all-time totals.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	defFrom, defTo := core.MonthToDate(s.now())
	from, to, err := parseWindow(r.URL.Query(), defFrom, defTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD dates")
		return
	}

	all := s.records.List()
	filtered := core.FilterByPeriod(all, from, to)
	writeJSON(w, http.StatusOK, buildStats(from, to, filtered, all))
}

func buildStats(from, to core.Date, filtered, all []core.ShiftRecord) statsResponse {
	window := core.Aggregate(filtered)
	allTime := core.Aggregate(all)

	resp := statsResponse{
		From:         from,
		To:           to,
		Count:        len(filtered),
		Window:       window,
		AllTime:      allTime,
		AllTimeCount: len(all),
		TotalTrips:   core.FormatNumber(window.Total.Trips),
		TotalVolume:  core.FormatNumber(window.Total.VolumeM3),
	}
	for _, c := range core.Contractors() {
		t, at := window.For(c), allTime.For(c)
		resp.Contractors = append(resp.Contractors, contractorSummary{
			Contractor:    c,
			Name:          c.Name(),
			Title:         c.Title(),
			Subtitle:      c.Subtitle(),
			Trips:         t.Trips,
			VolumeM3:      t.VolumeM3,
			TripsText:     core.FormatNumber(t.Trips),
			VolumeM3Text:  core.FormatNumber(t.VolumeM3),
			AllTimeTrips:  at.Trips,
			AllTimeVolume: at.VolumeM3,
		})
		resp.Chart.Labels = append(resp.Chart.Labels, c.Name())
		resp.Chart.Trips = append(resp.Chart.Trips, t.Trips)
		resp.Chart.VolumeM3 = append(resp.Chart.VolumeM3, t.VolumeM3)
	}
	return resp
}
