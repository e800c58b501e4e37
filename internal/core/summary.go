package core

// Totals is a trips/volume pair summed over some set of records.
type Totals struct {
	Trips    float64 `json:"trips"`
	VolumeM3 float64 `json:"volumeM3"`
}

// Stats holds per-contractor totals and the grand total. It is derived on
// every query and never persisted.
type Stats struct {
	Total   Totals `json:"total"`
	Sabytov Totals `json:"sabytov"`
	Yakor   Totals `json:"yakor"`
	Shakh   Totals `json:"shakh"`
}

// For returns the totals of contractor c.
func (s Stats) For(c Contractor) Totals {
	switch c {
	case Sabytov:
		return s.Sabytov
	case Yakor:
		return s.Yakor
	case Shakh:
		return s.Shakh
	}
	return Totals{}
}

func (t Totals) add(b ContractorBlock) Totals {
	t.Trips += b.Trips.OrZero()
	t.VolumeM3 += b.VolumeM3.OrZero()
	return t
}

// RecordTotals sums the three contractor blocks of one record. Unreported
// values count as zero.
func RecordTotals(in ShiftInput) Totals {
	var t Totals
	for _, c := range Contractors() {
		t = t.add(in.Block(c))
	}
	return t
}

// Aggregate reduces records to per-contractor and grand totals.
func Aggregate(records []ShiftRecord) Stats {
	var s Stats
	for _, r := range records {
		s.Sabytov = s.Sabytov.add(r.Sabytov)
		s.Yakor = s.Yakor.add(r.Yakor)
		s.Shakh = s.Shakh.add(r.Shakh)

		rt := RecordTotals(r.ShiftInput)
		s.Total.Trips += rt.Trips
		s.Total.VolumeM3 += rt.VolumeM3
	}
	return s
}
