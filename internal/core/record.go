package core

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	Day   ShiftType = "day"
	Night ShiftType = "night"
)

const (
	Sabytov Contractor = "sabytov"
	Yakor   Contractor = "yakor"
	Shakh   Contractor = "shakh"
)

type (
	ShiftType string

	// Contractor identifies one of the three hauling entities.
	Contractor string

	// ContractorBlock is the trips/volume pair reported for one contractor.
	ContractorBlock struct {
		Trips    Quantity[float64]
		VolumeM3 Quantity[float64]
	}

	// ShiftInput carries every field of a shift record except the ones the
	// store assigns.
	ShiftInput struct {
		PeriodFrom Date
		PeriodTo   Date
		ShiftType  ShiftType
		Sabytov    ContractorBlock
		Yakor      ContractorBlock
		Shakh      ContractorBlock
		Comment    string
	}

	// ShiftRecord is one logged shift. Records are never mutated after
	// creation.
	ShiftRecord struct {
		ID string
		ShiftInput
		CreatedAt time.Time
	}
)

var (
	ErrInvalidShiftType = errors.New("invalid shift type")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidPeriod    = errors.New("period end before period start")
	ErrNegativeQuantity = errors.New("negative quantity")
)

// Valid reports whether t is a known shift type.
func (t ShiftType) Valid() bool {
	return t == Day || t == Night
}

// Contractors returns the contractors in display order.
func Contractors() []Contractor {
	return []Contractor{Sabytov, Yakor, Shakh}
}

// Name is the short label used in tables and exports.
func (c Contractor) Name() string {
	switch c {
	case Sabytov:
		return "Сабитов"
	case Yakor:
		return "Якорь"
	case Shakh:
		return "Шаховское"
	}
	return string(c)
}

// Title is the label used on dashboard cards.
func (c Contractor) Title() string {
	if c == Sabytov {
		return "ИП Сабитов"
	}
	return c.Name()
}

// Subtitle names the site or legal entity behind the contractor.
func (c Contractor) Subtitle() string {
	switch c {
	case Sabytov:
		return "Полигон СОЛНЕЧНЫЙ"
	case Yakor:
		return "ТОО «Genco Enterpises»"
	case Shakh:
		return "ТОО «КызылжарТазалык»"
	}
	return ""
}

// Block returns the block reported for c.
func (in ShiftInput) Block(c Contractor) ContractorBlock {
	switch c {
	case Sabytov:
		return in.Sabytov
	case Yakor:
		return in.Yakor
	case Shakh:
		return in.Shakh
	}
	return ContractorBlock{}
}

// Validate checks input coming from an entry form. The record store does not
// call it: absent numbers are always acceptable there.
func (in ShiftInput) Validate() error {
	if !in.ShiftType.Valid() {
		return ErrInvalidShiftType
	}
	if in.PeriodFrom.IsZero() || in.PeriodTo.IsZero() {
		return ErrInvalidDate
	}
	if in.PeriodTo.Before(in.PeriodFrom.Time) {
		return ErrInvalidPeriod
	}
	for _, c := range Contractors() {
		b := in.Block(c)
		if b.Trips.Negative() || b.VolumeM3.Negative() {
			return ErrNegativeQuantity
		}
	}
	return nil
}

// flatRecord is the persisted layout: one flat object per record with
// contractor fields spelled out.
type flatRecord struct {
	ID           string            `json:"id,omitempty"`
	PeriodFrom   Date              `json:"periodFrom"`
	PeriodTo     Date              `json:"periodTo"`
	ShiftType    ShiftType         `json:"shiftType"`
	SabytovTrips Quantity[float64] `json:"sabytov_trips"`
	SabytovM3    Quantity[float64] `json:"sabytov_m3"`
	YakorTrips   Quantity[float64] `json:"yakor_trips"`
	YakorM3      Quantity[float64] `json:"yakor_m3"`
	ShakhTrips   Quantity[float64] `json:"shakh_trips"`
	ShakhM3      Quantity[float64] `json:"shakh_m3"`
	Comment      string            `json:"comment"`
	CreatedAt    int64             `json:"createdAt,omitempty"`
}

func flatten(in ShiftInput) flatRecord {
	return flatRecord{
		PeriodFrom:   in.PeriodFrom,
		PeriodTo:     in.PeriodTo,
		ShiftType:    in.ShiftType,
		SabytovTrips: in.Sabytov.Trips,
		SabytovM3:    in.Sabytov.VolumeM3,
		YakorTrips:   in.Yakor.Trips,
		YakorM3:      in.Yakor.VolumeM3,
		ShakhTrips:   in.Shakh.Trips,
		ShakhM3:      in.Shakh.VolumeM3,
		Comment:      in.Comment,
	}
}

func (f flatRecord) input() ShiftInput {
	return ShiftInput{
		PeriodFrom: f.PeriodFrom,
		PeriodTo:   f.PeriodTo,
		ShiftType:  f.ShiftType,
		Sabytov:    ContractorBlock{Trips: f.SabytovTrips, VolumeM3: f.SabytovM3},
		Yakor:      ContractorBlock{Trips: f.YakorTrips, VolumeM3: f.YakorM3},
		Shakh:      ContractorBlock{Trips: f.ShakhTrips, VolumeM3: f.ShakhM3},
		Comment:    f.Comment,
	}
}

func (in ShiftInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(flatten(in))
}

func (in *ShiftInput) UnmarshalJSON(data []byte) error {
	var f flatRecord
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*in = f.input()
	return nil
}

func (r ShiftRecord) MarshalJSON() ([]byte, error) {
	f := flatten(r.ShiftInput)
	f.ID = r.ID
	f.CreatedAt = r.CreatedAt.UnixMilli()
	return json.Marshal(f)
}

func (r *ShiftRecord) UnmarshalJSON(data []byte) error {
	var f flatRecord
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = ShiftRecord{
		ID:         f.ID,
		ShiftInput: f.input(),
		CreatedAt:  time.UnixMilli(f.CreatedAt),
	}
	return nil
}
