package model

import "time"

type AllocationStatus string

const (
	PlotAvailable AllocationStatus = "available"
	PlotOnHold    AllocationStatus = "on_hold"
	PlotBooked    AllocationStatus = "booked"
	PlotSold      AllocationStatus = "sold"
)

// Plot is a single sellable unit inside a project. AllocationStatus is the
// serialization point for the whole reservation lifecycle: every writer goes
// through the compare-and-set path in the plot repository, never through a
// plain update.
type Plot struct {
	ID               string           `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ProjectID        string           `json:"project_id" bson:"project_id" validate:"required,mongodb"`
	PlotNumber       string           `json:"plot_number" bson:"plot_number" validate:"required,min=1,max=20"`
	Area             float64          `json:"area" bson:"area" validate:"required,gt=0"`
	AreaUnit         string           `json:"area_unit" bson:"area_unit" validate:"required,oneof=sqft sqyd sqm acre"`
	Price            int64            `json:"price" bson:"price" validate:"required,gt=0"`
	Facing           string           `json:"facing,omitempty" bson:"facing,omitempty" validate:"omitempty,oneof=north south east west north_east north_west south_east south_west"`
	AllocationStatus AllocationStatus `json:"allocation_status" bson:"allocation_status" validate:"omitempty,oneof=available on_hold booked sold"`
	Archived         bool             `json:"archived" bson:"archived"`
	CreatedAt        time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" bson:"updated_at"`
}

// PlotFilter narrows a project plot listing.
type PlotFilter struct {
	Status   AllocationStatus
	Facing   string
	MinPrice int64
	MaxPrice int64
}

// PlotSummary is the denormalized slice of a plot embedded on bookings for
// the admin listing surface.
type PlotSummary struct {
	PlotNumber string  `json:"plot_number" bson:"plot_number"`
	Area       float64 `json:"area" bson:"area"`
	AreaUnit   string  `json:"area_unit" bson:"area_unit"`
}

func (p *Plot) Summary() PlotSummary {
	return PlotSummary{
		PlotNumber: p.PlotNumber,
		Area:       p.Area,
		AreaUnit:   p.AreaUnit,
	}
}
