package model

import "time"

type HoldStatus string

const (
	HoldActive    HoldStatus = "active"
	HoldConverted HoldStatus = "converted"
	HoldExpired   HoldStatus = "expired"
	HoldReleased  HoldStatus = "released"
)

// Hold is a time-boxed exclusive claim on a plot granted to a broker before a
// booking is finalized. At most one hold per plot may be active at any
// instant; the partial unique index on plot_id backs this at the storage
// layer and the plot status CAS backs it at the logic layer.
type Hold struct {
	ID        string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	PlotID    string     `json:"plot_id" bson:"plot_id" validate:"required,mongodb"`
	ProjectID string     `json:"project_id" bson:"project_id" validate:"required,mongodb"`
	BrokerID  string     `json:"broker_id" bson:"broker_id" validate:"required,min=1,max=64"`
	Status    HoldStatus `json:"status" bson:"status" validate:"required,oneof=active converted expired released"`
	ExpiresAt time.Time  `json:"expires_at" bson:"expires_at" validate:"required"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
}

func (h *Hold) IsActive(now time.Time) bool {
	return h.Status == HoldActive && h.ExpiresAt.After(now)
}
