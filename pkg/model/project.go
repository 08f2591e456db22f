package model

import "time"

// Project carries the per-project settings the reservation core reads. The
// hold window is stored in hours because that is how admins configure it.
type Project struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name          string    `json:"name" bson:"name" validate:"required,min=2,max=120"`
	HoldTimeHours int       `json:"hold_time_hours" bson:"hold_time_hours" validate:"required,min=1,max=168"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

// HoldTime returns the configured hold window as a duration.
func (p *Project) HoldTime() time.Duration {
	return time.Duration(p.HoldTimeHours) * time.Hour
}

// ProjectSettingsUpdate patches admin-editable project settings.
type ProjectSettingsUpdate struct {
	HoldTimeHours int `json:"hold_time_hours" validate:"required,min=1,max=168"`
}
