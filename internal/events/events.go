package events

import "time"

// Topic names shared by the service (producer) and the notifier (consumer).
const (
	Source = "plotbook"
)

const (
	TypeHoldPlaced       = "hold.placed"
	TypeHoldReleased     = "hold.released"
	TypeHoldExpired      = "hold.expired"
	TypeBookingCreated   = "booking.created"
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCompleted = "booking.completed"
	TypeBookingCancelled = "booking.cancelled"
	TypePaymentRecorded  = "payment.recorded"
)

// Event is the payload published to the plot lifecycle topic. Messages are
// keyed by PlotID so consumers see every plot's history in order.
type Event struct {
	Type       string    `json:"type"`
	PlotID     string    `json:"plot_id"`
	ProjectID  string    `json:"project_id,omitempty"`
	HoldID     string    `json:"hold_id,omitempty"`
	BookingID  string    `json:"booking_id,omitempty"`
	BrokerID   string    `json:"broker_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
