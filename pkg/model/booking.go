package model

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingReserved  BookingStatus = "reserved"
	BookingOnHold    BookingStatus = "on_hold"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// IsTerminal reports whether no further status transition is permitted.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// Customer holds the buyer details captured when a hold is converted.
type Customer struct {
	Name           string `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Email          string `json:"email" bson:"email" validate:"required,email"`
	Phone          string `json:"phone" bson:"phone" validate:"required,min=8,max=16"`
	AlternatePhone string `json:"alternate_phone,omitempty" bson:"alternate_phone,omitempty" validate:"omitempty,min=8,max=16"`
	Address        string `json:"address,omitempty" bson:"address,omitempty" validate:"omitempty,max=300"`
}

// Booking is the lifecycle record created when a hold converts. Invariants:
// confirmed implies paid, cancelled implies a non-empty reason, and exactly
// one non-cancelled booking exists per plot.
type Booking struct {
	ID              string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	PlotID          string        `json:"plot_id" bson:"plot_id" validate:"required,mongodb"`
	ProjectID       string        `json:"project_id" bson:"project_id" validate:"required,mongodb"`
	HoldID          string        `json:"hold_id" bson:"hold_id" validate:"required,mongodb"`
	BrokerID        string        `json:"broker_id" bson:"broker_id" validate:"required,min=1,max=64"`
	Plot            PlotSummary   `json:"plot" bson:"plot"`
	Customer        Customer      `json:"customer" bson:"customer" validate:"required"`
	BookingDate     time.Time     `json:"booking_date" bson:"booking_date"`
	BookingStatus   BookingStatus `json:"booking_status" bson:"booking_status" validate:"required,oneof=pending reserved on_hold confirmed completed cancelled"`
	PaymentStatus   PaymentStatus `json:"payment_status" bson:"payment_status" validate:"required,oneof=pending paid failed"`
	Amount          int64         `json:"amount,omitempty" bson:"amount,omitempty" validate:"omitempty,gte=0"`
	PaymentID       string        `json:"payment_id,omitempty" bson:"payment_id,omitempty" validate:"omitempty,max=64"`
	OrderID         string        `json:"order_id,omitempty" bson:"order_id,omitempty" validate:"omitempty,max=64"`
	Notes           string        `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=2000"`
	CancelledReason string        `json:"cancelled_reason,omitempty" bson:"cancelled_reason,omitempty" validate:"omitempty,max=300"`
	HoldExpiresAt   *time.Time    `json:"hold_expires_at,omitempty" bson:"hold_expires_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" bson:"updated_at"`
}

// BookingCreate is the request payload for converting a hold into a booking.
type BookingCreate struct {
	HoldID   string   `json:"hold_id" validate:"required,mongodb"`
	Customer Customer `json:"customer" validate:"required"`
	Notes    string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// BookingStatusUpdate drives the state machine. CancelledReason is required
// when Status is cancelled.
type BookingStatusUpdate struct {
	Status          BookingStatus `json:"status" validate:"required,oneof=pending reserved on_hold confirmed completed cancelled"`
	CancelledReason string        `json:"cancelled_reason,omitempty" validate:"omitempty,max=300"`
}

// BookingDetailsUpdate patches non-status fields. Nil pointers leave the
// stored value untouched.
type BookingDetailsUpdate struct {
	Amount    *int64    `json:"amount,omitempty" validate:"omitempty,gte=0"`
	PaymentID *string   `json:"payment_id,omitempty" validate:"omitempty,max=64"`
	OrderID   *string   `json:"order_id,omitempty" validate:"omitempty,max=64"`
	Notes     *string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Customer  *Customer `json:"customer,omitempty"`
}

// IsNotesOnly reports whether the patch touches nothing but notes. Terminal
// bookings accept notes-only patches for audit trail purposes.
func (u *BookingDetailsUpdate) IsNotesOnly() bool {
	return u.Notes != nil && u.Amount == nil && u.PaymentID == nil && u.OrderID == nil && u.Customer == nil
}

// PaymentRecord is the payload for recording a payment attempt against a
// booking. It never carries booking status.
type PaymentRecord struct {
	PaymentID string        `json:"payment_id" validate:"required,min=1,max=64"`
	OrderID   string        `json:"order_id,omitempty" validate:"omitempty,max=64"`
	Amount    int64         `json:"amount" validate:"required,gt=0"`
	Status    PaymentStatus `json:"status" validate:"required,oneof=pending paid failed"`
}
