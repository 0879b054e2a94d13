package models

import (
	"time"

	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending         BookingStatus = "pending"
	BookingStatusApproved        BookingStatus = "approved"
	BookingStatusAssigned        BookingStatus = "assigned"
	BookingStatusPickupConfirmed BookingStatus = "pickup-confirmed"
	BookingStatusCompleted       BookingStatus = "completed"
	BookingStatusPaid            BookingStatus = "paid"
	BookingStatusCancelled       BookingStatus = "cancelled"
)

// bookingTransitions is the single source of truth for the booking state
// machine. Transition guards consult it through CanTransition so no code
// path can invent its own status vocabulary.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:         {BookingStatusApproved, BookingStatusCancelled},
	BookingStatusApproved:        {BookingStatusAssigned, BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusAssigned:        {BookingStatusPickupConfirmed, BookingStatusCancelled},
	BookingStatusPickupConfirmed: {BookingStatusCompleted},
	BookingStatusCompleted:       {BookingStatusPaid},
	BookingStatusPaid:            {},
	BookingStatusCancelled:       {},
}

// CanTransition reports whether moving from s to next is a legal step.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

type Booking struct {
	gorm.Model
	CustomerID uint     `json:"customerId" gorm:"not null;index"`
	Customer   *User    `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	VehicleID  uint     `json:"vehicleId" gorm:"not null;index"`
	Vehicle    *Vehicle `json:"vehicle,omitempty" gorm:"foreignKey:VehicleID"`
	DriverID   *uint    `json:"driverId,omitempty" gorm:"index"` // user id of the assigned driver
	Driver     *User    `json:"driver,omitempty" gorm:"foreignKey:DriverID"`

	StartDate time.Time `json:"startDate" gorm:"not null"`
	EndDate   time.Time `json:"endDate" gorm:"not null"`

	PickupLocation string  `json:"pickupLocation" gorm:"not null"`
	DropLocation   string  `json:"dropLocation" gorm:"not null"`
	TotalPrice     float64 `json:"totalPrice" gorm:"type:decimal(10,2);not null"`
	NeedsDriver    bool    `json:"needsDriver" gorm:"not null;default:false"`
	DriverFee      float64 `json:"driverFee" gorm:"type:decimal(10,2);not null;default:0"`

	Status          BookingStatus `json:"status" gorm:"not null;default:'pending'"`
	OwnerApproved   bool          `json:"ownerApproved" gorm:"not null;default:false"`
	DriverConfirmed bool          `json:"driverConfirmed" gorm:"not null;default:false"` // pickup readiness
	Rating          *int          `json:"rating,omitempty"`

	// Live tracking point, mutated only by the assigned driver.
	CurrentLat        *float64   `json:"currentLat,omitempty"`
	CurrentLng        *float64   `json:"currentLng,omitempty"`
	LocationUpdatedAt *time.Time `json:"locationUpdatedAt,omitempty"`
}

// TableName specifies the table name
func (Booking) TableName() string {
	return "bookings"
}

// Active reports whether this booking currently holds its vehicle
// unavailable.
func (b *Booking) Active() bool {
	switch b.Status {
	case BookingStatusCancelled, BookingStatusCompleted, BookingStatusPaid:
		return false
	}
	return true
}
