package models

import (
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is an append-only ledger entry: one row per charge attempt, never
// mutated after creation.
type Payment struct {
	gorm.Model
	BookingID   uint          `json:"bookingId" gorm:"not null;index"`
	Booking     *Booking      `json:"booking,omitempty" gorm:"foreignKey:BookingID"`
	Amount      float64       `json:"amount" gorm:"type:decimal(10,2);not null"`
	Method      string        `json:"method" gorm:"not null"`
	Status      PaymentStatus `json:"status" gorm:"not null;default:'pending'"`
	CustomerID  uint          `json:"customerId" gorm:"not null;index"`
	Customer    *User         `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	OwnerID     uint          `json:"ownerId" gorm:"not null;index"`
	Owner       *User         `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	DriverID    *uint         `json:"driverId,omitempty" gorm:"index"` // nil for bookings without drivers
	DriverFee   float64       `json:"driverFee" gorm:"type:decimal(10,2);not null;default:0"`
	OwnerAmount float64       `json:"ownerAmount" gorm:"type:decimal(10,2);not null"`
	ProviderRef string        `json:"providerRef"`
}

// TableName specifies the table name
func (Payment) TableName() string {
	return "payments"
}
