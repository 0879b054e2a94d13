package utils

import (
	"math"
	"time"
)

const (
	// DefaultDriverRatePerKm is the chauffeur fee per road kilometer, used
	// when DRIVER_RATE_PER_KM is not configured.
	DefaultDriverRatePerKm = 15.0

	// PaymentCurrency is the charge currency for all settlements.
	PaymentCurrency = "usd"
)

// RentalDays returns the number of billable days for a rental period.
// Partial days are billed as full days.
func RentalDays(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// RentalPrice computes the total booking price from the vehicle's daily
// price and the rental period.
func RentalPrice(pricePerDay float64, start, end time.Time) float64 {
	return pricePerDay * float64(RentalDays(start, end))
}

// FeeSplit is the settlement breakdown of a booking's total price.
type FeeSplit struct {
	Total       float64 `json:"total"`
	DriverFee   float64 `json:"driverFee"`
	OwnerAmount float64 `json:"ownerAmount"`
}

// SplitFees divides the total price between the owner and the driver based
// on the road distance of the trip. A negative or zero distance (distance
// lookup failed or trivial trip) gives the whole amount to the owner.
func SplitFees(total, distanceKm, ratePerKm float64) FeeSplit {
	var driverFee float64
	if distanceKm > 0 && ratePerKm > 0 {
		driverFee = math.Round(distanceKm*ratePerKm*100) / 100
	}
	return FeeSplit{
		Total:       total,
		DriverFee:   driverFee,
		OwnerAmount: total - driverFee,
	}
}

// AmountToMinorUnits converts a decimal amount to the provider's minor
// currency units (cents).
func AmountToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
