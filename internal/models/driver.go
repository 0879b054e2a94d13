package models

import (
	"gorm.io/gorm"
)

// Driver is the role profile attached to a user with role=driver. Its
// availability flag gates assignment eligibility and is flipped only by
// booking transitions so it always tracks booking state.
type Driver struct {
	gorm.Model
	UserID        uint    `json:"userId" gorm:"not null;uniqueIndex"`
	User          *User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Availability  bool    `json:"availability" gorm:"not null;default:true"`
	Earnings      float64 `json:"earnings" gorm:"type:decimal(10,2);not null;default:0"`
	AverageRating float64 `json:"averageRating" gorm:"not null;default:0"`
	TotalTrips    int     `json:"totalTrips" gorm:"not null;default:0"`
	Location      string  `json:"location"`
}

// TableName specifies the table name
func (Driver) TableName() string {
	return "drivers"
}
