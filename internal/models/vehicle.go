package models

import (
	"gorm.io/gorm"
)

type Vehicle struct {
	gorm.Model
	OwnerID         uint    `json:"ownerId" gorm:"not null;index"`
	Owner           *User   `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Type            string  `json:"type" gorm:"not null"` // car, bike
	Category        string  `json:"category" gorm:"not null"`
	CarModel        string  `json:"model" gorm:"column:model;not null"`
	FuelType        string  `json:"fuelType,omitempty"`
	SeatingCapacity int     `json:"seatingCapacity,omitempty"`
	Price           float64 `json:"price" gorm:"type:decimal(10,2);not null"` // per day
	Location        string  `json:"location" gorm:"not null"`
	Registration    string  `json:"registration" gorm:"not null"`
	Availability    bool    `json:"availability" gorm:"not null;default:true"`
	IsApproved      bool    `json:"isApproved" gorm:"not null;default:false"`
	Rating          float64 `json:"rating" gorm:"not null;default:0"`
}

// TableName specifies the table name
func (Vehicle) TableName() string {
	return "vehicles"
}
