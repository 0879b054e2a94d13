package database

import (
	"fmt"
	"os"

	"github.com/chachabrian/rydio-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func InitDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.Vehicle{},
		&models.Driver{},
		&models.Booking{},
		&models.Payment{},
	)
	if err != nil {
		return err
	}

	// Older deployments stored booking status 'confirmed'; the reconciled
	// state machine uses 'pickup-confirmed' for that step.
	if db.Migrator().HasTable(&models.Booking{}) {
		if err := db.Exec(`UPDATE bookings SET status = 'pickup-confirmed' WHERE status = 'confirmed'`).Error; err != nil {
			return err
		}
	}

	return nil
}
