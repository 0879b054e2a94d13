package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	_, err = RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

// SetDriverAvailability mirrors a driver's availability flag. The database
// row stays authoritative; the mirror only feeds dashboards and ranking.
func SetDriverAvailability(ctx context.Context, driverUserID uint, isAvailable bool) error {
	if RedisClient == nil {
		return nil
	}
	key := fmt.Sprintf("driver:availability:%d", driverUserID)
	value := "false"
	if isAvailable {
		value = "true"
	}
	return RedisClient.Set(ctx, key, value, time.Hour).Err()
}

// Coords is a cached geocoding result.
type Coords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SetGeocodedLocation caches the coordinates for a free-text location for
// 24 hours, matching the upstream provider's fair-use guidance.
func SetGeocodedLocation(ctx context.Context, location string, coords Coords) error {
	if RedisClient == nil {
		return nil
	}
	data, err := json.Marshal(coords)
	if err != nil {
		return err
	}
	key := "geocode:" + location
	return RedisClient.Set(ctx, key, data, 24*time.Hour).Err()
}

// GetGeocodedLocation retrieves cached coordinates for a location string.
func GetGeocodedLocation(ctx context.Context, location string) (*Coords, error) {
	if RedisClient == nil {
		return nil, redis.Nil
	}
	data, err := RedisClient.Get(ctx, "geocode:"+location).Result()
	if err != nil {
		return nil, err
	}

	var coords Coords
	if err := json.Unmarshal([]byte(data), &coords); err != nil {
		return nil, err
	}
	return &coords, nil
}

// SetRankedDrivers caches the distance-ranked driver list for a booking's
// pickup location for a short window.
func SetRankedDrivers(ctx context.Context, bookingID uint, drivers []map[string]interface{}) error {
	if RedisClient == nil {
		return nil
	}
	key := fmt.Sprintf("booking:ranked-drivers:%d", bookingID)
	data, err := json.Marshal(drivers)
	if err != nil {
		return err
	}
	return RedisClient.Set(ctx, key, data, 5*time.Minute).Err()
}

// GetRankedDrivers retrieves the cached ranked driver list for a booking.
func GetRankedDrivers(ctx context.Context, bookingID uint) ([]map[string]interface{}, error) {
	if RedisClient == nil {
		return nil, redis.Nil
	}
	key := fmt.Sprintf("booking:ranked-drivers:%d", bookingID)
	data, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var drivers []map[string]interface{}
	if err := json.Unmarshal([]byte(data), &drivers); err != nil {
		return nil, err
	}

	return drivers, nil
}

// PublishBookingUpdate publishes a booking status update to Redis pub/sub
func PublishBookingUpdate(ctx context.Context, bookingID uint, status string, data map[string]interface{}) error {
	if RedisClient == nil {
		return nil
	}
	updateData := map[string]interface{}{
		"bookingId": bookingID,
		"status":    status,
		"data":      data,
		"timestamp": time.Now().Unix(),
	}

	jsonData, err := json.Marshal(updateData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "booking:updates", jsonData).Err()
}
