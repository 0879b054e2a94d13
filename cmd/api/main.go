package main

import (
	"os"
	"time"

	"github.com/chachabrian/rydio-backend/internal/booking"
	"github.com/chachabrian/rydio-backend/internal/database"
	"github.com/chachabrian/rydio-backend/internal/handlers"
	"github.com/chachabrian/rydio-backend/internal/middleware"
	"github.com/chachabrian/rydio-backend/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, relying on environment")
	}

	db, err := database.InitDB()
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatalf("Failed to get database instance: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := services.InitRedis(); err != nil {
		logger.Fatalf("Failed to initialize Redis: %v", err)
	}

	distance := services.NewRouteDistanceService(logger)
	charger := services.NewStripeCharger(logger)
	engine := booking.NewService(db, distance, charger, booking.ConfigFromEnv(), logger)

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	api := r.Group("/api")
	{
		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub))

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			bookings := protected.Group("/bookings")
			{
				bookings.POST("", handlers.CreateBooking(engine))
				bookings.GET("", handlers.GetBookings(engine))
				bookings.GET("/:id", handlers.GetBooking(engine))
				bookings.PATCH("/:id/approval", handlers.ApproveBooking(engine, hub))
				bookings.POST("/:id/cancel", handlers.CancelBooking(engine))
				bookings.POST("/:id/cancel-driver", handlers.CancelDriverRequest(engine))
				bookings.POST("/:id/assign-driver", handlers.AssignDriver(engine, hub))
				bookings.POST("/:id/confirm-pickup", handlers.ConfirmPickup(engine, hub))
				bookings.POST("/:id/complete", handlers.CompleteTrip(engine, hub))
				bookings.POST("/:id/rate", handlers.RateTrip(engine))
				bookings.POST("/:id/pay", handlers.ProcessPayment(engine, hub))
				bookings.GET("/:id/location", handlers.GetTripLocation(engine))
				bookings.PUT("/:id/location", handlers.UpdateTripLocation(engine, hub))
			}

			drivers := protected.Group("/drivers")
			{
				drivers.GET("/me", handlers.GetDriverProfile(engine))
				drivers.GET("/available", handlers.GetAvailableDrivers(engine))
				drivers.GET("/earnings", handlers.GetDriverEarnings(engine))
				drivers.PATCH("/:driverId", handlers.UpdateDriver(engine))
			}

			owners := protected.Group("/owners")
			{
				owners.GET("/earnings", handlers.GetOwnerEarnings(engine))
			}

			protected.GET("/payments", handlers.GetAllPayments(engine))
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.WithField("port", port).Info("starting server")
	if err := r.Run(":" + port); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
