package handlers

import (
	"errors"

	"github.com/chachabrian/rydio-backend/internal/booking"
	"github.com/chachabrian/rydio-backend/internal/models"
	"github.com/gin-gonic/gin"
)

// actorFrom builds the engine actor from the auth middleware's claims.
func actorFrom(c *gin.Context) booking.Actor {
	return booking.Actor{
		ID:   c.GetUint("userId"),
		Role: models.UserRole(c.GetString("role")),
	}
}

// respondError maps the engine's typed errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	var (
		validationErr    *booking.ValidationError
		authorizationErr *booking.AuthorizationError
		conflictErr      *booking.ConflictError
		notFoundErr      *booking.NotFoundError
		dependencyErr    *booking.DependencyError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(400, gin.H{"error": validationErr.Msg})
	case errors.As(err, &authorizationErr):
		c.JSON(403, gin.H{"error": authorizationErr.Msg})
	case errors.As(err, &conflictErr):
		c.JSON(409, gin.H{"error": conflictErr.Msg})
	case errors.As(err, &notFoundErr):
		c.JSON(404, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &dependencyErr):
		c.JSON(502, gin.H{"error": dependencyErr.Error()})
	default:
		c.JSON(500, gin.H{"error": "Server error"})
	}
}
