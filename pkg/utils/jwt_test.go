package utils

import (
	"testing"

	"github.com/chachabrian/rydio-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

func TestGenerateAndValidateToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	user := &models.User{
		Model: gorm.Model{ID: 42},
		Email: "driver@example.com",
		Role:  models.RoleDriver,
	}

	tokenString, err := GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	token, err := ValidateToken(tokenString)
	if err != nil || !token.Valid {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("expected map claims")
	}
	if uint(claims["id"].(float64)) != 42 {
		t.Fatalf("unexpected id claim: %v", claims["id"])
	}
	if claims["role"].(string) != "driver" {
		t.Fatalf("unexpected role claim: %v", claims["role"])
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "first-secret")
	user := &models.User{Model: gorm.Model{ID: 1}, Role: models.RoleCustomer}
	tokenString, err := GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	t.Setenv("JWT_SECRET", "other-secret")
	if token, err := ValidateToken(tokenString); err == nil && token.Valid {
		t.Fatal("token signed with another secret should not validate")
	}
}
