package models

import "testing"

func TestPasswordHashing(t *testing.T) {
	user := &User{Password: "s3cret-pass"}
	if err := user.HashPassword(); err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if user.PasswordHash == "" || user.PasswordHash == user.Password {
		t.Fatal("password should be stored as a bcrypt hash")
	}

	if err := user.CheckPassword("s3cret-pass"); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if err := user.CheckPassword("wrong-pass"); err == nil {
		t.Fatal("wrong password accepted")
	}
}

func TestHashPasswordEmptyIsNoop(t *testing.T) {
	user := &User{PasswordHash: "existing"}
	if err := user.HashPassword(); err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if user.PasswordHash != "existing" {
		t.Fatal("empty password must not overwrite the stored hash")
	}
}
