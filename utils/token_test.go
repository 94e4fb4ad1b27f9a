package utils

import (
	"errors"
	"testing"
)

func TestJwtRoundTrip(t *testing.T) {
	token, err := JwtGenerate("12", "Dewi", "kasir")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	claim, err := StaffFromToken(token)
	if err != nil {
		t.Fatalf("StaffFromToken: %v", err)
	}
	if claim.StaffID != "12" || claim.StaffName != "Dewi" || claim.Role != "kasir" {
		t.Fatalf("claim = %+v", claim)
	}
}

func TestStaffFromTokenRejectsTampered(t *testing.T) {
	token, err := JwtGenerate("12", "Dewi", "kasir")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	if _, err := StaffFromToken(token + "x"); err == nil {
		t.Fatalf("expected tampered token to fail")
	}
	if _, err := JwtGenerate("", "x", "y"); err == nil {
		t.Fatalf("expected error for empty staff id")
	}
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("GO_ENV", "")
	t.Setenv("API_SECRET", "")
	devToken, err := JwtGenerate("1", "Pak Joko", "admin")
	if err != nil {
		t.Fatalf("dev JwtGenerate: %v", err)
	}

	t.Setenv("GO_ENV", "production")
	if _, err := JwtSecret(); !errors.Is(err, ErrNoJwtSecret) {
		t.Fatalf("JwtSecret = %v, want ErrNoJwtSecret", err)
	}
	if _, err := JwtGenerate("1", "Pak Joko", "admin"); err == nil {
		t.Fatalf("issued a token without a secret in production")
	}
	if _, err := StaffFromToken(devToken); err == nil {
		t.Fatalf("accepted a development-key token in production")
	}

	t.Setenv("API_SECRET", "s3cret-for-test")
	if _, err := StaffFromToken(devToken); err == nil {
		t.Fatalf("accepted a token signed with another key")
	}
	token, err := JwtGenerate("1", "Pak Joko", "admin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	if claim, err := StaffFromToken(token); err != nil || claim.Role != "admin" {
		t.Fatalf("StaffFromToken = %+v %v", claim, err)
	}
}
