package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/mmdatafocus/pos_backend/config"
)

// StaffClaim identifies the cashier operating a register.
type StaffClaim struct {
	StaffID   string `json:"staffId"`
	StaffName string `json:"staffName"`
	Role      string `json:"role"`
	jwt.StandardClaims
}

const devJwtSecret = "pos-dev-secret"

var ErrNoJwtSecret = errors.New("API_SECRET must be set in production")

// JwtSecret returns the signing key. An unset API_SECRET falls back to a
// development key, except in production where tokens can be neither issued
// nor accepted.
func JwtSecret() ([]byte, error) {
	if secret := config.APISecret(); secret != "" {
		return []byte(secret), nil
	}
	if config.IsProduction() {
		return nil, ErrNoJwtSecret
	}
	return []byte(devJwtSecret), nil
}

func JwtGenerate(staffID, staffName, role string) (string, error) {
	if staffID == "" {
		return "", errors.New("staff id is required")
	}
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &StaffClaim{
		StaffID:   staffID,
		StaffName: staffName,
		Role:      role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(config.TokenLifespan()).Unix(),
			IssuedAt:  now.Unix(),
		},
	})

	secret, err := JwtSecret()
	if err != nil {
		return "", err
	}
	token, err := t.SignedString(secret)
	if err != nil {
		return "", err
	}

	return token, nil
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &StaffClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return JwtSecret()
	})
}

// StaffFromToken validates the token and returns its claim.
func StaffFromToken(token string) (*StaffClaim, error) {
	parsed, err := JwtValidate(token)
	if err != nil {
		return nil, err
	}
	claim, ok := parsed.Claims.(*StaffClaim)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claim.StaffID == "" {
		return nil, errors.New("token has no staff id")
	}
	return claim, nil
}
