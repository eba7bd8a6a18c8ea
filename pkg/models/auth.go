package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims are carried by tokens allowed to trigger a recompute.
type AdminClaims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

const RoleAdmin = "admin"
