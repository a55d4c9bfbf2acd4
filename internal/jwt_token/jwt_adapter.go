package jwttoken

import (
	authmw "poolshare/pkg/platform/middleware/auth"
)

// JWTServiceAdapter exposes the service through the middleware's validator port.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{
		PrincipalID: claims.Subject,
		JTI:         claims.ID,
	}, nil
}
