package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "publish-engine"

type WorkspaceClaims struct {
	WorkspaceID string `json:"workspace_id"`
	jwt.RegisteredClaims
}

func (c *WorkspaceClaims) Workspace() (int64, error) {
	return strconv.ParseInt(c.WorkspaceID, 10, 64)
}

func GenerateToken(secretKey string, workspaceID int64, tokenDuration time.Duration) (string, error) {
	now := time.Now()
	claims := WorkspaceClaims{
		WorkspaceID: strconv.FormatInt(workspaceID, 10),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}

func ValidateToken(secretKey, tokenString string) (*WorkspaceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &WorkspaceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secretKey), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*WorkspaceClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
