package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by gateway session tokens.
type Claims struct {
	UserID string `json:"userId"`
	Label  string `json:"label"`
	jwt.RegisteredClaims
}

type Config struct {
	Secret       string
	AccessExpiry time.Duration
	Issuer       string
}

func DefaultConfig(secret string) *Config {
	return &Config{
		Secret:       secret,
		AccessExpiry: 24 * time.Hour,
		Issuer:       "signalmap-agent",
	}
}

// GenerateToken mints a session token for a signed-in user.
func GenerateToken(userID, label string, cfg *Config) (string, error) {
	if cfg == nil {
		return "", errors.New("JWT config is required")
	}

	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Label:  label,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ValidateToken parses and checks a session token.
func ValidateToken(tokenString string, cfg *Config) (*Claims, error) {
	if cfg == nil {
		return nil, errors.New("JWT config is required")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
