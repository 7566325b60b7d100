package pkg

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrRefreshExpired = errors.New("refresh expired")
	ErrRefreshInvalid = errors.New("refresh invalid")
)

const (
	AccessTTL  = 30 * time.Minute
	RefreshTTL = 24 * time.Hour
)

var (
	accessSecret  = []byte(envOr("JWT_ACCESS_SECRET", "roster-access-secret"))
	refreshSecret = []byte(envOr("JWT_REFRESH_SECRET", "roster-refresh-secret"))
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type Claims struct {
	UserID uint64 `json:"user_id"`
	Role   int    `json:"role"`
	jwt.RegisteredClaims
}

type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func sign(userID uint64, role int, subject string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   subject,
		},
	})
	return token.SignedString(secret)
}

func GeneratePair(userID uint64, role int) (*Pair, error) {
	access, err := sign(userID, role, "access", AccessTTL, accessSecret)
	if err != nil {
		return nil, err
	}
	refresh, err := sign(userID, role, "refresh", RefreshTTL, refreshSecret)
	if err != nil {
		return nil, err
	}
	return &Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func parse(tokenStr string, secret []byte, errExpired, errInvalid error) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errExpired
		}
		return nil, errInvalid
	}
	if !token.Valid {
		return nil, errInvalid
	}
	return token.Claims.(*Claims), nil
}

func ParseAccess(tokenStr string) (*Claims, error) {
	return parse(tokenStr, accessSecret, ErrTokenExpired, ErrTokenInvalid)
}

// Refresh 用 refresh token 换新的一对。
// TODO: 给 refresh 加 jti 并落库，支持主动吊销
func Refresh(refreshToken string) (*Pair, error) {
	claims, err := parse(refreshToken, refreshSecret, ErrRefreshExpired, ErrRefreshInvalid)
	if err != nil {
		return nil, err
	}
	return GeneratePair(claims.UserID, claims.Role)
}
