package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken - токен не прошёл проверку
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrWeakSecret - секрет короче 32 байт
	ErrWeakSecret = errors.New("auth: secret key must be at least 32 bytes")
)

const issuer = "session-replay"

// Claims - утверждения токена оператора
type Claims struct {
	Operator bool `json:"operator"`
	jwt.RegisteredClaims
}

// Authority выдаёт и проверяет HS256 токены
type Authority struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthority создаёт Authority с секретом в base64. Пустой секрет
// заменяется случайным: токены тогда живут до перезапуска.
func NewAuthority(secret string, ttl time.Duration) (*Authority, error) {
	var key []byte
	if secret == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	} else {
		decoded, err := base64.StdEncoding.DecodeString(secret)
		if err != nil {
			return nil, err
		}
		key = decoded
	}
	if len(key) < 32 {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authority{secret: key, ttl: ttl, now: time.Now}, nil
}

// Issue создаёт токен для пользователя
func (a *Authority) Issue(username string, operator bool) (string, error) {
	now := a.now()
	claims := &Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   username,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Validate проверяет подпись и срок действия токена
func (a *Authority) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateSecret создаёт новый секрет в base64
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
