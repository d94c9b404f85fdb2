package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gatego-backend/internal/model"
)

const quoteIssuer = "gatego"

var ErrInvalidQuote = errors.New("недействительный токен расчета")

// QuoteClaims - зафиксированные итоги расчета внутри токена
type QuoteClaims struct {
	HSCode     string          `json:"hs,omitempty"`
	CIF        decimal.Decimal `json:"cif"`
	TotalTax   decimal.Decimal `json:"tax"`
	LandedCost decimal.Decimal `json:"landed"`
	jwt.RegisteredClaims
}

// QuoteSigner подписывает и проверяет токены расчета (HS256)
type QuoteSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewQuoteSigner(key []byte, ttl time.Duration) *QuoteSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &QuoteSigner{key: key, ttl: ttl, now: time.Now}
}

// Issue - выпуск токена по результату расчета
func (s *QuoteSigner) Issue(resp model.CalcResponse) (string, error) {
	now := s.now()
	claims := QuoteClaims{
		CIF:        resp.Result.CIF,
		TotalTax:   resp.Result.TotalTax,
		LandedCost: resp.Result.LandedCost,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    quoteIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if resp.Classification != nil {
		claims.HSCode = resp.Classification.Code
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify - проверка подписи, издателя и срока действия
func (s *QuoteSigner) Verify(token string) (*QuoteClaims, error) {
	claims := &QuoteClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(quoteIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuote, err)
	}
	return claims, nil
}
