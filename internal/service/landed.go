package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gatego-backend/internal/db"
	"gatego-backend/internal/logging"
	"gatego-backend/internal/model"
)

// Ошибки входных данных; сам движок расчета ошибок не возвращает
var (
	ErrMissingDutyRate        = errors.New("не задан HS Code или ставка пошлины")
	ErrClassificationNotFound = errors.New("HS Code не найден")
	ErrUnsupportedCurrency    = errors.New("валюта не поддерживается")
	ErrNegativeAmount         = errors.New("сумма не может быть отрицательной")
	ErrInvalidDutyRate        = errors.New("ставка должна быть в диапазоне [0, 1]")
	ErrAmountOutOfRange       = errors.New("число вне допустимого диапазона")
)

const (
	CurrencyIDR = "IDR"
	CurrencyUSD = "USD"
)

// FallbackExchangeRate - курс по умолчанию (kurs pajak), IDR за 1 USD
var FallbackExchangeRate = decimal.NewFromInt(16000)

// ClassificationLookup - источник ставок по HS Code
type ClassificationLookup interface {
	GetClassification(ctx context.Context, code string) (model.Classification, error)
}

// Calculator - общий вход для HTTP, Kafka и ISO8583
type Calculator struct {
	Classifications     ClassificationLookup
	DefaultExchangeRate decimal.Decimal
	Quotes              *QuoteSigner
}

// Calculate - проверка запроса, приведение к IDR и расчет
func (c *Calculator) Calculate(ctx context.Context, req model.CalcRequest) (model.CalcResponse, error) {
	input, class, rate, err := c.Prepare(ctx, req)
	if err != nil {
		return model.CalcResponse{}, err
	}

	resp := model.CalcResponse{
		RequestID:      req.RequestID,
		Currency:       CurrencyIDR,
		ExchangeRate:   rate,
		Classification: class,
		Result:         CalculateLandedCost(input),
	}

	if c.Quotes != nil {
		token, err := c.Quotes.Issue(resp)
		if err != nil {
			return model.CalcResponse{}, fmt.Errorf("подпись расчета: %w", err)
		}
		resp.QuoteToken = token
	}

	logging.Debug("расчет выполнен",
		zap.String("request_id", req.RequestID),
		zap.String("hs_code", req.HSCode),
		zap.String("landed_cost", resp.Result.LandedCost.String()))

	return resp, nil
}

// Prepare - сбор входа движка из запроса
func (c *Calculator) Prepare(ctx context.Context, req model.CalcRequest) (model.TaxInput, *model.Classification, decimal.Decimal, error) {
	fob, freight, insurance := req.FOB.Decimal(), req.Freight.Decimal(), req.Insurance.Decimal()
	// до любой арифметики: Add, Mul и Cmp масштабируют по экспоненте
	for _, v := range []decimal.Decimal{fob, freight, insurance, req.ExchangeRate.Decimal(), req.DutyRate.Value, req.VATRate.Value} {
		if !Bounded(v) {
			return model.TaxInput{}, nil, decimal.Zero, ErrAmountOutOfRange
		}
	}
	for _, v := range []decimal.Decimal{fob, freight, insurance} {
		if v.IsNegative() {
			return model.TaxInput{}, nil, decimal.Zero, ErrNegativeAmount
		}
	}

	rate, err := c.exchangeRate(req)
	if err != nil {
		return model.TaxInput{}, nil, decimal.Zero, err
	}

	var class *model.Classification
	dutyRate := req.DutyRate.Value
	switch {
	case req.DutyRate.Set:
	case strings.TrimSpace(req.HSCode) != "":
		if c.Classifications == nil {
			return model.TaxInput{}, nil, decimal.Zero, ErrClassificationNotFound
		}
		found, err := c.Classifications.GetClassification(ctx, req.HSCode)
		if errors.Is(err, db.ErrNotFound) {
			return model.TaxInput{}, nil, decimal.Zero, fmt.Errorf("%w: %s", ErrClassificationNotFound, req.HSCode)
		}
		if err != nil {
			return model.TaxInput{}, nil, decimal.Zero, err
		}
		if !Bounded(found.DutyRate) {
			return model.TaxInput{}, nil, decimal.Zero, fmt.Errorf("%w: ставка HS Code %s", ErrAmountOutOfRange, found.Code)
		}
		class = &found
		dutyRate = found.DutyRate
	default:
		return model.TaxInput{}, nil, decimal.Zero, ErrMissingDutyRate
	}

	if !validRate(dutyRate) {
		return model.TaxInput{}, nil, decimal.Zero, fmt.Errorf("%w: пошлина %s", ErrInvalidDutyRate, dutyRate)
	}
	if req.VATRate.Set && !validRate(req.VATRate.Value) {
		return model.TaxInput{}, nil, decimal.Zero, fmt.Errorf("%w: PPN %s", ErrInvalidDutyRate, req.VATRate.Value)
	}

	return model.TaxInput{
		FOB:                fob.Mul(rate),
		Freight:            freight.Mul(rate),
		Insurance:          insurance.Mul(rate),
		DutyRate:           dutyRate,
		HasTaxRegistration: req.HasTaxRegistration,
		VATRate:            req.VATRate.NullDecimal(),
		ServiceFees:        req.ServiceFees,
	}, class, rate, nil
}

// exchangeRate - заявленные суммы в USD переводятся по курсу, IDR берется как есть
func (c *Calculator) exchangeRate(req model.CalcRequest) (decimal.Decimal, error) {
	switch strings.ToUpper(strings.TrimSpace(req.Currency)) {
	case "", CurrencyIDR:
		return decimal.NewFromInt(1), nil
	case CurrencyUSD:
		if rate := req.ExchangeRate.Decimal(); rate.IsPositive() {
			return rate, nil
		}
		if c.DefaultExchangeRate.IsPositive() {
			return c.DefaultExchangeRate, nil
		}
		return FallbackExchangeRate, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, req.Currency)
	}
}

// Пределы для входных чисел: не больше 30 значащих цифр, экспонента в [-18, 18]
const (
	maxDigits   = 30
	maxExponent = 18
)

// Bounded - число можно безопасно передать в расчет
func Bounded(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp >= -maxExponent && exp <= maxExponent && d.NumDigits() <= maxDigits
}

func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThanOrEqual(decimal.NewFromInt(1))
}
