package model

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount - денежная сумма из формы. Пустое или нечисловое значение читается как 0.
type Amount decimal.Decimal

func NewAmount(d decimal.Decimal) Amount { return Amount(d) }

func (a Amount) Decimal() decimal.Decimal { return decimal.Decimal(a) }

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	d, err := decimal.NewFromString(strings.TrimSpace(string(text)))
	if err != nil {
		d = decimal.Zero
	}
	*a = Amount(d)
	return nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.UnmarshalText(bytes.Trim(data, `"`))
}

// Rate - необязательная ставка (доля). Пустое значение означает «не задано».
type Rate struct {
	Value decimal.Decimal
	Set   bool
}

func NewRate(d decimal.Decimal) Rate { return Rate{Value: d, Set: true} }

// NullDecimal - преобразование для входа движка
func (r Rate) NullDecimal() decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: r.Value, Valid: r.Set}
}

func (r Rate) MarshalText() ([]byte, error) {
	if !r.Set {
		return []byte{}, nil
	}
	return []byte(r.Value.String()), nil
}

func (r *Rate) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" || s == "null" {
		*r = Rate{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("некорректная ставка %q: %w", s, err)
	}
	*r = Rate{Value: d, Set: true}
	return nil
}

func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.Set {
		return []byte("null"), nil
	}
	return []byte(r.Value.String()), nil
}

func (r *Rate) UnmarshalJSON(data []byte) error {
	return r.UnmarshalText(bytes.Trim(data, `"`))
}
