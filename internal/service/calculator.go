package service

import (
	"github.com/shopspring/decimal"

	"gatego-backend/internal/model"
)

// Ставки установлены регламентом и не настраиваются
var (
	defaultVATRate    = decimal.RequireFromString("0.11")
	incomeTaxWithNPWP = decimal.RequireFromString("0.025")
	incomeTaxNoNPWP   = decimal.RequireFromString("0.075")
)

// IncomeTaxRate - ставка PPh 22 в зависимости от наличия NPWP
func IncomeTaxRate(hasTaxRegistration bool) decimal.Decimal {
	if hasTaxRegistration {
		return incomeTaxWithNPWP
	}
	return incomeTaxNoNPWP
}

// DefaultVATRate - ставка PPN
func DefaultVATRate() decimal.Decimal { return defaultVATRate }

// CalculateLandedCost рассчитывает пошлину, налоги и полную стоимость ввоза.
// Функция чистая: ошибок нет, округления нет.
func CalculateLandedCost(in model.TaxInput) model.TaxResult {
	vatRate := defaultVATRate
	if in.VATRate.Valid {
		vatRate = in.VATRate.Decimal
	}
	pphRate := IncomeTaxRate(in.HasTaxRegistration)

	cif := in.FOB.Add(in.Freight).Add(in.Insurance)
	duty := cif.Mul(in.DutyRate)
	dpp := cif.Add(duty)
	vat := dpp.Mul(vatRate)
	pph := dpp.Mul(pphRate)
	totalTax := duty.Add(vat).Add(pph)

	lines, fees := applyServiceFees(in.ServiceFees)

	return model.TaxResult{
		CIF:              cif,
		DutyRate:         in.DutyRate,
		DutyAmount:       duty,
		TaxBase:          dpp,
		VATRate:          vatRate,
		VATAmount:        vat,
		IncomeTaxRate:    pphRate,
		IncomeTaxAmount:  pph,
		TotalTax:         totalTax,
		ServiceFeeLines:  lines,
		TotalServiceFees: fees,
		LandedCost:       cif.Add(totalTax).Add(fees),
	}
}

// applyServiceFees - расшифровка и сумма портовых услуг
func applyServiceFees(selections []model.ServiceFeeSelection) ([]model.ServiceFeeLine, decimal.Decimal) {
	total := decimal.Zero
	if len(selections) == 0 {
		return nil, total
	}

	lines := make([]model.ServiceFeeLine, 0, len(selections))
	for _, sel := range selections {
		line := model.ServiceFeeLine{
			Service:   sel.Service,
			Container: sel.Container,
			Size:      sel.Size,
			UnitFee:   decimal.Zero,
			Quantity:  atLeastOne(sel.Quantity),
			Days:      1,
			Amount:    decimal.Zero,
		}

		key, err := ParseFeeKey(sel.Service, sel.Container, sel.Size)
		if err == nil {
			if key.Service == ServiceStorage {
				line.Days = atLeastOne(sel.Days)
			}
			line.UnitFee, line.Resolved = Fee(key)
		}

		line.Amount = line.UnitFee.
			Mul(decimal.NewFromInt(int64(line.Quantity))).
			Mul(decimal.NewFromInt(int64(line.Days)))
		total = total.Add(line.Amount)
		lines = append(lines, line)
	}
	return lines, total
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
