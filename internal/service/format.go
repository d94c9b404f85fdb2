package service

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatIDR - округление до целых рупий и разделители разрядов (Rp 36.547.000)
func FormatIDR(amount decimal.Decimal) string {
	return idPrinter.Sprintf("Rp %d", amount.Round(0).IntPart())
}

// FormatPercent - 0.075 -> "7.5%"
func FormatPercent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).String() + "%"
}
