package model

import (
	"encoding/xml"
	"time"

	"github.com/shopspring/decimal"
)

// Classification - позиция HS Code с тарифом ввозной пошлины
type Classification struct {
	Code        string          `json:"code" xml:"Code"`
	Description string          `json:"description" xml:"Description"`
	Category    string          `json:"category,omitempty" xml:"Category,omitempty"`
	DutyRate    decimal.Decimal `json:"dutyRate" xml:"DutyRate"`
}

// ServiceFeeSelection - выбранная портовая услуга (Pelindo)
type ServiceFeeSelection struct {
	Service   string `json:"service" xml:"Service"`
	Container string `json:"container" xml:"Container"`
	Size      string `json:"size" xml:"Size"`
	Quantity  int    `json:"quantity,omitempty" xml:"Quantity,omitempty"`
	Days      int    `json:"days,omitempty" xml:"Days,omitempty"` // только для storage
}

// TaxInput - входные данные расчета, все суммы в IDR
type TaxInput struct {
	FOB                decimal.Decimal
	Freight            decimal.Decimal
	Insurance          decimal.Decimal
	DutyRate           decimal.Decimal
	HasTaxRegistration bool                // есть NPWP
	VATRate            decimal.NullDecimal // по умолчанию 11%
	ServiceFees        []ServiceFeeSelection
}

// ServiceFeeLine - строка расшифровки портовых услуг
type ServiceFeeLine struct {
	Service   string          `json:"service" xml:"Service"`
	Container string          `json:"container" xml:"Container"`
	Size      string          `json:"size" xml:"Size"`
	UnitFee   decimal.Decimal `json:"unitFee" xml:"UnitFee"`
	Quantity  int             `json:"quantity" xml:"Quantity"`
	Days      int             `json:"days" xml:"Days"`
	Amount    decimal.Decimal `json:"amount" xml:"Amount"`
	Resolved  bool            `json:"resolved" xml:"Resolved"`
}

// TaxResult - разбивка пошлин и налогов; каждая строка показывается пользователю
type TaxResult struct {
	CIF              decimal.Decimal  `json:"cif" xml:"CIF"`
	DutyRate         decimal.Decimal  `json:"dutyRate" xml:"DutyRate"`
	DutyAmount       decimal.Decimal  `json:"dutyAmount" xml:"DutyAmount"`
	TaxBase          decimal.Decimal  `json:"taxBase" xml:"TaxBase"` // DPP
	VATRate          decimal.Decimal  `json:"vatRate" xml:"VATRate"`
	VATAmount        decimal.Decimal  `json:"vatAmount" xml:"VATAmount"`
	IncomeTaxRate    decimal.Decimal  `json:"incomeTaxRate" xml:"IncomeTaxRate"`
	IncomeTaxAmount  decimal.Decimal  `json:"incomeTaxAmount" xml:"IncomeTaxAmount"` // PPh 22
	TotalTax         decimal.Decimal  `json:"totalTax" xml:"TotalTax"`
	ServiceFeeLines  []ServiceFeeLine `json:"serviceFeeLines,omitempty" xml:"ServiceFeeLines>Line,omitempty"`
	TotalServiceFees decimal.Decimal  `json:"totalServiceFees" xml:"TotalServiceFees"`
	LandedCost       decimal.Decimal  `json:"landedCost" xml:"LandedCost"`
}

type CalcRequest struct {
	XMLName            xml.Name              `xml:"CalcRequest" json:"-"`
	RequestID          string                `xml:"RequestID" json:"requestId,omitempty"`
	HSCode             string                `xml:"HSCode" json:"hsCode,omitempty"`
	DutyRate           Rate                  `xml:"DutyRate" json:"dutyRate"`
	FOB                Amount                `xml:"FOB" json:"fobValue"`
	Freight            Amount                `xml:"Freight" json:"freightValue"`
	Insurance          Amount                `xml:"Insurance" json:"insuranceValue"`
	Currency           string                `xml:"Currency" json:"currency,omitempty"`
	ExchangeRate       Amount                `xml:"ExchangeRate" json:"exchangeRate"`
	HasTaxRegistration bool                  `xml:"HasTaxRegistration" json:"hasTaxRegistration"`
	VATRate            Rate                  `xml:"VATRate" json:"vatRate"`
	ServiceFees        []ServiceFeeSelection `xml:"ServiceFees>Fee" json:"serviceFees,omitempty"`
}

type CalcResponse struct {
	XMLName        xml.Name        `xml:"CalcResponse" json:"-"`
	RequestID      string          `xml:"RequestID" json:"requestId,omitempty"`
	Currency       string          `xml:"Currency" json:"currency"`
	ExchangeRate   decimal.Decimal `xml:"ExchangeRate" json:"exchangeRate"`
	Classification *Classification `xml:"Classification,omitempty" json:"classification,omitempty"`
	Result         TaxResult       `xml:"Result" json:"result"`
	QuoteToken     string          `xml:"QuoteToken,omitempty" json:"quoteToken,omitempty"`
	Error          string          `xml:"Error,omitempty" json:"error,omitempty"`
}

// CalculationRecord - запись журнала расчетов
type CalculationRecord struct {
	ID         int64           `json:"id"`
	Channel    string          `json:"channel"`
	HSCode     string          `json:"hsCode"`
	TotalTax   decimal.Decimal `json:"totalTax"`
	LandedCost decimal.Decimal `json:"landedCost"`
	CreatedAt  time.Time       `json:"createdAt"`
}
