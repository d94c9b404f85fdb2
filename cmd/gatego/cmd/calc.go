package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"gatego-backend/internal/model"
	"gatego-backend/internal/service"
)

var oneIDR = decimal.NewFromInt(1)

var calcFlags struct {
	fob, freight, insurance string
	dutyRate, vatRate       string
	hsCode                  string
	npwp                    bool
	currency, rate          string
	fees                    []string
	format                  string
}

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Расчет пошлин, налогов и landed cost",
	Long: `Расчет по справочнику HS Code (--hs-code) или явной ставке (--duty-rate).

Портовые услуги: --fee "Услуга:Тип контейнера:Размер[:Количество[:Дней]]", например
  --fee "Storage:Full Container:20ft:2:3" --fee "Lift:Full Container:20ft:2"`,
	Args: cobra.NoArgs,
	RunE: runCalc,
}

func init() {
	f := calcCmd.Flags()
	f.StringVar(&calcFlags.fob, "fob", "", "стоимость FOB")
	f.StringVar(&calcFlags.freight, "freight", "", "фрахт")
	f.StringVar(&calcFlags.insurance, "insurance", "", "страховка")
	f.StringVar(&calcFlags.dutyRate, "duty-rate", "", "ставка ввозной пошлины (доля, 0.15)")
	f.StringVar(&calcFlags.vatRate, "vat-rate", "", "ставка PPN (по умолчанию 0.11)")
	f.StringVar(&calcFlags.hsCode, "hs-code", "", "HS Code из справочника")
	f.BoolVar(&calcFlags.npwp, "npwp", false, "импортер зарегистрирован (NPWP): PPh 22 2.5% вместо 7.5%")
	f.StringVar(&calcFlags.currency, "currency", service.CurrencyIDR, "валюта заявленной стоимости (IDR, USD)")
	f.StringVar(&calcFlags.rate, "rate", "", "курс IDR за 1 USD")
	f.StringArrayVar(&calcFlags.fees, "fee", nil, "портовая услуга, можно несколько раз")
	f.StringVarP(&calcFlags.format, "format", "f", "table", "формат вывода (table, json)")
}

// parseFee - "Storage:Full Container:20ft:2:3"
func parseFee(s string) (model.ServiceFeeSelection, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 5 {
		return model.ServiceFeeSelection{}, fmt.Errorf("услуга %q: ожидается Услуга:Тип:Размер[:Количество[:Дней]]", s)
	}
	sel := model.ServiceFeeSelection{
		Service:   strings.TrimSpace(parts[0]),
		Container: strings.TrimSpace(parts[1]),
		Size:      strings.TrimSpace(parts[2]),
	}
	var err error
	if len(parts) > 3 {
		if sel.Quantity, err = strconv.Atoi(strings.TrimSpace(parts[3])); err != nil {
			return sel, fmt.Errorf("услуга %q: количество: %w", s, err)
		}
	}
	if len(parts) > 4 {
		if sel.Days, err = strconv.Atoi(strings.TrimSpace(parts[4])); err != nil {
			return sel, fmt.Errorf("услуга %q: дни: %w", s, err)
		}
	}
	return sel, nil
}

func buildRequest() (model.CalcRequest, error) {
	req := model.CalcRequest{
		HSCode:             calcFlags.hsCode,
		Currency:           calcFlags.currency,
		HasTaxRegistration: calcFlags.npwp,
	}
	_ = req.FOB.UnmarshalText([]byte(calcFlags.fob))
	_ = req.Freight.UnmarshalText([]byte(calcFlags.freight))
	_ = req.Insurance.UnmarshalText([]byte(calcFlags.insurance))
	_ = req.ExchangeRate.UnmarshalText([]byte(calcFlags.rate))

	if err := req.DutyRate.UnmarshalText([]byte(calcFlags.dutyRate)); err != nil {
		return req, err
	}
	if err := req.VATRate.UnmarshalText([]byte(calcFlags.vatRate)); err != nil {
		return req, err
	}

	for _, raw := range calcFlags.fees {
		sel, err := parseFee(raw)
		if err != nil {
			return req, err
		}
		req.ServiceFees = append(req.ServiceFees, sel)
	}
	return req, nil
}

func runCalc(cmd *cobra.Command, args []string) error {
	req, err := buildRequest()
	if err != nil {
		return err
	}

	calc := &service.Calculator{
		Classifications: service.NewStaticCatalogue(service.DefaultClassifications()),
	}
	resp, err := calc.Calculate(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if calcFlags.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return printResult(out, resp)
}

func printResult(out io.Writer, resp model.CalcResponse) error {
	r := resp.Result
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)

	if resp.Classification != nil {
		fmt.Fprintf(out, "HS Code %s: %s\n", resp.Classification.Code, resp.Classification.Description)
	}
	if !resp.ExchangeRate.Equal(oneIDR) {
		fmt.Fprintf(out, "Kurs: %s\n", service.FormatIDR(resp.ExchangeRate))
	}

	rows := []struct {
		label, value string
	}{
		{"CIF", service.FormatIDR(r.CIF)},
		{"Bea Masuk (" + service.FormatPercent(r.DutyRate) + ")", service.FormatIDR(r.DutyAmount)},
		{"DPP", service.FormatIDR(r.TaxBase)},
		{"PPN (" + service.FormatPercent(r.VATRate) + ")", service.FormatIDR(r.VATAmount)},
		{"PPh 22 (" + service.FormatPercent(r.IncomeTaxRate) + ")", service.FormatIDR(r.IncomeTaxAmount)},
		{"Total Pajak", service.FormatIDR(r.TotalTax)},
	}
	for _, line := range r.ServiceFeeLines {
		label := fmt.Sprintf("%s %s %s ×%d", line.Service, line.Container, line.Size, line.Quantity)
		if line.Days > 1 {
			label += fmt.Sprintf(" ×%d hari", line.Days)
		}
		if !line.Resolved {
			label += " (tarif tidak ditemukan)"
		}
		rows = append(rows, struct{ label, value string }{label, service.FormatIDR(line.Amount)})
	}
	rows = append(rows,
		struct{ label, value string }{"Biaya Layanan", service.FormatIDR(r.TotalServiceFees)},
		struct{ label, value string }{"Landed Cost", service.FormatIDR(r.LandedCost)},
	)

	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t\n", row.label, row.value)
	}
	return tw.Flush()
}
