package iso

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/moov-io/iso8583"
	"github.com/moov-io/iso8583/specs"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gatego-backend/internal/logging"
	"gatego-backend/internal/metrics"
	"gatego-backend/internal/model"
	"gatego-backend/internal/service"
)

// Коды ответа (поле 39)
const (
	CodeApproved      = "00"
	CodeUnknownHSCode = "14"
	CodeFormatError   = "30"
	CodeSystemError   = "96"
)

// Поля запроса 0200 и ответа 0210
const (
	fieldHSCode      = 2
	fieldFOB         = 4 // в ответе - сумма налогов
	fieldFreight     = 5 // в ответе - landed cost
	fieldInsurance   = 6
	fieldResponse    = 39
	fieldDescription = 48
	fieldNPWP        = 60
)

const channel = "iso8583"

// CalculationLog - журнал расчетов
type CalculationLog interface {
	SaveCalculation(ctx context.Context, channel string, req model.CalcRequest, resp model.CalcResponse) error
}

// Server - TCP-сервер котировок пошлин в формате ISO8583 (ASCII, 1987)
type Server struct {
	Calculator *service.Calculator
	Log        CalculationLog
}

func buildSpec() *iso8583.MessageSpec { return specs.Spec87ASCII }

// ListenAndServe - прием соединений до отмены контекста
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("ошибка запуска ISO8583 сервера: %w", err)
	}
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	logging.Info("ISO8583 сервер слушает", zap.String("addr", addr))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Warn("ошибка соединения ISO8583", zap.Error(err))
			continue
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(30 * time.Second))

	buffer := make([]byte, 4096)
	n, err := conn.Read(buffer)
	if err != nil {
		logging.Warn("ошибка чтения ISO8583", zap.Error(err))
		return
	}

	req := iso8583.NewMessage(buildSpec())
	var resp *iso8583.Message
	if err := req.Unpack(buffer[:n]); err != nil {
		logging.Warn("ошибка распаковки ISO8583", zap.Error(err))
		resp = reply(CodeFormatError)
	} else {
		resp = s.HandleMessage(ctx, req)
	}

	packed, err := resp.Pack()
	if err != nil {
		logging.Error("ошибка упаковки ответа ISO8583", zap.Error(err))
		if packed, err = reply(CodeSystemError).Pack(); err != nil {
			return
		}
	}
	if _, err := conn.Write(packed); err != nil {
		logging.Warn("ошибка отправки ответа ISO8583", zap.Error(err))
	}
}

func reply(code string) *iso8583.Message {
	resp := iso8583.NewMessage(buildSpec())
	resp.MTI("0210")
	_ = resp.Field(fieldResponse, code)
	return resp
}

// amount - пустое или нечисловое поле читается как 0
func amount(msg *iso8583.Message, id int) decimal.Decimal {
	v, err := msg.GetString(id)
	if err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// amountDigits - ширина полей 4-6
const amountDigits = 12

// formatAmount - целые рупии в поле фиксированной длины; ok=false, если сумма не помещается
func formatAmount(d decimal.Decimal) (string, bool) {
	r := d.Round(0)
	if r.IsNegative() || r.NumDigits() > amountDigits {
		return "", false
	}
	return fmt.Sprintf("%0*d", amountDigits, r.IntPart()), true
}

// HandleMessage - запрос 0200 в ответ 0210
func (s *Server) HandleMessage(ctx context.Context, req *iso8583.Message) *iso8583.Message {
	mti, err := req.GetMTI()
	if err != nil || mti != "0200" {
		return reply(CodeFormatError)
	}

	hsCode, _ := req.GetString(fieldHSCode)
	npwp, _ := req.GetString(fieldNPWP)

	calcReq := model.CalcRequest{
		RequestID:          "iso-" + hsCode,
		HSCode:             strings.TrimSpace(hsCode),
		FOB:                model.NewAmount(amount(req, fieldFOB)),
		Freight:            model.NewAmount(amount(req, fieldFreight)),
		Insurance:          model.NewAmount(amount(req, fieldInsurance)),
		HasTaxRegistration: strings.EqualFold(strings.TrimSpace(npwp), "Y"),
	}

	logging.Debug("запрос ISO8583",
		zap.String("hs_code", calcReq.HSCode),
		zap.Bool("npwp", calcReq.HasTaxRegistration))

	calc, err := s.Calculator.Calculate(ctx, calcReq)
	if err != nil {
		code := CodeSystemError
		switch {
		case errors.Is(err, service.ErrClassificationNotFound), errors.Is(err, service.ErrMissingDutyRate):
			code = CodeUnknownHSCode
		case errors.Is(err, service.ErrNegativeAmount),
			errors.Is(err, service.ErrInvalidDutyRate),
			errors.Is(err, service.ErrAmountOutOfRange):
			code = CodeFormatError
		}
		logging.Warn("расчет ISO8583 отклонен", zap.String("code", code), zap.Error(err))
		resp := reply(code)
		if hsCode != "" {
			_ = resp.Field(fieldHSCode, hsCode)
		}
		return resp
	}

	metrics.RecordCalculation(channel)
	if s.Log != nil {
		if err := s.Log.SaveCalculation(ctx, channel, calcReq, calc); err != nil {
			logging.Warn("расчет не сохранен в журнал", zap.String("channel", channel), zap.Error(err))
		}
	}

	totalTax, okTax := formatAmount(calc.Result.TotalTax)
	landed, okLanded := formatAmount(calc.Result.LandedCost)
	if !okTax || !okLanded {
		logging.Warn("сумма не помещается в поле ISO8583",
			zap.String("hs_code", calcReq.HSCode),
			zap.String("landed_cost", calc.Result.LandedCost.String()))
		resp := reply(CodeSystemError)
		if hsCode != "" {
			_ = resp.Field(fieldHSCode, hsCode)
		}
		return resp
	}

	resp := reply(CodeApproved)
	if hsCode != "" {
		_ = resp.Field(fieldHSCode, hsCode)
	}
	_ = resp.Field(fieldFOB, totalTax)
	_ = resp.Field(fieldFreight, landed)
	if calc.Classification != nil {
		desc := calc.Classification.Description
		if len(desc) > 99 {
			desc = desc[:99]
		}
		_ = resp.Field(fieldDescription, desc)
	}
	return resp
}
