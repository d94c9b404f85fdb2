package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gatego-backend/internal/db"
	"gatego-backend/internal/logging"
	"gatego-backend/internal/metrics"
	"gatego-backend/internal/model"
	"gatego-backend/internal/pib"
	"gatego-backend/internal/service"
	"gatego-backend/internal/tracking"
)

// Store - хранилище, которое использует API
type Store interface {
	service.ClassificationLookup
	tracking.Updater

	ListClassifications(ctx context.Context, q string) ([]model.Classification, error)
	CreateClassification(ctx context.Context, c model.Classification) error
	UpdateClassification(ctx context.Context, code string, c model.Classification) error
	DeleteClassification(ctx context.Context, code string) error

	SaveCalculation(ctx context.Context, channel string, req model.CalcRequest, resp model.CalcResponse) error
	ListCalculations(ctx context.Context, limit int) ([]model.CalculationRecord, error)

	CreateDeclaration(ctx context.Context, d model.Declaration) error
	GetDeclaration(ctx context.Context, id string) (model.Declaration, error)
	ListDeclarations(ctx context.Context, status model.Status) ([]model.Declaration, error)
}

type Server struct {
	Store      Store
	Calculator *service.Calculator
	Quotes     *service.QuoteSigner
	Generator  *pib.Generator
	NewID      func() string
	Now        func() time.Time
}

// Router - маршруты API
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/calculate", s.CalculateHandler).Methods("POST")
	r.HandleFunc("/api/calculations", s.GetCalculationsHandler).Methods("GET")

	r.HandleFunc("/api/service-fees", s.GetServiceFeeHandler).Methods("GET")
	r.HandleFunc("/api/service-fees/schedule", s.GetScheduleHandler).Methods("GET")

	r.HandleFunc("/api/hs-codes", s.GetHSCodesHandler).Methods("GET")
	r.HandleFunc("/api/hs-codes", s.CreateHSCodeHandler).Methods("POST")
	r.HandleFunc("/api/hs-codes/{code}", s.GetHSCodeHandler).Methods("GET")
	r.HandleFunc("/api/hs-codes/{code}", s.UpdateHSCodeHandler).Methods("PUT")
	r.HandleFunc("/api/hs-codes/{code}", s.DeleteHSCodeHandler).Methods("DELETE")

	r.HandleFunc("/api/pib", s.CreatePIBHandler).Methods("POST")
	r.HandleFunc("/api/pib", s.GetPIBsHandler).Methods("GET")
	r.HandleFunc("/api/pib/{id}", s.GetPIBHandler).Methods("GET")
	r.HandleFunc("/api/pib/{id}/events", s.CreatePIBEventHandler).Methods("POST")

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/api/metrics/custom", s.GetCustomMetricsHandler).Methods("GET")

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError - сопоставление ошибок и HTTP-статусов
func writeError(w http.ResponseWriter, err error) {
	var verr *pib.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, db.ErrNotFound), errors.Is(err, service.ErrClassificationNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrMissingDutyRate),
		errors.Is(err, service.ErrUnsupportedCurrency),
		errors.Is(err, service.ErrNegativeAmount),
		errors.Is(err, service.ErrInvalidDutyRate),
		errors.Is(err, service.ErrAmountOutOfRange),
		errors.Is(err, service.ErrInvalidQuote),
		errors.Is(err, tracking.ErrUnknownStage),
		errors.Is(err, tracking.ErrUnknownStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, tracking.ErrOutOfOrder),
		errors.Is(err, tracking.ErrStageClosed),
		errors.Is(err, db.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logging.Error("ошибка обработки запроса", zap.Error(err))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
	}
}

// Расчеты

const maxBodyBytes = 1 << 20

// CalculateHandler - расчет пошлин, налогов и landed cost
func (s *Server) CalculateHandler(w http.ResponseWriter, r *http.Request) {
	defer metrics.ObserveRequest("/api/calculate", time.Now())

	var req model.CalcRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	resp, err := s.Calculator.Calculate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.RecordCalculation("http")

	if err := s.Store.SaveCalculation(r.Context(), "http", req, resp); err != nil {
		logging.Warn("расчет не сохранен в журнал", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetCalculationsHandler - журнал последних расчетов
func (s *Server) GetCalculationsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Неверный параметр limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}

	records, err := s.Store.ListCalculations(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []model.CalculationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Портовые услуги

// GetServiceFeeHandler - тариф одной услуги; неизвестная комбинация дает 0
func (s *Server) GetServiceFeeHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	svc, container, size := q.Get("service"), q.Get("container"), q.Get("size")

	resolved := false
	if key, err := service.ParseFeeKey(svc, container, size); err == nil {
		_, resolved = service.Fee(key)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":   svc,
		"container": container,
		"size":      size,
		"fee":       service.LookupServiceFee(svc, container, size),
		"resolved":  resolved,
	})
}

// GetScheduleHandler - вся тарифная сетка
func (s *Server) GetScheduleHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, service.Schedule())
}

// HS Code

// GetHSCodesHandler - справочник, ?q= для поиска
func (s *Server) GetHSCodesHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListClassifications(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []model.Classification{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetHSCodeHandler - одна позиция
func (s *Server) GetHSCodeHandler(w http.ResponseWriter, r *http.Request) {
	code := service.NormalizeHSCode(mux.Vars(r)["code"])

	item, err := s.Store.GetClassification(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func decodeClassification(r *http.Request) (model.Classification, error) {
	var c model.Classification
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		return c, err
	}
	c.Code = service.NormalizeHSCode(c.Code)
	return c, nil
}

var oneRate = decimal.NewFromInt(1)

func validClassification(c model.Classification) bool {
	return c.Description != "" && service.Bounded(c.DutyRate) &&
		!c.DutyRate.IsNegative() && c.DutyRate.LessThanOrEqual(oneRate)
}

// CreateHSCodeHandler - добавление позиции
func (s *Server) CreateHSCodeHandler(w http.ResponseWriter, r *http.Request) {
	c, err := decodeClassification(r)
	if err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if c.Code == "" || !validClassification(c) {
		http.Error(w, "Код, описание и ставка в диапазоне [0, 1] обязательны", http.StatusBadRequest)
		return
	}

	if err := s.Store.CreateClassification(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateHSCodeHandler - изменение позиции
func (s *Server) UpdateHSCodeHandler(w http.ResponseWriter, r *http.Request) {
	code := service.NormalizeHSCode(mux.Vars(r)["code"])

	c, err := decodeClassification(r)
	if err != nil {
		http.Error(w, "Неверный формат данных", http.StatusBadRequest)
		return
	}
	c.Code = code
	if !validClassification(c) {
		http.Error(w, "Описание и ставка в диапазоне [0, 1] обязательны", http.StatusBadRequest)
		return
	}

	if err := s.Store.UpdateClassification(r.Context(), code, c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteHSCodeHandler - удаление позиции
func (s *Server) DeleteHSCodeHandler(w http.ResponseWriter, r *http.Request) {
	code := service.NormalizeHSCode(mux.Vars(r)["code"])

	if err := s.Store.DeleteClassification(r.Context(), code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "HS Code удалён"})
}

// PIB

// sjcAttempts - сколько раз перегенерировать номер SJC при совпадении
const sjcAttempts = 5

// CreatePIBHandler - подача PIB
func (s *Server) CreatePIBHandler(w http.ResponseWriter, r *http.Request) {
	defer metrics.ObserveRequest("/api/pib", time.Now())

	var raw model.PIBSubmission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	sub := s.Generator.Prepare(raw)
	if err := pib.Validate(sub); err != nil {
		writeError(w, err)
		return
	}

	var claims *service.QuoteClaims
	if sub.QuoteToken != "" {
		if s.Quotes == nil {
			logging.Warn("токен расчета не проверен: подпись не настроена", zap.String("sjc_number", sub.SJCNumber))
		} else {
			c, err := s.Quotes.Verify(sub.QuoteToken)
			if err != nil {
				writeError(w, err)
				return
			}
			if sub.HSCode != "" && c.HSCode != "" && service.NormalizeHSCode(sub.HSCode) != service.NormalizeHSCode(c.HSCode) {
				writeError(w, fmt.Errorf("%w: HS Code %s, в расчете %s", service.ErrInvalidQuote, sub.HSCode, c.HSCode))
				return
			}
			claims = c
		}
	}

	var decl model.Declaration
	for attempt := 1; ; attempt++ {
		decl = tracking.NewDeclaration(s.NewID(), sub, s.Now().UTC())
		if claims != nil {
			decl.TotalTax = claims.TotalTax
			decl.LandedCost = claims.LandedCost
			if decl.Submission.HSCode == "" {
				decl.Submission.HSCode = claims.HSCode
			}
		}

		err := s.Store.CreateDeclaration(r.Context(), decl)
		if err == nil {
			break
		}
		// номер, введенный пользователем, не меняем
		if !errors.Is(err, db.ErrConflict) || raw.SJCNumber != "" || attempt == sjcAttempts {
			writeError(w, err)
			return
		}
		logging.Info("номер SJC занят, выпускаем новый", zap.String("sjc_number", sub.SJCNumber))
		sub.SJCNumber = s.Generator.SJCNumber()
	}

	logging.Info("PIB подана", zap.String("id", decl.ID), zap.String("sjc_number", decl.Submission.SJCNumber))
	writeJSON(w, http.StatusCreated, decl)
}

// GetPIBsHandler - список PIB, ?status= для фильтра
func (s *Server) GetPIBsHandler(w http.ResponseWriter, r *http.Request) {
	status := model.Status(r.URL.Query().Get("status"))
	if status == "all" {
		status = ""
	}

	items, err := s.Store.ListDeclarations(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []model.Declaration{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetPIBHandler - одна PIB
func (s *Server) GetPIBHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.Store.GetDeclaration(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// CreatePIBEventHandler - событие этапа PIB
func (s *Server) CreatePIBEventHandler(w http.ResponseWriter, r *http.Request) {
	var ev model.TrackingEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "Неверный формат события", http.StatusBadRequest)
		return
	}
	ev.DeclarationID = mux.Vars(r)["id"]

	d, err := tracking.Record(r.Context(), s.Store, ev, s.Now)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Метрики

// GetCustomMetricsHandler - расчеты за минуту, час, день
func (s *Server) GetCustomMetricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"calculations_last_minute": metrics.CountSince(time.Minute),
		"calculations_last_hour":   metrics.CountSince(time.Hour),
		"calculations_last_day":    metrics.CountSince(24 * time.Hour),
	})
}
