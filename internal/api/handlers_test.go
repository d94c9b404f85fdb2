package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gatego-backend/internal/db"
	"gatego-backend/internal/model"
	"gatego-backend/internal/pib"
	"gatego-backend/internal/service"
)

type memoryStore struct {
	mu           sync.Mutex
	classes      map[string]model.Classification
	calcs        []model.CalculationRecord
	declarations map[string]model.Declaration
	inserts      int
}

func newMemoryStore() *memoryStore {
	s := &memoryStore{
		classes:      map[string]model.Classification{},
		declarations: map[string]model.Declaration{},
	}
	for _, c := range service.DefaultClassifications() {
		s.classes[c.Code] = c
	}
	return s
}

func (s *memoryStore) GetClassification(_ context.Context, code string) (model.Classification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.classes[service.NormalizeHSCode(code)]
	if !ok {
		return c, db.ErrNotFound
	}
	return c, nil
}

func (s *memoryStore) ListClassifications(_ context.Context, q string) ([]model.Classification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Classification
	for _, c := range s.classes {
		if q == "" || strings.Contains(c.Code, q) || strings.Contains(strings.ToLower(c.Description), strings.ToLower(q)) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *memoryStore) CreateClassification(_ context.Context, c model.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes[c.Code]; ok {
		return db.ErrConflict
	}
	s.classes[c.Code] = c
	return nil
}

func (s *memoryStore) UpdateClassification(_ context.Context, code string, c model.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes[code]; !ok {
		return db.ErrNotFound
	}
	s.classes[code] = c
	return nil
}

func (s *memoryStore) DeleteClassification(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes[code]; !ok {
		return db.ErrNotFound
	}
	delete(s.classes, code)
	return nil
}

func (s *memoryStore) SaveCalculation(_ context.Context, channel string, req model.CalcRequest, resp model.CalcResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calcs = append(s.calcs, model.CalculationRecord{
		ID:         int64(len(s.calcs) + 1),
		Channel:    channel,
		HSCode:     req.HSCode,
		TotalTax:   resp.Result.TotalTax,
		LandedCost: resp.Result.LandedCost,
	})
	return nil
}

func (s *memoryStore) ListCalculations(_ context.Context, limit int) ([]model.CalculationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calcs[:min(limit, len(s.calcs))], nil
}

func (s *memoryStore) CreateDeclaration(_ context.Context, d model.Declaration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	for _, existing := range s.declarations {
		if existing.Submission.SJCNumber == d.Submission.SJCNumber {
			return fmt.Errorf("%w: sjc_number", db.ErrConflict)
		}
	}
	s.declarations[d.ID] = d
	return nil
}

func (s *memoryStore) GetDeclaration(_ context.Context, id string) (model.Declaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.declarations[id]
	if !ok {
		return d, db.ErrNotFound
	}
	return d, nil
}

func (s *memoryStore) ListDeclarations(_ context.Context, status model.Status) ([]model.Declaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Declaration
	for _, d := range s.declarations {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memoryStore) UpdateDeclaration(_ context.Context, id string, fn func(model.Declaration) (model.Declaration, error)) (model.Declaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.declarations[id]
	if !ok {
		return d, db.ErrNotFound
	}
	next, err := fn(d)
	if err != nil {
		return model.Declaration{}, err
	}
	s.declarations[id] = next
	return next, nil
}

var testNow = time.Date(2025, 5, 12, 2, 0, 0, 0, time.UTC)

func newTestServer() (*Server, *memoryStore) {
	store := newMemoryStore()
	quotes := service.NewQuoteSigner([]byte("test-key"), time.Hour)
	ids := 0
	return &Server{
		Store:      store,
		Calculator: &service.Calculator{Classifications: store, Quotes: quotes},
		Quotes:     quotes,
		Generator:  &pib.Generator{Now: func() time.Time { return testNow }, IntN: func(int) int { return 3 }},
		NewID: func() string {
			ids++
			return fmt.Sprintf("pib-%d", ids)
		},
		Now: func() time.Time { return testNow },
	}, store
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCalculateHandler(t *testing.T) {
	srv, store := newTestServer()
	h := srv.Router()

	rec := do(t, h, http.MethodPost, "/api/calculate", `{
		"hsCode": "8517.12.00",
		"fobValue": 24000000,
		"freightValue": "3200000",
		"insuranceValue": 800000,
		"hasTaxRegistration": false
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp model.CalcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, decimal.RequireFromString("38157000").Equal(resp.Result.LandedCost))
	require.True(t, decimal.RequireFromString("2415000").Equal(resp.Result.IncomeTaxAmount))
	require.Equal(t, "IDR", resp.Currency)
	require.NotEmpty(t, resp.QuoteToken)

	require.Len(t, store.calcs, 1)
	require.Equal(t, "http", store.calcs[0].Channel)

	rec = do(t, h, http.MethodGet, "/api/calculations?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []model.CalculationRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)

	rec = do(t, h, http.MethodGet, "/api/calculations?limit=-1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculateHandler_Errors(t *testing.T) {
	srv, store := newTestServer()
	h := srv.Router()

	cases := []struct {
		body string
		code int
	}{
		{`{not json`, http.StatusBadRequest},
		{`{"dutyRate": 0.1, "fobValue": -5}`, http.StatusBadRequest},
		{`{"fobValue": 100}`, http.StatusBadRequest},
		{`{"hsCode": "0000.00.00", "fobValue": 100}`, http.StatusNotFound},
		{`{"dutyRate": 0.1, "currency": "JPY"}`, http.StatusBadRequest},
		{`{"dutyRate": "ten"}`, http.StatusBadRequest},
		{`{"fobValue": "1e20000000", "freightValue": "1", "dutyRate": 0.15}`, http.StatusBadRequest},
		{`{"dutyRate": 0.1, "fobValue": "` + strings.Repeat("9", 2<<20) + `"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := do(t, h, http.MethodPost, "/api/calculate", tc.body)
		require.Equal(t, tc.code, rec.Code, tc.body)
	}
	require.Empty(t, store.calcs)
}

func TestServiceFeeHandlers(t *testing.T) {
	srv, _ := newTestServer()
	h := srv.Router()

	rec := do(t, h, http.MethodGet, "/api/service-fees?service=Storage&container=Full%20Container&size=20ft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"service":"Storage","container":"Full Container","size":"20ft","fee":"26700","resolved":true}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/service-fees?service=Storage&container=Full%20Container&size=99ft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"service":"Storage","container":"Full Container","size":"99ft","fee":"0","resolved":false}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/service-fees/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []service.ScheduleEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, len(service.Schedule()))
}

func TestHSCodeHandlers(t *testing.T) {
	srv, _ := newTestServer()
	h := srv.Router()

	rec := do(t, h, http.MethodPost, "/api/hs-codes", map[string]interface{}{
		"code": "61091000", "description": "Kaos dari katun", "category": "Apparel", "dutyRate": "0.25",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/hs-codes/6109.10.00", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var c model.Classification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	require.Equal(t, "Kaos dari katun", c.Description)

	rec = do(t, h, http.MethodGet, "/api/hs-codes?q=katun", nil)
	var items []model.Classification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)

	rec = do(t, h, http.MethodPost, "/api/hs-codes", map[string]interface{}{
		"code": "6109.10.00", "description": "Kaos", "dutyRate": "0.25",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/hs-codes", map[string]interface{}{"code": "61091000", "description": "x", "dutyRate": "1.5"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/hs-codes", map[string]interface{}{"code": "61092000", "description": "x", "dutyRate": "1e-20000000"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/hs-codes/6109.10.00", map[string]interface{}{"description": "Kaos", "dutyRate": "0.2"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/hs-codes/6109.10.00", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/hs-codes/6109.10.00", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func validSubmission() model.PIBSubmission {
	return model.PIBSubmission{
		Origin:          "Tanjung Priok",
		Destination:     "Cikarang Dry Port",
		ShipperName:     "PT Sinar Elektronik",
		VesselName:      "KM Bahari Nusantara",
		ContainerNumber: "TGHU1234567",
		ContainerSize:   "40",
	}
}

func TestPIBFlow(t *testing.T) {
	srv, store := newTestServer()
	h := srv.Router()

	quote, err := srv.Calculator.Calculate(context.Background(), model.CalcRequest{
		HSCode: "8517.12.00",
		FOB:    model.NewAmount(decimal.NewFromInt(24000000)),
	})
	require.NoError(t, err)

	sub := validSubmission()
	sub.QuoteToken = quote.QuoteToken
	rec := do(t, h, http.MethodPost, "/api/pib", sub)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var d model.Declaration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	require.Equal(t, "pib-1", d.ID)
	require.Equal(t, "SJC-20250512-1003", d.Submission.SJCNumber)
	require.Equal(t, "8517.12.00", d.Submission.HSCode)
	require.True(t, quote.Result.LandedCost.Equal(d.LandedCost))
	require.Equal(t, model.StagePayment, d.CurrentStage)

	rec = do(t, h, http.MethodPost, "/api/pib/pib-1/events", map[string]string{"stage": "customs", "status": "in-progress"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/pib/pib-1/events", map[string]string{"stage": "payment", "status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, model.StageCustoms, store.declarations["pib-1"].CurrentStage)

	rec = do(t, h, http.MethodPost, "/api/pib/pib-1/events", map[string]string{"stage": "payment", "status": "done"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/pib/pib-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/pib?status=in-progress", nil)
	var list []model.Declaration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = do(t, h, http.MethodGet, "/api/pib?status=completed", nil)
	require.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/pib/unknown", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/pib/unknown/events", map[string]string{"stage": "payment", "status": "completed"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePIBHandler_Rejects(t *testing.T) {
	srv, store := newTestServer()
	h := srv.Router()

	rec := do(t, h, http.MethodPost, "/api/pib", model.PIBSubmission{Origin: "Tanjung Priok"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "vesselName")

	sub := validSubmission()
	sub.QuoteToken = "not-a-token"
	rec = do(t, h, http.MethodPost, "/api/pib", sub)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.Empty(t, store.declarations)
}

func TestCustomMetricsHandler(t *testing.T) {
	srv, _ := newTestServer()
	rec := do(t, srv.Router(), http.MethodGet, "/api/metrics/custom", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var m map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	require.Contains(t, m, "calculations_last_minute")
	require.Contains(t, m, "calculations_last_day")
}

func TestCreatePIBHandler_RegeneratesTakenSJCNumber(t *testing.T) {
	srv, store := newTestServer()
	calls := 0
	srv.Generator.IntN = func(int) int {
		calls++
		if calls == 1 {
			return 3
		}
		return 7
	}
	store.declarations["old"] = model.Declaration{ID: "old", Submission: model.PIBSubmission{SJCNumber: "SJC-20250512-1003"}}

	rec := do(t, srv.Router(), http.MethodPost, "/api/pib", validSubmission())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var d model.Declaration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	require.Equal(t, "SJC-20250512-1007", d.Submission.SJCNumber)
	require.Equal(t, "PIB SJC-20250512-1007 berhasil disubmit", d.Notifications[0])
	require.Equal(t, 2, store.inserts)
}

func TestCreatePIBHandler_Conflict(t *testing.T) {
	srv, store := newTestServer()
	h := srv.Router()
	store.declarations["old"] = model.Declaration{ID: "old", Submission: model.PIBSubmission{SJCNumber: "SJC-CLIENT-1"}}

	// номер клиента не перегенерируется
	sub := validSubmission()
	sub.SJCNumber = "SJC-CLIENT-1"
	rec := do(t, h, http.MethodPost, "/api/pib", sub)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 1, store.inserts)

	// генератор все время выдает занятый номер
	store.declarations["busy"] = model.Declaration{ID: "busy", Submission: model.PIBSubmission{SJCNumber: "SJC-20250512-1003"}}
	rec = do(t, h, http.MethodPost, "/api/pib", validSubmission())
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 1+sjcAttempts, store.inserts)
}

func TestCreatePIBHandler_QuoteHSCodeMismatch(t *testing.T) {
	srv, store := newTestServer()

	quote, err := srv.Calculator.Calculate(context.Background(), model.CalcRequest{
		HSCode: "8517.12.00",
		FOB:    model.NewAmount(decimal.NewFromInt(1000)),
	})
	require.NoError(t, err)

	sub := validSubmission()
	sub.QuoteToken = quote.QuoteToken
	sub.HSCode = "8471.30.00"
	rec := do(t, srv.Router(), http.MethodPost, "/api/pib", sub)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, store.declarations)

	sub.HSCode = "85171200"
	rec = do(t, srv.Router(), http.MethodPost, "/api/pib", sub)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreatePIBHandler_TokenWithoutSigner(t *testing.T) {
	srv, store := newTestServer()
	srv.Quotes = nil

	sub := validSubmission()
	sub.QuoteToken = "unverified"
	rec := do(t, srv.Router(), http.MethodPost, "/api/pib", sub)
	require.Equal(t, http.StatusCreated, rec.Code)

	var d model.Declaration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	require.True(t, store.declarations[d.ID].LandedCost.IsZero())
}
