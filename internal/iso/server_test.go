package iso

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/moov-io/iso8583"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gatego-backend/internal/model"
	"gatego-backend/internal/service"
)

type recordingLog struct{ channels []string }

func (l *recordingLog) SaveCalculation(_ context.Context, channel string, _ model.CalcRequest, _ model.CalcResponse) error {
	l.channels = append(l.channels, channel)
	return nil
}

func newServer() (*Server, *recordingLog) {
	log := &recordingLog{}
	return &Server{
		Calculator: &service.Calculator{Classifications: service.NewStaticCatalogue(service.DefaultClassifications())},
		Log:        log,
	}, log
}

func quoteRequest(t *testing.T, hsCode, npwp string) *iso8583.Message {
	t.Helper()
	msg := iso8583.NewMessage(buildSpec())
	msg.MTI("0200")
	require.NoError(t, msg.Field(fieldHSCode, hsCode))
	require.NoError(t, msg.Field(fieldFOB, "24000000"))
	require.NoError(t, msg.Field(fieldFreight, "3200000"))
	require.NoError(t, msg.Field(fieldInsurance, "800000"))
	require.NoError(t, msg.Field(fieldNPWP, npwp))
	return msg
}

func intField(t *testing.T, msg *iso8583.Message, id int) int64 {
	t.Helper()
	v, err := msg.GetString(id)
	require.NoError(t, err)
	n, err := strconv.ParseInt(v, 10, 64)
	require.NoError(t, err)
	return n
}

func TestHandleMessage(t *testing.T) {
	s, log := newServer()

	resp := s.HandleMessage(context.Background(), quoteRequest(t, "8517.12.00", "N"))

	mti, err := resp.GetMTI()
	require.NoError(t, err)
	require.Equal(t, "0210", mti)

	code, err := resp.GetString(fieldResponse)
	require.NoError(t, err)
	require.Equal(t, CodeApproved, code)

	require.Equal(t, int64(10157000), intField(t, resp, fieldFOB))
	require.Equal(t, int64(38157000), intField(t, resp, fieldFreight))

	desc, err := resp.GetString(fieldDescription)
	require.NoError(t, err)
	require.Contains(t, desc, "Telepon")

	require.Equal(t, []string{channel}, log.channels)
}

func TestHandleMessage_NPWP(t *testing.T) {
	s, _ := newServer()
	resp := s.HandleMessage(context.Background(), quoteRequest(t, "8517.12.00", "Y"))
	require.Equal(t, int64(8547000), intField(t, resp, fieldFOB))
	require.Equal(t, int64(36547000), intField(t, resp, fieldFreight))
}

func TestHandleMessage_Errors(t *testing.T) {
	s, log := newServer()

	resp := s.HandleMessage(context.Background(), quoteRequest(t, "0101.21.00", "Y"))
	code, _ := resp.GetString(fieldResponse)
	require.Equal(t, CodeUnknownHSCode, code)
	hs, _ := resp.GetString(fieldHSCode)
	require.Equal(t, "0101.21.00", hs)

	msg := quoteRequest(t, "8517.12.00", "Y")
	msg.MTI("0100")
	resp = s.HandleMessage(context.Background(), msg)
	code, _ = resp.GetString(fieldResponse)
	require.Equal(t, CodeFormatError, code)

	require.Empty(t, log.channels)
}

func TestHandleConnection(t *testing.T) {
	s, _ := newServer()
	client, server := net.Pipe()
	defer client.Close()

	go s.handleConnection(context.Background(), server)

	packed, err := quoteRequest(t, "8471.30.00", "Y").Pack()
	require.NoError(t, err)
	require.NoError(t, client.SetDeadline(time.Now().Add(5*time.Second)))
	_, err = client.Write(packed)
	require.NoError(t, err)

	buf := make([]byte, 4096)
	n, err := client.Read(buf)
	require.NoError(t, err)

	resp := iso8583.NewMessage(buildSpec())
	require.NoError(t, resp.Unpack(buf[:n]))

	code, err := resp.GetString(fieldResponse)
	require.NoError(t, err)
	require.Equal(t, CodeApproved, code)
	// CIF 28 000 000, пошлина 10%: DPP 30 800 000, PPN 3 388 000, PPh 770 000
	require.Equal(t, int64(6958000), intField(t, resp, fieldFOB))
	require.Equal(t, int64(34958000), intField(t, resp, fieldFreight))
}

func TestHandleConnection_Garbage(t *testing.T) {
	s, _ := newServer()
	client, server := net.Pipe()
	defer client.Close()

	go s.handleConnection(context.Background(), server)

	require.NoError(t, client.SetDeadline(time.Now().Add(5*time.Second)))
	_, err := client.Write([]byte("xx"))
	require.NoError(t, err)

	buf := make([]byte, 512)
	n, err := client.Read(buf)
	require.NoError(t, err)

	resp := iso8583.NewMessage(buildSpec())
	require.NoError(t, resp.Unpack(buf[:n]))
	code, _ := resp.GetString(fieldResponse)
	require.Equal(t, CodeFormatError, code)
}

func TestHandleMessage_LandedCostTooWide(t *testing.T) {
	s, _ := newServer()
	msg := quoteRequest(t, "8517.12.00", "N")
	require.NoError(t, msg.Field(fieldFOB, "900000000000"))

	resp := s.HandleMessage(context.Background(), msg)
	code, err := resp.GetString(fieldResponse)
	require.NoError(t, err)
	require.Equal(t, CodeSystemError, code)

	_, err = resp.Pack()
	require.NoError(t, err)
}

func TestHandleMessage_ExponentAmount(t *testing.T) {
	s, log := newServer()
	msg := quoteRequest(t, "8517.12.00", "N")
	require.NoError(t, msg.Field(fieldFOB, "9e99999999"))

	resp := s.HandleMessage(context.Background(), msg)
	code, _ := resp.GetString(fieldResponse)
	require.Equal(t, CodeFormatError, code)
	require.Empty(t, log.channels)
}

func TestHandleConnection_TooWideStillReplies(t *testing.T) {
	s, _ := newServer()
	client, server := net.Pipe()
	defer client.Close()

	go s.handleConnection(context.Background(), server)

	req := quoteRequest(t, "8517.12.00", "N")
	require.NoError(t, req.Field(fieldFOB, "900000000000"))
	packed, err := req.Pack()
	require.NoError(t, err)

	require.NoError(t, client.SetDeadline(time.Now().Add(5*time.Second)))
	_, err = client.Write(packed)
	require.NoError(t, err)

	buf := make([]byte, 4096)
	n, err := client.Read(buf)
	require.NoError(t, err)

	resp := iso8583.NewMessage(buildSpec())
	require.NoError(t, resp.Unpack(buf[:n]))
	code, _ := resp.GetString(fieldResponse)
	require.Equal(t, CodeSystemError, code)
}

func TestFormatAmount(t *testing.T) {
	v, ok := formatAmount(decimal.RequireFromString("8547000.4"))
	require.True(t, ok)
	require.Equal(t, "000008547000", v)

	v, ok = formatAmount(decimal.RequireFromString("999999999999.4"))
	require.True(t, ok)
	require.Equal(t, "999999999999", v)

	_, ok = formatAmount(decimal.RequireFromString("999999999999.5"))
	require.False(t, ok)
	_, ok = formatAmount(decimal.RequireFromString("-1"))
	require.False(t, ok)
}
