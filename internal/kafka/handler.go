package kafka

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"gatego-backend/internal/logging"
	"gatego-backend/internal/metrics"
	"gatego-backend/internal/model"
	"gatego-backend/internal/service"
)

// Config - брокер и топики
type Config struct {
	Brokers           []string `yaml:"brokers"`
	GroupID           string   `yaml:"group_id"`
	JSONRequestTopic  string   `yaml:"json_request_topic"`
	JSONResponseTopic string   `yaml:"json_response_topic"`
	XMLRequestTopic   string   `yaml:"xml_request_topic"`
	XMLResponseTopic  string   `yaml:"xml_response_topic"`
	EventsTopic       string   `yaml:"events_topic"`
}

// CalculationLog - журнал расчетов
type CalculationLog interface {
	SaveCalculation(ctx context.Context, channel string, req model.CalcRequest, resp model.CalcResponse) error
}

type codec struct {
	unmarshal func([]byte, interface{}) error
	marshal   func(interface{}) ([]byte, error)
}

var (
	jsonCodec = codec{unmarshal: json.Unmarshal, marshal: json.Marshal}
	xmlCodec  = codec{unmarshal: xml.Unmarshal, marshal: xml.Marshal}
)

// CalcHandler - обработка одного запроса на расчет из Kafka
type CalcHandler struct {
	Calculator *service.Calculator
	Log        CalculationLog
	Channel    string
	codec      codec
}

func NewJSONHandler(calc *service.Calculator, log CalculationLog) *CalcHandler {
	return &CalcHandler{Calculator: calc, Log: log, Channel: "kafka-json", codec: jsonCodec}
}

func NewXMLHandler(calc *service.Calculator, log CalculationLog) *CalcHandler {
	return &CalcHandler{Calculator: calc, Log: log, Channel: "kafka-xml", codec: xmlCodec}
}

// Handle - сообщение-запрос в сообщение-ответ. Ошибка расчета попадает в поле Error ответа,
// нечитаемое сообщение возвращает ошибку и пропускается.
func (h *CalcHandler) Handle(ctx context.Context, msg kafka.Message) (*kafka.Message, error) {
	var req model.CalcRequest
	if err := h.codec.unmarshal(msg.Value, &req); err != nil {
		return nil, fmt.Errorf("ошибка разбора запроса: %w", err)
	}

	resp, err := h.Calculator.Calculate(ctx, req)
	if err != nil {
		resp = model.CalcResponse{RequestID: req.RequestID, Error: err.Error()}
	} else {
		metrics.RecordCalculation(h.Channel)
		if h.Log != nil {
			if err := h.Log.SaveCalculation(ctx, h.Channel, req, resp); err != nil {
				logging.Warn("расчет не сохранен в журнал", zap.String("channel", h.Channel), zap.Error(err))
			}
		}
	}

	value, err := h.codec.marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации ответа: %w", err)
	}

	key := msg.Key
	if req.RequestID != "" {
		key = []byte(req.RequestID)
	}
	return &kafka.Message{Key: key, Value: value}, nil
}

type handleFunc func(ctx context.Context, msg kafka.Message) (*kafka.Message, error)

// consume - цикл чтения до отмены контекста; writer может быть nil
func consume(ctx context.Context, name string, reader *kafka.Reader, writer *kafka.Writer, handle handleFunc) {
	defer reader.Close()
	if writer != nil {
		defer writer.Close()
	}

	logging.Info("старт подписки Kafka", zap.String("consumer", name), zap.String("topic", reader.Config().Topic))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logging.Info("подписка Kafka остановлена", zap.String("consumer", name))
				return
			}
			logging.Error("ошибка чтения Kafka", zap.String("consumer", name), zap.Error(err))
			continue
		}

		out, err := handle(ctx, msg)
		if err != nil {
			logging.Warn("сообщение пропущено",
				zap.String("consumer", name),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}
		if out == nil || writer == nil {
			continue
		}

		if err := writer.WriteMessages(ctx, *out); err != nil {
			logging.Error("ошибка отправки ответа в Kafka", zap.String("consumer", name), zap.Error(err))
		}
	}
}

func newReader(cfg Config, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

func newWriter(cfg Config, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
}
