package kafka

import (
	"context"

	"gatego-backend/internal/service"
)

// StartKafkaJSONConsumer - расчеты по JSON-запросам, ответы в отдельный топик
func StartKafkaJSONConsumer(ctx context.Context, cfg Config, calc *service.Calculator, log CalculationLog) {
	reader := newReader(cfg, cfg.JSONRequestTopic, cfg.GroupID)
	writer := newWriter(cfg, cfg.JSONResponseTopic)
	h := NewJSONHandler(calc, log)

	go consume(ctx, "json", reader, writer, h.Handle)
}
