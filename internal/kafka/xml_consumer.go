package kafka

import (
	"context"

	"gatego-backend/internal/service"
)

// StartXMLConsumer запускает consumer для XML-запросов на расчет пошлин
func StartXMLConsumer(ctx context.Context, cfg Config, calc *service.Calculator, log CalculationLog) {
	reader := newReader(cfg, cfg.XMLRequestTopic, cfg.GroupID+"-xml")
	writer := newWriter(cfg, cfg.XMLResponseTopic)
	h := NewXMLHandler(calc, log)

	go consume(ctx, "xml", reader, writer, h.Handle)
}
