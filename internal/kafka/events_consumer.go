package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"gatego-backend/internal/model"
	"gatego-backend/internal/tracking"
)

// EventHandler - события таможни (этапы PIB)
type EventHandler struct {
	Store tracking.Updater
	Now   func() time.Time
}

// Handle - применяет событие; ответа в Kafka нет
func (h *EventHandler) Handle(ctx context.Context, msg kafka.Message) (*kafka.Message, error) {
	var ev model.TrackingEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return nil, fmt.Errorf("ошибка разбора события: %w", err)
	}
	if ev.DeclarationID == "" {
		ev.DeclarationID = string(msg.Key)
	}
	if ev.DeclarationID == "" {
		return nil, errors.New("событие без идентификатора PIB")
	}

	if _, err := tracking.Record(ctx, h.Store, ev, h.Now); err != nil {
		return nil, err
	}
	return nil, nil
}

// StartEventsConsumer - подписка на события этапов PIB
func StartEventsConsumer(ctx context.Context, cfg Config, store tracking.Updater) {
	reader := newReader(cfg, cfg.EventsTopic, cfg.GroupID+"-events")
	h := &EventHandler{Store: store, Now: time.Now}

	go consume(ctx, "events", reader, nil, h.Handle)
}
