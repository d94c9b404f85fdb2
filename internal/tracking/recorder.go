package tracking

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gatego-backend/internal/logging"
	"gatego-backend/internal/metrics"
	"gatego-backend/internal/model"
)

// Updater - хранилище PIB с атомарным обновлением
type Updater interface {
	UpdateDeclaration(ctx context.Context, id string, fn func(model.Declaration) (model.Declaration, error)) (model.Declaration, error)
}

// Record - применить событие к сохраненной PIB. Пустое время события заменяется на now.
func Record(ctx context.Context, store Updater, ev model.TrackingEvent, now func() time.Time) (model.Declaration, error) {
	if ev.At.IsZero() {
		ev.At = now().UTC()
	}

	d, err := store.UpdateDeclaration(ctx, ev.DeclarationID, func(current model.Declaration) (model.Declaration, error) {
		return Apply(current, ev)
	})
	if err != nil {
		logging.Warn("событие PIB отклонено",
			zap.String("declaration_id", ev.DeclarationID),
			zap.String("stage", string(ev.Stage)),
			zap.String("status", string(ev.Status)),
			zap.Error(err))
		return model.Declaration{}, err
	}

	metrics.PIBEventsTotal.WithLabelValues(string(ev.Stage), string(ev.Status)).Inc()
	logging.Info("событие PIB применено",
		zap.String("declaration_id", d.ID),
		zap.String("current_stage", string(d.CurrentStage)),
		zap.String("status", string(d.Status)))
	return d, nil
}
