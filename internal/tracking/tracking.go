// Package tracking - этапы прохождения PIB: submitted -> payment -> customs -> sppb.
// Состояние меняется только событиями (Kafka или API), таймеров нет.
package tracking

import (
	"errors"
	"fmt"
	"time"

	"gatego-backend/internal/model"
)

var (
	ErrUnknownStage  = errors.New("неизвестный этап")
	ErrUnknownStatus = errors.New("недопустимый статус события")
	ErrOutOfOrder    = errors.New("предыдущие этапы не завершены")
	ErrStageClosed   = errors.New("этап уже завершен")
)

func stageIndex(s model.Stage) int {
	for i, st := range model.Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// NewDeclaration - новая PIB: этап submitted завершен в момент подачи
func NewDeclaration(id string, sub model.PIBSubmission, at time.Time) model.Declaration {
	stages := make([]model.StageState, len(model.Stages))
	for i, s := range model.Stages {
		stages[i] = model.StageState{Stage: s, Status: model.StatusPending}
	}
	submitted := at
	stages[0].Status = model.StatusCompleted
	stages[0].UpdatedAt = &submitted

	d := model.Declaration{
		ID:            id,
		Submission:    sub,
		Stages:        stages,
		Notifications: []string{"PIB " + sub.SJCNumber + " berhasil disubmit"},
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	d.CurrentStage, d.Status = Derive(stages)
	return d
}

// Apply - применить событие к PIB. Входная структура не меняется.
func Apply(d model.Declaration, ev model.TrackingEvent) (model.Declaration, error) {
	idx := stageIndex(ev.Stage)
	if idx < 0 {
		return d, fmt.Errorf("%w: %q", ErrUnknownStage, ev.Stage)
	}
	switch ev.Status {
	case model.StatusInProgress, model.StatusCompleted, model.StatusDelayed:
	default:
		return d, fmt.Errorf("%w: %q", ErrUnknownStatus, ev.Status)
	}

	stages := make([]model.StageState, len(d.Stages))
	copy(stages, d.Stages)
	if len(stages) != len(model.Stages) {
		return d, fmt.Errorf("%w: PIB %s содержит %d этапов", ErrUnknownStage, d.ID, len(stages))
	}

	if stages[idx].Status == model.StatusCompleted {
		return d, fmt.Errorf("%w: %s", ErrStageClosed, ev.Stage)
	}
	// задержку можно отметить на любом незавершенном этапе
	if ev.Status != model.StatusDelayed {
		for _, prev := range stages[:idx] {
			if prev.Status != model.StatusCompleted {
				return d, fmt.Errorf("%w: %s не завершен", ErrOutOfOrder, prev.Stage)
			}
		}
	}

	at := ev.At
	stages[idx] = model.StageState{Stage: ev.Stage, Status: ev.Status, UpdatedAt: &at}

	next := d
	next.Stages = stages
	next.Notifications = append(append([]string(nil), d.Notifications...), notifications(ev)...)
	next.CurrentStage, next.Status = Derive(stages)
	next.UpdatedAt = at
	return next, nil
}

// Derive - текущий этап и общий статус по состояниям этапов
func Derive(stages []model.StageState) (model.Stage, model.Status) {
	current := model.StageSPPB
	for _, s := range stages {
		if s.Status != model.StatusCompleted {
			current = s.Stage
			break
		}
	}

	started := false
	for _, s := range stages {
		switch s.Status {
		case model.StatusDelayed:
			return current, model.StatusDelayed
		case model.StatusInProgress:
			started = true
		case model.StatusCompleted:
			if s.Stage == model.StageSPPB {
				return current, model.StatusCompleted
			}
			started = true
		}
	}
	if started {
		return current, model.StatusInProgress
	}
	return current, model.StatusPending
}

func notifications(ev model.TrackingEvent) []string {
	var out []string
	switch {
	case ev.Status == model.StatusDelayed:
		out = append(out, "Tahap "+string(ev.Stage)+" tertunda")
	case ev.Stage == model.StagePayment && ev.Status == model.StatusCompleted:
		out = append(out, "Pembayaran bea masuk dan pajak diterima")
	case ev.Stage == model.StageCustoms && ev.Status == model.StatusCompleted:
		out = append(out, "Pemeriksaan pabean selesai")
	case ev.Stage == model.StageSPPB && ev.Status == model.StatusCompleted:
		out = append(out, "SPPB telah diterbitkan", "Armada siap dijadwalkan untuk pengambilan")
	}
	if ev.Note != "" {
		out = append(out, ev.Note)
	}
	return out
}
