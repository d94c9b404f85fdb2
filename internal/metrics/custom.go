package metrics

import (
	"sync"
	"time"
)

// Window - скользящее окно отметок времени
type Window struct {
	mu    sync.Mutex
	span  time.Duration
	stamp []time.Time
	now   func() time.Time
}

func NewWindow(span time.Duration) *Window {
	return &Window{span: span, now: time.Now}
}

// Record - зарегистрировать одно событие
func (w *Window) Record() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.stamp = append(w.stamp, now)

	// Удалим всё, что старше окна
	cutoff := now.Add(-w.span)
	i := 0
	for ; i < len(w.stamp); i++ {
		if w.stamp[i].After(cutoff) {
			break
		}
	}
	w.stamp = w.stamp[i:]
}

// CountSince - количество событий за последние d
func (w *Window) CountSince(d time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-d)
	sum := 0
	for _, ts := range w.stamp {
		if ts.After(cutoff) {
			sum++
		}
	}
	return sum
}

var calculations = NewWindow(24 * time.Hour)

// RecordRequest - зарегистрировать один расчет
func RecordRequest() { calculations.Record() }

// CountSince - количество расчетов за d
func CountSince(d time.Duration) int { return calculations.CountSince(d) }
