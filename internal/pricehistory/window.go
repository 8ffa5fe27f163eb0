package pricehistory

import (
	"time"

	"solana-trade-sentinel/internal/domain"
)

// DefaultRetention is the monitoring window used for crash detection.
const DefaultRetention = 30 * time.Second

// Window keeps time-bounded price samples per token. Samples older than
// the retention relative to the newest insert are pruned on every insert.
type Window struct {
	retention time.Duration
	data      *Keyed[[]domain.PricePoint]
}

// NewWindow creates a Window. A non-positive retention uses DefaultRetention.
func NewWindow(retention time.Duration) *Window {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Window{
		retention: retention,
		data:      NewKeyed[[]domain.PricePoint](),
	}
}

// Retention returns the configured retention.
func (w *Window) Retention() time.Duration {
	return w.retention
}

// Record appends a sample and prunes samples older than at-retention.
// Out-of-order samples are inserted at their timestamp position.
func (w *Window) Record(tokenID string, price float64, at time.Time) {
	w.data.Update(tokenID, newPoints, func(points *[]domain.PricePoint) {
		p := domain.PricePoint{Price: price, Timestamp: at}

		pts := *points
		i := len(pts)
		for i > 0 && pts[i-1].Timestamp.After(at) {
			i--
		}
		pts = append(pts, domain.PricePoint{})
		copy(pts[i+1:], pts[i:])
		pts[i] = p

		newest := pts[len(pts)-1].Timestamp
		cutoff := newest.Add(-w.retention)
		drop := 0
		for drop < len(pts) && pts[drop].Timestamp.Before(cutoff) {
			drop++
		}
		if drop > 0 {
			pts = append([]domain.PricePoint(nil), pts[drop:]...)
		}
		*points = pts
	})
}

// Points returns a copy of all retained samples for the token, oldest first.
func (w *Window) Points(tokenID string) []domain.PricePoint {
	var out []domain.PricePoint
	w.data.View(tokenID, func(points *[]domain.PricePoint) {
		out = append(out, (*points)...)
	})
	return out
}

// Since returns retained samples with Timestamp >= from, oldest first.
func (w *Window) Since(tokenID string, from time.Time) []domain.PricePoint {
	var out []domain.PricePoint
	w.data.View(tokenID, func(points *[]domain.PricePoint) {
		for _, p := range *points {
			if !p.Timestamp.Before(from) {
				out = append(out, p)
			}
		}
	})
	return out
}

// Forget drops all samples for the token.
func (w *Window) Forget(tokenID string) {
	w.data.Delete(tokenID)
}

// Tokens returns tokens with retained samples.
func (w *Window) Tokens() []string {
	return w.data.Keys()
}

func newPoints() *[]domain.PricePoint {
	pts := make([]domain.PricePoint, 0, 16)
	return &pts
}
