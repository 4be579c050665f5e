package game

import "time"

// fpsMeter keeps an exponentially smoothed frame rate.
type fpsMeter struct {
	alpha     float64
	threshold float64
	nominal   time.Duration
	last      time.Time
	fps       float64
	spiking   bool
}

func newFPSMeter(alpha, threshold float64, nominal time.Duration) fpsMeter {
	m := fpsMeter{alpha: alpha, threshold: threshold, nominal: nominal}
	if nominal > 0 {
		m.fps = float64(time.Second) / float64(nominal)
	}
	return m
}

// observe records a frame at now and returns the elapsed time since the
// previous one. The first frame after a reset counts as one nominal frame.
// spikeStarted is true only on the frame the smoothed rate first drops
// below the threshold.
func (m *fpsMeter) observe(now time.Time) (dt time.Duration, spikeStarted bool) {
	dt = m.nominal
	if !m.last.IsZero() && now.After(m.last) {
		dt = now.Sub(m.last)
	}
	m.last = now
	if dt <= 0 {
		return dt, false
	}

	instant := float64(time.Second) / float64(dt)
	m.fps = m.fps*(1-m.alpha) + instant*m.alpha

	low := m.threshold > 0 && m.fps < m.threshold
	spikeStarted = low && !m.spiking
	m.spiking = low
	return dt, spikeStarted
}

// rebase forgets the last frame time so a pause gap is not counted.
func (m *fpsMeter) rebase() {
	m.last = time.Time{}
}
