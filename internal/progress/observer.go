package progress

import (
	log "github.com/sirupsen/logrus"
)

// Observer receives transfer progress events. Implementations must
// tolerate being called once per item per pass; events arrive one at a
// time, never interleaved.
type Observer interface {
	OnProgress(completed, total, failed int, label string)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) OnProgress(completed, total, failed int, label string) {}

// LogObserver reports progress through the standard logger.
type LogObserver struct{}

func (LogObserver) OnProgress(completed, total, failed int, label string) {
	if failed > 0 {
		log.Infof("📦 %d/%d (%d failed) %s", completed, total, failed, label)
		return
	}
	log.Infof("📦 %d/%d %s", completed, total, label)
}
