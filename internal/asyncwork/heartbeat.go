package asyncwork

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/buildbridge/internal/logfields"
)

// heartbeat wraps a gocron scheduler running one periodic logging task.
type heartbeat struct {
	scheduler gocron.Scheduler
}

// startHeartbeat runs fn every interval until stop is called.
func startHeartbeat(interval time.Duration, fn func()) (*heartbeat, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if _, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName("async-drain-heartbeat"),
	); err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create heartbeat job: %w", err)
	}
	s.Start()
	return &heartbeat{scheduler: s}, nil
}

func (h *heartbeat) stop() {
	if h == nil {
		return
	}
	if err := h.scheduler.Shutdown(); err != nil {
		slog.Debug("Heartbeat scheduler shutdown", logfields.Error(err))
	}
}
