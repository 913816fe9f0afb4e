package ipc

import (
	"time"

	"captured/internal/capture"
	"captured/internal/logging"
	"captured/internal/monitor"
)

// Service implements the capture control operations behind the
// protocol. It owns no goroutines; the server drives it.
type Service struct {
	toggle  *capture.Toggle
	machine *capture.Machine
	monitor *monitor.Monitor
	version string
	started time.Time
	log     *logging.Logger
}

// NewService wires the control surface to the capture machinery.
func NewService(t *capture.Toggle, m *capture.Machine, mon *monitor.Monitor, version string) *Service {
	return &Service{
		toggle:  t,
		machine: m,
		monitor: mon,
		version: version,
		started: time.Now(),
		log:     logging.Default().WithComponent("ipc"),
	}
}

// Start enables capture. Each start also publishes a fresh system
// snapshot so a session always opens with the full host picture.
// Starting while already capturing is a no-op that still acknowledges.
func (s *Service) Start() ControlResponse {
	s.toggle.Set(true)
	s.log.Info("capture started")
	if s.monitor != nil {
		go s.monitor.PublishBaseline()
	}
	return ControlResponse{Message: "Started"}
}

// Stop disables capture. Held-input state is cleared only when the
// reset-on-stop policy is configured; otherwise a key held across a
// stop/start cycle still will not re-emit a press.
func (s *Service) Stop() ControlResponse {
	s.toggle.Set(false)
	if s.machine != nil && s.machine.ResetOnStop() {
		s.machine.Reset()
	}
	s.log.Info("capture stopped")
	return ControlResponse{Message: "Stopped"}
}

// Status reports the daemon state. subscribers is supplied by the
// server, which tracks live stream connections.
func (s *Service) Status(subscribers int) StatusResponse {
	return StatusResponse{
		Version:     s.version,
		Uptime:      time.Since(s.started),
		StartedAt:   s.started,
		Capturing:   s.toggle.Enabled(),
		Subscribers: subscribers,
	}
}
