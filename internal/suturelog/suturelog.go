// Package suturelog adapts suture's event-hook callbacks to the pslog
// logger used throughout the rest of the engine, in place of the
// slog-based sutureslog bridge the wider ecosystem commonly reaches for.
package suturelog

import (
	"github.com/thejerf/suture/v4"

	"pkt.systems/pslog"
)

// Hook returns a suture.EventHook that logs every supervisor event
// through logger at a level matching its severity.
func Hook(logger pslog.Logger) suture.EventHook {
	return func(ev suture.Event) {
		switch e := ev.(type) {
		case suture.EventStopTimeout:
			logger.Warn("supervisor.service.stop_timeout", "supervisor", e.SupervisorName, "service", e.ServiceName)
		case suture.EventServicePanic:
			logger.Warn("supervisor.service.panic", "supervisor", e.SupervisorName, "service", e.ServiceName, "panic", e.PanicMsg, "restarting", e.Restarting)
		case suture.EventServiceTerminate:
			logger.Info("supervisor.service.terminate", "supervisor", e.SupervisorName, "service", e.ServiceName, "restarting", e.Restarting, "error", e.Err)
		case suture.EventBackoff:
			logger.Warn("supervisor.backoff.enter", "supervisor", e.SupervisorName)
		case suture.EventResume:
			logger.Info("supervisor.backoff.resume", "supervisor", e.SupervisorName)
		default:
			logger.Debug("supervisor.event", "type", ev.Type(), "message", ev.String())
		}
	}
}
