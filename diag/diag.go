// Package diag implements the three-severity diagnostic model the mes
// toolkit surfaces to callers: fatal conditions abort the current
// operation, warnings are recorded and the run continues, notices are
// purely informational.
package diag

import (
	"fmt"

	"go.uber.org/zap"
)

// Handler collects warnings/notices and renders fatal conditions as a
// returned error rather than terminating the process, since the core must
// remain usable as a library from any caller (CLI, GUI, test).
type Handler struct {
	log       *zap.SugaredLogger
	Warnings  []string
	Notices   []string
}

// New builds a Handler backed by a production zap logger. Callers that want
// silent operation (e.g. unit tests exercising only the returned error) can
// pass a no-op logger via NewWith.
func New() *Handler {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return NewWith(l.Sugar())
}

// NewWith builds a Handler around a caller-supplied logger.
func NewWith(l *zap.SugaredLogger) *Handler {
	return &Handler{log: l}
}

// Fatalf records a fatal condition and returns it as an error. The caller
// must stop the current parse/assemble/decompile operation and propagate
// the error; Fatalf never calls os.Exit or panics.
func (h *Handler) Fatalf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	h.log.Errorf("fatal: %s", msg)
	return fmt.Errorf("%s", msg)
}

// Warnf records a warning. The run continues.
func (h *Handler) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	h.Warnings = append(h.Warnings, msg)
	h.log.Warnf("%s", msg)
}

// Noticef records an informational notice.
func (h *Handler) Noticef(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	h.Notices = append(h.Notices, msg)
	h.log.Infof("%s", msg)
}
