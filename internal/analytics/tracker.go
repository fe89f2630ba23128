package analytics

import (
	"log/slog"
)

// Tracker records user activity. The form engine never calls it; the HTTP
// layer does.
type Tracker interface {
	Identify(userID string, traits map[string]any)
	Track(event string, props map[string]any)
	Page(name string, props map[string]any)
}

// Noop discards everything.
type Noop struct{}

func (Noop) Identify(string, map[string]any) {}
func (Noop) Track(string, map[string]any)    {}
func (Noop) Page(string, map[string]any)     {}

// LogTracker writes events as structured log lines.
type LogTracker struct {
	log *slog.Logger
}

func NewLogTracker(logger *slog.Logger) *LogTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTracker{log: logger.With("component", "analytics")}
}

func (t *LogTracker) Identify(userID string, traits map[string]any) {
	t.log.Info("identify", "user_id", userID, "traits", traits)
}

func (t *LogTracker) Track(event string, props map[string]any) {
	t.log.Info("track", "event", event, "properties", props)
}

func (t *LogTracker) Page(name string, props map[string]any) {
	t.log.Info("page", "name", name, "properties", props)
}
